package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/app"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/config"
)

// parseIndexArgs parses the index command's arguments. Exactly one of
// source (positional path or URL) and removeID (-remove flag) is set.
func parseIndexArgs(args []string) (source, removeID string, err error) {
	indexFlags := flag.NewFlagSet("index", flag.ContinueOnError)
	indexFlags.SetOutput(os.Stderr)

	remove := indexFlags.String("remove", "", "Remove an indexed document by asset ID")

	if err := indexFlags.Parse(args); err != nil {
		return "", "", fmt.Errorf("parsing index flags: %w", err)
	}

	source = indexFlags.Arg(0)
	switch {
	case *remove == "" && source == "":
		return "", "", errors.New("usage: ragagent index <path> | ragagent index -remove <asset-id>")
	case *remove != "" && source != "":
		return "", "", errors.New("-remove does not take a path argument")
	}

	return source, *remove, nil
}

// runIndex ingests a single document into the knowledge store, or
// removes one with -remove. It runs the same pipeline as the HTTP
// document route, without the server.
func runIndex(args []string) error {
	source, removeID, err := parseIndexArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	if removeID != "" {
		return removeAsset(ctx, a, removeID)
	}
	return indexDocument(ctx, a, source)
}

func indexDocument(ctx context.Context, a *app.App, source string) error {
	res, err := a.Indexer.Process(ctx, source)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", source, err)
	}

	// Report the count the store holds, not the count the pipeline produced.
	stored, err := a.Knowledge.CountChunks(ctx, res.AssetID)
	if err != nil {
		return fmt.Errorf("verifying stored chunks: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("%s %s\n", green("Indexed"), bold(source))
	fmt.Printf("  Asset ID: %s\n", res.AssetID)
	fmt.Printf("  Chunks:   %d (%d chars)\n", res.Chunks, res.Chars)
	fmt.Printf("  Stored:   %d\n", stored)
	fmt.Printf("  Duration: %s\n", res.Duration.Round(time.Millisecond))
	return nil
}

func removeAsset(ctx context.Context, a *app.App, removeID string) error {
	assetID, err := uuid.Parse(removeID)
	if err != nil {
		return fmt.Errorf("invalid asset ID %q: %w", removeID, err)
	}

	if err := a.Indexer.Remove(ctx, assetID); err != nil {
		return fmt.Errorf("removing %s: %w", assetID, err)
	}

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Printf("%s %s\n", green("Removed"), assetID)
	return nil
}
