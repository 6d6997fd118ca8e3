// Package cmd provides the CLI commands for the RAG agent.
//
// Commands:
//   - serve: HTTP API server with SSE streaming (default)
//   - index: one-shot document ingestion into the knowledge store
//   - version: build information
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
)

// Execute is the main entry point for the ragagent application.
func Execute() error {
	// .env is a development convenience; deployments set the environment
	// directly, so a missing file is not an error.
	_ = godotenv.Load()

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "serve", "index":
			command = args[0]
			args = args[1:]
		case "version", "--version", "-v":
			runVersion()
			return nil
		case "help", "--help", "-h":
			runHelp()
			return nil
		default:
			if !strings.HasPrefix(args[0], "-") {
				return fmt.Errorf("unknown command: %s", args[0])
			}
			// Bare flags belong to the default serve command.
		}
	}

	initLogger(command)

	if command == "index" {
		return runIndex(args)
	}
	return runServe(args)
}

// initLogger installs the process-wide default logger. The server logs
// JSON for log collectors; one-shot commands log text for humans. DEBUG
// in the environment raises verbosity either way.
func initLogger(command string) {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level, JSON: command == "serve"}))
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("ragagent - Chat with your documents over a retrieval pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragagent [serve] [addr]    Start the HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  ragagent index <path>      Index a document (PDF, text, or URL)")
	fmt.Println("  ragagent index -remove <asset-id>")
	fmt.Println("                             Remove an indexed document")
	fmt.Println("  ragagent version           Show version information")
	fmt.Println("  ragagent help              Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required for the googleai provider")
	fmt.Println("  OPENAI_API_KEY     Required for the openai provider")
	fmt.Println("  DEBUG              Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration is read from ~/.ragagent/config.yaml, the working")
	fmt.Println("directory, and RAGAGENT_* environment variables.")
}
