package rag

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

const (
	// fetchTimeout bounds a remote document download.
	fetchTimeout = 30 * time.Second

	// maxFetchSize caps how much of a remote document is read.
	maxFetchSize = 10 << 20 // 10 MiB
)

// ErrUnsupportedType reports a document format the loader cannot
// extract text from.
var ErrUnsupportedType = errors.New("unsupported document type")

// Loader extracts plain text from local files and remote pages.
//
// Local files are dispatched on extension: .txt and .md are read
// verbatim, .pdf and .docx go through format-specific extraction, and
// .html/.htm are reduced to readable article text. URLs are fetched and
// reduced the same way.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// NewLoader returns a loader with a bounded HTTP client for remote
// sources.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Load extracts the text content of the document at source, which is
// either a local file path or an http(s) URL. Unknown formats report
// ErrUnsupportedType; a missing file reports the underlying
// fs.ErrNotExist.
func (l *Loader) Load(ctx context.Context, source string) (string, error) {
	if isURL(source) {
		return l.loadURL(ctx, source)
	}
	return l.loadFile(source)
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// loadFile stats the path before looking at the extension so that a
// missing document is reported as such even for unsupported formats.
func (l *Loader) loadFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("document not accessible: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator, not an end user
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return string(data), nil
	case ".pdf":
		return loadPDF(path)
	case ".docx":
		return loadDOCX(path)
	case ".doc":
		return "", fmt.Errorf("%w: legacy .doc is not readable, convert %s to .docx", ErrUnsupportedType, filepath.Base(path))
	case ".html", ".htm":
		return loadHTMLFile(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

func loadDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening docx document part: %w", err)
		}
		defer rc.Close()
		return extractDOCXText(rc)
	}
	return "", errors.New("docx archive has no word/document.xml part")
}

// extractDOCXText walks WordprocessingML tokens, keeping text runs and
// turning paragraph, line-break and tab elements into their plain-text
// equivalents.
func extractDOCXText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				sb.WriteString("\n")
			case "tab":
				sb.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func loadHTMLFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator, not an end user
	if err != nil {
		return "", fmt.Errorf("opening html file: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	article, err := readability.FromReader(f, &url.URL{Scheme: "file", Path: abs})
	if err != nil {
		return "", fmt.Errorf("extracting readable content: %w", err)
	}
	return article.TextContent, nil
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", pageURL.Host, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxFetchSize), pageURL)
	if err != nil {
		return "", fmt.Errorf("extracting readable content: %w", err)
	}

	l.logger.Debug("fetched remote document",
		slog.String("host", pageURL.Host),
		slog.String("title", article.Title),
	)
	return article.TextContent, nil
}
