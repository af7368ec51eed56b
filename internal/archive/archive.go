// Package archive writes sanitized markdown snapshots of visited profile
// pages, one file per profile, for offline review of a run.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Writer converts page HTML to markdown and saves it under Dir.
type Writer struct {
	dir    string
	logger *slog.Logger
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		dir:    dir,
		logger: logger,
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Snapshot sanitizes rawHTML, converts it to markdown and writes
// profile-NNN.md. Failures are logged, never fatal: a missing snapshot
// must not abort the run.
func (w *Writer) Snapshot(seq int, pageURL, rawHTML string) {
	md, err := w.convert(pageURL, rawHTML)
	if err != nil {
		w.logger.Warn("archive: convert failed", "seq", seq, "error", err)
		return
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Warn("archive: create dir failed", "error", err)
		return
	}
	path := filepath.Join(w.dir, fmt.Sprintf("profile-%03d.md", seq))
	body := fmt.Sprintf("<!-- %s -->\n\n%s\n", pageURL, md)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		w.logger.Warn("archive: write failed", "path", path, "error", err)
	}
}

func (w *Writer) convert(pageURL, rawHTML string) (string, error) {
	clean := w.policy.Sanitize(rawHTML)
	md, err := w.conv.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return "", fmt.Errorf("archive: to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", fmt.Errorf("archive: empty conversion result")
	}
	return md, nil
}
