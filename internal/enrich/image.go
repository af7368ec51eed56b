// Package enrich downloads profile images and runs optional face
// detection over them. Every failure is per-record: a record that cannot
// be enriched keeps empty enrichment fields and never aborts the batch.
package enrich

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxImageBytes = 8 << 20

// ImageFetcher downloads an image and returns it base64-encoded.
type ImageFetcher struct {
	Client  *http.Client
	Referer string
	Logger  *slog.Logger
}

func (f *ImageFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (f *ImageFetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Fetch returns the image at imageURL as standard base64, or "" when the
// URL is empty or the download fails. CDN hosts that reject anonymous
// cross-origin requests get a second attempt without the origin headers.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) string {
	if imageURL == "" {
		return ""
	}
	data, err := f.get(ctx, imageURL, true)
	if err != nil {
		data, err = f.get(ctx, imageURL, false)
	}
	if err != nil {
		f.logger().Debug("enrich: image fetch failed", "url", imageURL, "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

func (f *ImageFetcher) get(ctx context.Context, imageURL string, withOrigin bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	if withOrigin && f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
		req.Header.Set("Origin", f.Referer)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("enrich: fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("enrich: read image body: %w", err)
	}
	return data, nil
}
