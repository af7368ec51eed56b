package enrich

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/tilewalk/record"
)

// Enricher fills ImageBase64 and FaceResult on records that still carry
// an image URL. Records that already hold an encoded image or a face
// result keep them. Fetch and Detect are injectable for tests; either
// may be nil to skip that stage.
type Enricher struct {
	Fetch       func(ctx context.Context, imageURL string) string
	Detect      func(ctx context.Context, imageBase64 string) json.RawMessage
	Concurrency int
	Logger      *slog.Logger
}

// Run enriches records in place. Records with no image URL, or whose
// image download fails, end with both enrichment fields empty. Returns
// early only on context cancellation.
func (e *Enricher) Run(ctx context.Context, records []record.ProfileRecord) error {
	if e.Fetch == nil && e.Detect == nil {
		return nil
	}
	limit := e.Concurrency
	if limit <= 0 {
		limit = 4
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range records {
		rec := &records[i]
		if rec.ImageURL == "" && rec.ImageBase64 == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// The page walk may already have encoded the image in-page;
			// that copy survives CDNs that reject anonymous fetches.
			if e.Fetch != nil && rec.ImageBase64 == "" {
				rec.ImageBase64 = e.Fetch(gctx, rec.ImageURL)
			}
			if rec.ImageBase64 == "" {
				log.Debug("enrich: no image for record", "url", rec.ProfileURL)
				return nil
			}
			if e.Detect != nil && rec.FaceResult == nil {
				rec.FaceResult = e.Detect(gctx, rec.ImageBase64)
			}
			return nil
		})
	}
	return g.Wait()
}
