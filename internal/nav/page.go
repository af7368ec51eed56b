package nav

import "context"

// Page abstracts the live browser page the driver mutates. The rod-backed
// implementation lives in internal/browser; tests substitute a scripted
// fake. There is exactly one writer to page state at a time, so
// implementations need no internal locking for driver use.
type Page interface {
	// URL returns the current location. Best effort; implementations
	// return the last known location on transport errors.
	URL() string

	// HTML returns the full serialized DOM.
	HTML(ctx context.Context) (string, error)

	// ClickNth scrolls the index-th match of sel (document order) into
	// view and activates it.
	ClickNth(ctx context.Context, sel string, index int) error

	// Exists reports whether any element matches sel right now.
	Exists(ctx context.Context, sel string) bool

	// Back performs a history-back navigation.
	Back(ctx context.Context) error
}

// ImageEncoder is optionally implemented by pages that can encode an
// image to base64 in-page (canvas export). Failures (cross-origin
// tainting, decode errors) yield an empty string, not an error the
// driver acts on.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, imageURL string) string
}
