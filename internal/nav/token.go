package nav

import "sync/atomic"

// Token is a cooperative cancellation flag shared between the driver and
// whatever control surface requested the run. There is no hard interrupt:
// the flag is checked before each tile and after each navigation, so an
// in-flight bounded wait runs to its own bound before cancellation takes
// effect.
type Token struct {
	flag atomic.Bool
}

// NewToken returns a fresh, uncancelled token.
func NewToken() *Token { return &Token{} }

// Cancel requests the automation to stop at the next check point.
func (t *Token) Cancel() {
	if t != nil {
		t.flag.Store(true)
	}
}

// Cancelled reports whether cancellation was requested. A nil token is
// never cancelled.
func (t *Token) Cancelled() bool {
	return t != nil && t.flag.Load()
}
