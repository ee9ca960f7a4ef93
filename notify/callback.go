package notify

import "context"

// Func is called for each notification.
type Func func(ctx context.Context, n Notification) error

// Callback delivers notifications via a Go function call, for embedding
// the capture loop in a larger binary.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback { return &Callback{fn: fn} }

func (c *Callback) Send(ctx context.Context, n Notification) error {
	if c.fn != nil {
		return c.fn(ctx, n)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
