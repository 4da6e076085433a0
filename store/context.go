package store

import (
	"context"
	"time"
)

type timeoutContextKey struct{}

// WithTimeout attaches a per-call statement timeout to ctx. It overrides the
// store default for calls made with the returned context.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, timeoutContextKey{}, d)
}

func timeoutFromContext(ctx context.Context) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	d, ok := ctx.Value(timeoutContextKey{}).(time.Duration)
	return d, ok
}
