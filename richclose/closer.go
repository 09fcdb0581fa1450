package richclose

import (
	"context"
	"time"
)

type WithContextCloser interface {
	CloseWithContext(ctx context.Context) error
}

func CloseAndWait(closer WithContextCloser, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	return closer.CloseWithContext(ctx)
}

// CloseAll closes closers in order and returns the first error.
func CloseAll(ctx context.Context, closers ...WithContextCloser) error {
	var first error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.CloseWithContext(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Closer interface {
	Close(ctx context.Context) error
}

type closerWrapper struct {
	closer Closer
}

func (c closerWrapper) CloseWithContext(ctx context.Context) error {
	return c.closer.Close(ctx)
}

// WrapCloserContext adapts types with a Close(ctx) method, such as a key
// source backed by a database client.
func WrapCloserContext(closer Closer) WithContextCloser {
	return closerWrapper{closer: closer}
}
