package confidential

import "context"

type progressKey struct{}

// WithProgress attaches a callback receiving the status of a running flow.
func WithProgress(ctx context.Context, fn func(status string)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func Progress(ctx context.Context, status string) {
	if fn, ok := ctx.Value(progressKey{}).(func(string)); ok && fn != nil {
		fn(status)
	}
}
