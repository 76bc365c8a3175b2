package requestctx

import (
	"context"

	"github.com/genrelay/server/internal/model"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// WithSubject stores the resolved caller in ctx.
func WithSubject(ctx context.Context, subject model.Subject) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject returns the caller stored in ctx, if any.
func Subject(ctx context.Context) (model.Subject, bool) {
	if ctx == nil {
		return model.Subject{}, false
	}
	s, ok := ctx.Value(subjectKey).(model.Subject)
	return s, ok
}
