// Package annotator defines the entity and sentiment capability used by the
// extraction pipeline, plus small implementations for tests and degraded mode.
package annotator

import (
	"context"
	"errors"
	"fmt"

	"spesevoce/internal/core"
)

// ErrUnavailable wraps every annotator failure. Callers fall back on it.
var ErrUnavailable = errors.New("annotator unavailable")

// Annotator returns entities and a sentiment label for a piece of text.
type Annotator interface {
	Annotate(ctx context.Context, text string) (core.Annotation, error)
}

// Func adapts a plain function to Annotator.
type Func func(ctx context.Context, text string) (core.Annotation, error)

func (f Func) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	return f(ctx, text)
}

// Disabled always fails. It is used when no provider is configured so the
// pipeline runs on pattern rules alone.
type Disabled struct{}

func (Disabled) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	return core.Annotation{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
}

// Static returns the same annotation for every input.
type Static struct {
	Annotation core.Annotation
}

func (s Static) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return core.Annotation{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	a := s.Annotation
	a.Entities = append([]core.Entity(nil), s.Annotation.Entities...)
	return a, nil
}
