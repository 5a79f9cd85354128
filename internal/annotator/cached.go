package annotator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"spesevoce/internal/cache"
	"spesevoce/internal/core"
)

// Cached memoises successful annotations. Failures are never cached so a
// recovering provider is picked up on the next call.
type Cached struct {
	next  Annotator
	store cache.Cache[core.Annotation]
}

func NewCached(next Annotator, store cache.Cache[core.Annotation]) *Cached {
	return &Cached{next: next, store: store}
}

func (c *Cached) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	key := cacheKey(text)
	if a, ok := c.store.Get(ctx, key); ok {
		return a, nil
	}
	a, err := c.next.Annotate(ctx, text)
	if err != nil {
		return core.Annotation{}, err
	}
	c.store.Set(ctx, key, a)
	return a, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
