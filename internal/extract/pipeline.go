package extract

import (
	"context"
	"time"

	"spesevoce/internal/annotator"
	"spesevoce/internal/core"
	"spesevoce/internal/log"
)

// DefaultAnnotatorTimeout bounds a single annotator call.
const DefaultAnnotatorTimeout = 5 * time.Second

// CurrencySource yields the default currency at the moment of extraction.
type CurrencySource interface {
	Currency() core.Currency
}

// FixedCurrency is a CurrencySource that never changes.
type FixedCurrency core.Currency

func (f FixedCurrency) Currency() core.Currency { return core.Currency(f) }

// Pipeline combines an annotator with the pattern rules.
type Pipeline struct {
	annotator annotator.Annotator
	patterns  *Patterns
	currency  CurrencySource
	timeout   time.Duration
	logger    *log.Logger
}

type Option func(*Pipeline)

func WithPatterns(p *Patterns) Option {
	return func(pl *Pipeline) { pl.patterns = p }
}

func WithTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		if d > 0 {
			pl.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l.WithComponent(log.ComponentPipeline)
		}
	}
}

func NewPipeline(a annotator.Annotator, currency CurrencySource, opts ...Option) *Pipeline {
	if a == nil {
		a = annotator.Disabled{}
	}
	p := &Pipeline{
		annotator: a,
		patterns:  Default(),
		currency:  currency,
		timeout:   DefaultAnnotatorTimeout,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract never fails: an annotator error or timeout switches to the
// pattern-only path with low confidence.
func (p *Pipeline) Extract(ctx context.Context, text string) core.Extraction {
	annotation, err := p.annotate(ctx, text)
	if err != nil {
		p.logger.WarnContext(ctx, "Annotator unavailable, using pattern rules",
			log.FieldOperation, log.OpAnnotate,
			log.FieldError, err.Error())
		return p.fallback(text)
	}

	x := p.amount(text)
	if cat, ok := p.patterns.ExtractCategory(text, annotation.Entities); ok {
		x.Category = &cat
	}
	x.Confidence = core.ConfidenceMedium
	if len(annotation.Entities) > 0 {
		x.Confidence = core.ConfidenceHigh
	}
	x.Sentiment = annotation.Sentiment
	if len(annotation.Entities) > 0 {
		x.Entities = annotation.Entities
	}

	p.logger.DebugContext(ctx, "Extraction complete",
		log.FieldOperation, log.OpExtract,
		log.FieldConfidence, string(x.Confidence),
		"entities", len(annotation.Entities))
	return x
}

func (p *Pipeline) annotate(ctx context.Context, text string) (core.Annotation, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		a   core.Annotation
		err error
	}
	done := make(chan result, 1)
	go func() {
		a, err := p.annotator.Annotate(actx, text)
		done <- result{a, err}
	}()

	select {
	case r := <-done:
		return r.a, r.err
	case <-actx.Done():
		return core.Annotation{}, actx.Err()
	}
}

func (p *Pipeline) amount(text string) core.Extraction {
	var x core.Extraction
	amount, cur, ok := p.patterns.ExtractAmount(text, p.defaultCurrency())
	x.Currency = cur
	if ok {
		x.Amount = &amount
	}
	return x
}

func (p *Pipeline) fallback(text string) core.Extraction {
	x := p.amount(text)
	if cat, ok := p.patterns.ExtractCategory(text, nil); ok {
		x.Category = &cat
	}
	x.Confidence = core.ConfidenceLow
	return x
}

func (p *Pipeline) defaultCurrency() core.Currency {
	if p.currency == nil {
		return core.USD
	}
	return p.currency.Currency()
}
