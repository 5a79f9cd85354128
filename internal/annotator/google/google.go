// Package google implements the annotator on the Cloud Natural Language API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	language "google.golang.org/api/language/v2"
	goption "google.golang.org/api/option"

	"spesevoce/internal/annotator"
	"spesevoce/internal/core"
)

// Sentiment thresholds on the document score in [-1, 1].
const (
	positiveScore  = 0.25
	negativeScore  = -0.25
	mixedMagnitude = 1.0
)

// api is the subset of the Natural Language service used here.
type api interface {
	analyzeEntities(ctx context.Context, doc *language.Document) (*language.AnalyzeEntitiesResponse, error)
	analyzeSentiment(ctx context.Context, doc *language.Document) (*language.AnalyzeSentimentResponse, error)
}

type serviceAPI struct {
	svc *language.Service
}

func (s serviceAPI) analyzeEntities(ctx context.Context, doc *language.Document) (*language.AnalyzeEntitiesResponse, error) {
	return s.svc.Documents.AnalyzeEntities(&language.AnalyzeEntitiesRequest{
		Document:     doc,
		EncodingType: "UTF8",
	}).Context(ctx).Do()
}

func (s serviceAPI) analyzeSentiment(ctx context.Context, doc *language.Document) (*language.AnalyzeSentimentResponse, error) {
	return s.svc.Documents.AnalyzeSentiment(&language.AnalyzeSentimentRequest{
		Document:     doc,
		EncodingType: "UTF8",
	}).Context(ctx).Do()
}

// Client annotates English text with entities and a sentiment label.
type Client struct {
	api          api
	languageCode string
}

var _ annotator.Annotator = (*Client)(nil)

// Config selects credentials. APIKey wins over CredentialsFile; with neither
// set, Application Default Credentials are used.
type Config struct {
	APIKey          string
	CredentialsFile string
	LanguageCode    string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := language.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create language service: %w", err)
	}
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en"
	}
	slog.InfoContext(ctx, "Cloud Natural Language annotator ready", "component", "annotator", "language", lang)
	return &Client{api: serviceAPI{svc: svc}, languageCode: lang}, nil
}

func clientOptions(cfg Config) ([]goption.ClientOption, error) {
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		return []goption.ClientOption{goption.WithAPIKey(cfg.APIKey)}, nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read language credentials file: %w", err)
		}
		return []goption.ClientOption{
			goption.WithCredentialsJSON(raw),
			goption.WithScopes(language.CloudLanguageScope),
		}, nil
	}
	return nil, nil
}

// Annotate runs entity and sentiment analysis concurrently. Any failure is
// reported as annotator.ErrUnavailable.
func (c *Client) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	doc := &language.Document{
		Content:      text,
		Type:         "PLAIN_TEXT",
		LanguageCode: c.languageCode,
	}

	var (
		entities  *language.AnalyzeEntitiesResponse
		sentiment *language.AnalyzeSentimentResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entities, err = c.api.analyzeEntities(gctx, doc)
		if err != nil {
			return fmt.Errorf("analyze entities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sentiment, err = c.api.analyzeSentiment(gctx, doc)
		if err != nil {
			return fmt.Errorf("analyze sentiment: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Annotation{}, fmt.Errorf("%w: %w", annotator.ErrUnavailable, err)
	}
	if entities == nil || sentiment == nil {
		return core.Annotation{}, fmt.Errorf("%w: %w", annotator.ErrUnavailable, errors.New("empty response"))
	}

	return core.Annotation{
		Entities:  mapEntities(entities.Entities),
		Sentiment: sentimentLabel(sentiment.DocumentSentiment),
	}, nil
}

// mapEntities converts API entities. The score is the highest mention probability.
func mapEntities(in []*language.Entity) []core.Entity {
	out := make([]core.Entity, 0, len(in))
	for _, e := range in {
		if e == nil || e.Name == "" {
			continue
		}
		var score float64
		for _, m := range e.Mentions {
			if m != nil && m.Probability > score {
				score = m.Probability
			}
		}
		out = append(out, core.Entity{
			Text:  e.Name,
			Type:  entityType(e.Type),
			Score: score,
		})
	}
	return out
}

func entityType(t string) core.EntityType {
	switch t {
	case "CONSUMER_GOOD":
		return core.EntityCommercialItem
	case "ORGANIZATION":
		return core.EntityOrganization
	case "PERSON":
		return core.EntityPerson
	case "LOCATION", "ADDRESS":
		return core.EntityLocation
	case "EVENT":
		return core.EntityEvent
	case "DATE":
		return core.EntityDate
	case "NUMBER", "PRICE", "PHONE_NUMBER":
		return core.EntityQuantity
	case "WORK_OF_ART":
		return core.EntityTitle
	}
	return core.EntityOther
}

func sentimentLabel(s *language.Sentiment) string {
	if s == nil {
		return "NEUTRAL"
	}
	switch {
	case s.Score >= positiveScore:
		return "POSITIVE"
	case s.Score <= negativeScore:
		return "NEGATIVE"
	case s.Magnitude >= mixedMagnitude:
		return "MIXED"
	}
	return "NEUTRAL"
}
