// Package gemini implements the annotator with a Gemini model asked to
// answer in a fixed JSON shape.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"spesevoce/internal/annotator"
	"spesevoce/internal/core"
)

const DefaultModel = "gemini-1.5-flash"

const promptTemplate = `You label short spoken sentences about personal spending.
Return only JSON with this structure and nothing else:
{"entities":[{"text":"<span from the sentence>","type":"<OTHER|COMMERCIAL_ITEM|ORGANIZATION|PERSON|LOCATION|EVENT|DATE|QUANTITY|TITLE>","score":<confidence between 0 and 1>}],"sentiment":"<POSITIVE|NEGATIVE|NEUTRAL|MIXED>"}
Use COMMERCIAL_ITEM for goods bought, ORGANIZATION for shops and companies, OTHER for generic spending items.
Sentence: %q`

var errEmptyResponse = errors.New("empty model response")

// generator hides the SDK so tests can fake the model.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type modelGenerator struct {
	model *genai.GenerativeModel
}

func (g modelGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errEmptyResponse
	}
	return b.String(), nil
}

type Client struct {
	gen    generator
	closer func() error
}

var _ annotator.Annotator = (*Client)(nil)

func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini annotator")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0)

	slog.InfoContext(ctx, "Gemini annotator ready", "component", "annotator", "model", model)
	return &Client{gen: modelGenerator{model: m}, closer: client.Close}, nil
}

func (c *Client) Annotate(ctx context.Context, text string) (core.Annotation, error) {
	raw, err := c.gen.generate(ctx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		return core.Annotation{}, fmt.Errorf("%w: generate: %w", annotator.ErrUnavailable, err)
	}
	a, err := parseResponse(raw)
	if err != nil {
		return core.Annotation{}, fmt.Errorf("%w: %w", annotator.ErrUnavailable, err)
	}
	return a, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

type response struct {
	Entities []struct {
		Text  string  `json:"text"`
		Type  string  `json:"type"`
		Score float64 `json:"score"`
	} `json:"entities"`
	Sentiment string `json:"sentiment"`
}

var knownTypes = map[core.EntityType]bool{
	core.EntityOther:          true,
	core.EntityCommercialItem: true,
	core.EntityOrganization:   true,
	core.EntityPerson:         true,
	core.EntityLocation:       true,
	core.EntityEvent:          true,
	core.EntityDate:           true,
	core.EntityQuantity:       true,
	core.EntityTitle:          true,
}

// parseResponse decodes the model output, tolerating a markdown code fence.
func parseResponse(raw string) (core.Annotation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var r response
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return core.Annotation{}, fmt.Errorf("decode model response: %w", err)
	}

	a := core.Annotation{Sentiment: strings.ToUpper(strings.TrimSpace(r.Sentiment))}
	switch a.Sentiment {
	case "POSITIVE", "NEGATIVE", "NEUTRAL", "MIXED":
	default:
		a.Sentiment = "NEUTRAL"
	}
	for _, e := range r.Entities {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		t := core.EntityType(strings.ToUpper(strings.TrimSpace(e.Type)))
		if !knownTypes[t] {
			continue
		}
		score := e.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		a.Entities = append(a.Entities, core.Entity{Text: text, Type: t, Score: score})
	}
	return a, nil
}
