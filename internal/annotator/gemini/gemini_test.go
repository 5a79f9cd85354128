package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"spesevoce/internal/annotator"
	"spesevoce/internal/core"
)

type fakeGenerator struct {
	out    string
	err    error
	prompt string
}

func (f *fakeGenerator) generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestAnnotate(t *testing.T) {
	f := &fakeGenerator{out: `{"entities":[{"text":"Rice","type":"commercial_item","score":0.93}],"sentiment":"neutral"}`}
	c := &Client{gen: f}

	a, err := c.Annotate(context.Background(), `paid 3000 naira for "rice"`)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !strings.Contains(f.prompt, `paid 3000 naira for \"rice\"`) {
		t.Fatalf("prompt does not quote the sentence: %s", f.prompt)
	}
	want := core.Entity{Text: "Rice", Type: core.EntityCommercialItem, Score: 0.93}
	if len(a.Entities) != 1 || a.Entities[0] != want {
		t.Fatalf("entities = %+v", a.Entities)
	}
	if a.Sentiment != "NEUTRAL" {
		t.Fatalf("sentiment = %q", a.Sentiment)
	}
}

func TestAnnotateErrors(t *testing.T) {
	c := &Client{gen: &fakeGenerator{err: errors.New("429 quota")}}
	if _, err := c.Annotate(context.Background(), "x"); !errors.Is(err, annotator.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	c = &Client{gen: &fakeGenerator{out: "I think you spent money"}}
	if _, err := c.Annotate(context.Background(), "x"); !errors.Is(err, annotator.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for non-JSON output, got %v", err)
	}
}

func TestParseResponse(t *testing.T) {
	raw := "```json\n" + `{"entities":[
		{"text":"  ","type":"OTHER","score":0.9},
		{"text":"Shoprite","type":"organization","score":1.4},
		{"text":"snacks","type":"PRODUCT","score":0.95},
		{"text":"fuel","type":"OTHER","score":-2}
	],"sentiment":"happy"}` + "\n```"
	a, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if a.Sentiment != "NEUTRAL" {
		t.Fatalf("unknown sentiment should become NEUTRAL, got %q", a.Sentiment)
	}
	if len(a.Entities) != 2 {
		t.Fatalf("expected blank and unknown-type entities to be dropped: %+v", a.Entities)
	}
	for _, e := range a.Entities {
		if e.Text == "snacks" {
			t.Fatalf("entity with unknown type must not be kept: %+v", e)
		}
	}
	if a.Entities[0].Type != core.EntityOrganization || a.Entities[0].Score != 1 {
		t.Fatalf("unexpected normalisation: %+v", a.Entities[0])
	}
	if a.Entities[1].Type != core.EntityOther || a.Entities[1].Score != 0 {
		t.Fatalf("negative score should clamp to 0: %+v", a.Entities[1])
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
}
