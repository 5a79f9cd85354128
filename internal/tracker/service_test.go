package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spesevoce/internal/annotator"
	"spesevoce/internal/core"
	"spesevoce/internal/extract"
	"spesevoce/internal/ledger"
	"spesevoce/internal/ledger/memory"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []core.Expense
	err       error
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var fixedNow = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

func newService(t *testing.T, a annotator.Annotator, opts ...Option) (*Service, *Preference) {
	t.Helper()
	pref := NewPreference(core.USD)
	p := extract.NewPipeline(a, pref)
	l := ledger.New(memory.New(), time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(l, p, pref, opts...), pref
}

func TestPreference(t *testing.T) {
	p := NewPreference("EUR")
	if p.Currency() != core.USD {
		t.Fatalf("unsupported initial currency should fall back to USD, got %s", p.Currency())
	}

	tests := []struct {
		raw     string
		want    core.Currency
		wantErr bool
	}{
		{"NGN", core.NGN, false},
		{"USD", core.USD, false},
		{"ngn", core.USD, true},
		{"EUR", core.USD, true},
		{"", core.USD, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := p.Set(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) err = %v", tt.raw, err)
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidCurrency) {
				t.Fatalf("expected ErrInvalidCurrency, got %v", err)
			}
			if p.Currency() != tt.want {
				t.Fatalf("Currency() = %s, want %s", p.Currency(), tt.want)
			}
		})
	}
}

func TestProcessSpeech_RecordsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newService(t, annotator.Disabled{}, WithPublisher(pub))

	res, err := s.ProcessSpeech(context.Background(), "I spent 50 dollars on food")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	if !res.Recorded || res.Expense == nil || res.Expense.ID == 0 {
		t.Fatalf("expected a recorded expense, got %+v", res)
	}
	if res.Confidence != core.ConfidenceLow {
		t.Errorf("confidence = %s, want low on fallback", res.Confidence)
	}
	if res.DailyTotal != 50 || len(res.TodayExpenses) != 1 || res.CurrencySymbol != "$" {
		t.Errorf("unexpected totals: %+v", res)
	}
	if !res.Expense.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v, want clock time", res.Expense.Timestamp)
	}
	if len(pub.published) != 1 || pub.published[0].ID != res.Expense.ID {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestProcessSpeech_NoMatchRecordsNothing(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newService(t, annotator.Disabled{}, WithPublisher(pub))

	res, err := s.ProcessSpeech(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	if res.Recorded || res.Amount != nil || res.Category != nil {
		t.Fatalf("expected nothing extracted, got %+v", res)
	}
	if res.Currency != core.USD || res.DailyTotal != 0 || len(res.TodayExpenses) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(pub.published) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestProcessSpeech_UsesPreferenceAtCallTime(t *testing.T) {
	s, _ := newService(t, annotator.Disabled{})
	if _, err := s.SetCurrency("NGN"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}

	res, err := s.ProcessSpeech(context.Background(), "spent 300 on lunch")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	if res.Currency != core.NGN || res.CurrencySymbol != "₦" || res.DailyTotal != 300 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestProcessSpeech_TextRequired(t *testing.T) {
	s, _ := newService(t, annotator.Disabled{})
	for _, text := range []string{"", "   "} {
		if _, err := s.ProcessSpeech(context.Background(), text); !errors.Is(err, core.ErrTextRequired) {
			t.Errorf("ProcessSpeech(%q) err = %v, want ErrTextRequired", text, err)
		}
	}
}

func TestProcessSpeech_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s, _ := newService(t, annotator.Disabled{}, WithPublisher(pub))

	res, err := s.ProcessSpeech(context.Background(), "paid 200 naira for bread")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	if !res.Recorded {
		t.Fatal("expense should still be recorded")
	}
}

func TestProcessSpeech_AnnotatedCategory(t *testing.T) {
	a := annotator.Static{Annotation: core.Annotation{
		Entities:  []core.Entity{{Text: "Uber", Type: core.EntityOrganization, Score: 0.93}},
		Sentiment: "NEGATIVE",
	}}
	s, _ := newService(t, a)

	res, err := s.ProcessSpeech(context.Background(), "I paid 20 dollars for Uber")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	if res.Confidence != core.ConfidenceHigh || *res.Category != "uber" || res.Expense.Sentiment != "NEGATIVE" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSpeechResult_JSONShape(t *testing.T) {
	s, _ := newService(t, annotator.Disabled{})
	res, err := s.ProcessSpeech(context.Background(), "I spent 50 dollars on food")
	if err != nil {
		t.Fatalf("ProcessSpeech: %v", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"transcript", "amount", "currency", "category", "confidence", "recorded", "dailyTotal", "todayExpenses", "currencySymbol"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, b)
		}
	}
	if _, ok := m["entities"]; ok {
		t.Errorf("fallback result should not carry entities: %s", b)
	}
}

func TestDailySummaryAndExportDefaults(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, annotator.Disabled{})
	for _, text := range []string{"I spent 50 dollars on food", "paid 200 naira for bread", "spent 5,000 naira on fuel"} {
		if _, err := s.ProcessSpeech(ctx, text); err != nil {
			t.Fatalf("ProcessSpeech(%q): %v", text, err)
		}
	}

	sum, err := s.DailySummary(ctx, "")
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if sum.Currency != core.USD || sum.DailyTotal != 50 {
		t.Errorf("default summary = %+v", sum)
	}

	if _, err := s.SetCurrency("NGN"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	sum, _ = s.DailySummary(ctx, "")
	if sum.Currency != core.NGN || sum.DailyTotal != 5200 || sum.CategoryBreakdown["fuel"] != 5000 {
		t.Errorf("NGN summary = %+v", sum)
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf, ""); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "USD") {
		t.Errorf("export should default to USD, got %q", buf.String())
	}
}

func TestConcurrentSpeechAndCurrency(t *testing.T) {
	s, _ := newService(t, annotator.Disabled{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.ProcessSpeech(ctx, "I spent 10 dollars on snacks"); err != nil {
				t.Errorf("ProcessSpeech: %v", err)
			}
		}()
		go func(i int) {
			defer wg.Done()
			cur := "USD"
			if i%2 == 0 {
				cur = "NGN"
			}
			if _, err := s.SetCurrency(cur); err != nil {
				t.Errorf("SetCurrency: %v", err)
			}
		}(i)
	}
	wg.Wait()

	sum, err := s.DailySummary(ctx, "USD")
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if sum.TotalExpenses != 20 || sum.DailyTotal != 200 {
		t.Fatalf("summary = %+v", sum)
	}
}
