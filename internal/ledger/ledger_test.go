package ledger_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spesevoce/internal/core"
	"spesevoce/internal/ledger"
	"spesevoce/internal/ledger/memory"
)

var lagos = time.FixedZone("WAT", 3600)

func expense(at time.Time, amount string, cur core.Currency, cat, transcript string) core.Expense {
	return core.Expense{
		Timestamp:  at,
		Transcript: transcript,
		Amount:     amount,
		Currency:   cur,
		Category:   cat,
		Confidence: core.ConfidenceLow,
	}
}

func TestRecordAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), lagos)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, lagos)

	var last int64
	for i := 0; i < 3; i++ {
		e, err := l.Record(ctx, expense(now, "1", core.USD, "food", "x"))
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if e.ID <= last {
			t.Fatalf("ids not increasing: %d after %d", e.ID, last)
		}
		last = e.ID
	}
}

func TestRecordRejectsIncomplete(t *testing.T) {
	l := ledger.New(memory.New(), lagos)
	now := time.Now()
	if _, err := l.Record(context.Background(), expense(now, "", core.USD, "food", "x")); !errors.Is(err, core.ErrMissingAmount) {
		t.Fatalf("expected ErrMissingAmount, got %v", err)
	}
	if _, err := l.Record(context.Background(), expense(now, "5", core.USD, "", "x")); !errors.Is(err, core.ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
}

func TestDailyTotalAndSummary(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), lagos)
	today := time.Date(2025, 6, 1, 9, 0, 0, 0, lagos)
	yesterday := today.Add(-24 * time.Hour)

	records := []core.Expense{
		expense(yesterday, "999", core.USD, "rent", "old"),
		expense(today, "50", core.USD, "food", "a"),
		expense(today.Add(time.Hour), "1,000", core.USD, "food", "b"),
		expense(today.Add(2*time.Hour), "20", core.NGN, "bread", "c"),
		expense(today.Add(3*time.Hour), "abc", core.USD, "junk", "d"),
	}
	for _, r := range records {
		if _, err := l.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	total, err := l.DailyTotal(ctx, core.USD, today.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("DailyTotal: %v", err)
	}
	if total != 1050 {
		t.Fatalf("DailyTotal = %d, want 1050", total)
	}

	s, err := l.DailySummary(ctx, core.USD, today)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if s.TotalExpenses != 3 || s.DailyTotal != 1050 || s.CurrencySymbol != "$" || s.Currency != core.USD {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.CategoryBreakdown["food"] != 1050 || s.CategoryBreakdown["junk"] != 0 || len(s.CategoryBreakdown) != 2 {
		t.Fatalf("unexpected breakdown: %v", s.CategoryBreakdown)
	}

	ngn, err := l.DailySummary(ctx, core.NGN, today)
	if err != nil {
		t.Fatalf("DailySummary NGN: %v", err)
	}
	if ngn.DailyTotal != 20 || ngn.CurrencySymbol != "₦" {
		t.Fatalf("unexpected NGN summary: %+v", ngn)
	}
}

func TestDayBoundaryUsesLedgerLocation(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), lagos)
	// 23:30 UTC on May 31 is 00:30 on June 1 in Lagos.
	late := time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC)
	if _, err := l.Record(ctx, expense(late, "10", core.USD, "taxi", "x")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	total, _ := l.DailyTotal(ctx, core.USD, time.Date(2025, 6, 1, 10, 0, 0, 0, lagos))
	if total != 10 {
		t.Fatalf("expected expense to count on June 1 in Lagos, total=%d", total)
	}
}

func TestRecentExpensesKeepsLastN(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), lagos)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, lagos)
	for i := 0; i < 12; i++ {
		e := expense(now.Add(time.Duration(i)*time.Minute), "1", core.USD, "food", string(rune('a'+i)))
		if _, err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	recent, err := l.RecentExpenses(ctx, core.USD, now, ledger.RecentSpeechLimit)
	if err != nil {
		t.Fatalf("RecentExpenses: %v", err)
	}
	if len(recent) != 5 || recent[0].Transcript != "h" || recent[4].Transcript != "l" {
		t.Fatalf("unexpected recent list: %+v", recent)
	}
	s, _ := l.DailySummary(ctx, core.USD, now)
	if len(s.RecentExpenses) != ledger.RecentSummaryLimit || s.RecentExpenses[0].Transcript != "c" {
		t.Fatalf("summary should list the last 10, got %d starting at %q", len(s.RecentExpenses), s.RecentExpenses[0].Transcript)
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), lagos)
	old := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	quoted := expense(now, "50", core.USD, "food", `I said "spent 50 dollars on food"`)
	for _, e := range []core.Expense{
		expense(old, "7", core.USD, "books", "older day"),
		expense(now, "300", core.NGN, "bread", "naira row"),
		quoted,
	} {
		if _, err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := l.ExportCSV(ctx, &buf, core.USD); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if !strings.Contains(buf.String(), `"I said ""spent 50 dollars on food"""`) {
		t.Fatalf("embedded quotes not doubled:\n%s", buf.String())
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 USD rows, got %d: %v", len(rows), rows)
	}
	if strings.Join(rows[0], ",") != "Date,Amount,Currency,Category,Description" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "2024-01-02T03:04:05.000Z" || rows[1][4] != "older day" {
		t.Fatalf("export should include all days in insertion order: %v", rows[1])
	}
	want := []string{"2025-06-01T08:00:00.000Z", "50", "USD", "food", quoted.Transcript}
	if strings.Join(rows[2], "|") != strings.Join(want, "|") {
		t.Fatalf("row = %v, want %v", rows[2], want)
	}
}

func TestConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := ledger.New(store, lagos)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Record(ctx, expense(now, "2", core.USD, "food", "x")); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	all, _ := store.List(ctx, core.USD)
	seen := make(map[int64]bool)
	for i, e := range all {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
		if i > 0 && all[i-1].ID >= e.ID {
			t.Fatalf("list order does not follow ids")
		}
	}
	if total, _ := l.DailyTotal(ctx, core.USD, now); total != 100 {
		t.Fatalf("total = %d, want 100", total)
	}
}

// rowsStore serves fixed rows, including ones Record would refuse.
type rowsStore struct{ rows []core.Expense }

func (s *rowsStore) Append(_ context.Context, e core.Expense) (core.Expense, error) {
	e.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, e)
	return e, nil
}

func (s *rowsStore) List(_ context.Context, currency core.Currency) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range s.rows {
		if e.Currency == currency {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *rowsStore) Close() error { return nil }

func TestDailySummaryUncategorizedBucket(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &rowsStore{rows: []core.Expense{
		{ID: 1, Timestamp: now, Amount: "40", Currency: core.USD, Category: "food", Confidence: core.ConfidenceLow},
		{ID: 2, Timestamp: now, Amount: "15", Currency: core.USD, Confidence: core.ConfidenceLow},
		{ID: 3, Timestamp: now, Amount: "5", Currency: core.USD, Category: core.UncategorizedBucket, Confidence: core.ConfidenceLow},
	}}
	l := ledger.New(store, time.UTC)

	sum, err := l.DailySummary(context.Background(), core.USD, now)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if got := sum.CategoryBreakdown[core.UncategorizedBucket]; got != 20 {
		t.Errorf("other bucket = %d, want 20", got)
	}
	if _, ok := sum.CategoryBreakdown[""]; ok {
		t.Errorf("empty category must not appear in breakdown: %v", sum.CategoryBreakdown)
	}
	var total int64
	for _, v := range sum.CategoryBreakdown {
		total += v
	}
	if total != sum.DailyTotal || sum.DailyTotal != 60 {
		t.Errorf("breakdown sums to %d, dailyTotal = %d", total, sum.DailyTotal)
	}
}
