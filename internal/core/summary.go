package core

// UncategorizedBucket collects expenses without a category in summaries.
const UncategorizedBucket = "other"

// DailySummary aggregates the ledger for one currency and calendar day.
type DailySummary struct {
	TotalExpenses     int              `json:"totalExpenses"`
	DailyTotal        int64            `json:"dailyTotal"`
	CategoryBreakdown map[string]int64 `json:"categoryBreakdown"`
	RecentExpenses    []Expense        `json:"recentExpenses"`
	Currency          Currency         `json:"currency"`
	CurrencySymbol    string           `json:"currencySymbol"`
}
