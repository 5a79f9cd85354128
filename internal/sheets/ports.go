package sheets

import (
	"context"

	"spesevoce/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseIndex reports whether an expense was already written, so a
	// redelivered event does not produce a duplicate row.
	ExpenseIndex interface {
		Contains(ctx context.Context, e core.Expense) (bool, error)
	}

	Sink interface {
		ExpenseWriter
		ExpenseIndex
	}
)

// Header is the first row of an expenses sheet.
var Header = []string{"Date", "Time", "Amount", "Currency", "Category", "Description", "Confidence", "ID"}
