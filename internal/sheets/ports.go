package sheets

import (
	"context"

	"finledger/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter appends one expense to an external spreadsheet.
	ExpenseExporter interface {
		Export(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)

// Header is the column layout of exported expense rows.
var Header = []string{"Date", "Category", "Description", "Amount", "Notes", "ID"}

// Row converts an expense into spreadsheet cells in Header order. Amounts
// are written with two decimals so the sheet parses them as numbers.
func Row(e core.Expense) []any {
	return []any{
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.StringFixed(2),
		e.Notes,
		e.ID,
	}
}
