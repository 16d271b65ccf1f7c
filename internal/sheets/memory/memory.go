package memory

import (
	"context"
	"fmt"
	"sync"

	"finledger/internal/core"
	ports "finledger/internal/sheets"
)

// Exporter keeps exported rows in memory. It stands in for a spreadsheet
// in local runs and tests.
type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	ids  map[string]int
}

var _ ports.ExpenseExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{ids: make(map[string]int)}
}

// Export appends the expense and returns a synthetic row reference.
// Exporting the same expense id again overwrites its row.
func (x *Exporter) Export(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if i, ok := x.ids[e.ID]; ok && e.ID != "" {
		x.rows[i] = ports.Row(e)
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	x.rows = append(x.rows, ports.Row(e))
	if e.ID != "" {
		x.ids[e.ID] = len(x.rows) - 1
	}
	return fmt.Sprintf("mem:%d", len(x.rows)), nil
}

// Rows returns a copy of the exported rows.
func (x *Exporter) Rows() [][]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([][]any, len(x.rows))
	copy(out, x.rows)
	return out
}
