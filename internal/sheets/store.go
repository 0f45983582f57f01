// Package sheets persists meal rows and daily summaries to a spreadsheet.
package sheets

import (
	"context"
	"time"

	"github.com/nutrilog/nutrilog/internal/nutrition"
)

// MealRecord is one append-only row, written once per successfully processed
// work item.
type MealRecord struct {
	// Timestamp is already localized to the target time zone.
	Timestamp time.Time
	// Items is the comma-joined original mention texts.
	Items  string
	Totals nutrition.Totals
}

// DailySummary is one rollup row.
type DailySummary struct {
	// Date is the rollup's target date, YYYY-MM-DD in the target time zone.
	Date   string
	Totals nutrition.Totals
}

// TimestampLayout is the persisted timestamp format; the rollup matches rows
// by its leading date component.
const TimestampLayout = "2006-01-02 15:04:05"

// Store is the spreadsheet collaborator: append rows, read history back for
// reporting. Totals are rounded to two decimals at the row boundary.
type Store interface {
	AppendMeal(ctx context.Context, rec MealRecord) error

	// MealRows returns every persisted meal row in append order, header
	// excluded, as raw cell values. Callers tolerate malformed rows.
	MealRows(ctx context.Context) ([][]string, error)

	AppendSummary(ctx context.Context, sum DailySummary) error
}
