package billing

import (
	"context"
	"errors"
	"time"

	"github.com/costpulse/azure-cost-exporter/internal/config"
)

// ErrContract marks a provider response whose shape does not match the
// configured group-by policy (missing columns, short rows, wrong field
// types). Such responses must never be coerced into metrics; callers
// treat the error as fatal.
var ErrContract = errors.New("billing: response contract violation")

// Row is one cost record in canonical positional order:
//
//	[0] cost in billing currency (number)
//	[1] cost in USD (number)
//	[2] usage date as an 8-digit YYYYMMDD integer
//	[3] currency code (string)
//	[4...] one value per configured group spec, in policy order
type Row []any

// Window is a calendar-day query window, both bounds truncated to
// midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEndingAt returns the one-day window for a polling cycle at the
// given instant: start = the previous day, end = the current day.
func WindowEndingAt(now time.Time) Window {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{
		Start: end.AddDate(0, 0, -1),
		End:   end,
	}
}

// StartStamp returns the window start as the YYYYMMDD integer used to
// filter returned rows.
func (w Window) StartStamp() int {
	return w.Start.Year()*10000 + int(w.Start.Month())*100 + w.Start.Day()
}

// Client is the billing query collaborator. Implementations hold the
// group-by policy for the process lifetime and return rows in the
// canonical Row order for one account and window.
type Client interface {
	Query(ctx context.Context, target config.Target, window Window) ([]Row, error)
}
