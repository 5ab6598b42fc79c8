package store

import (
	"context"

	"github.com/dunamismax/pixellab/internal/domain"
)

// UsageStore persists per-request usage records. Writing the same request id
// twice keeps the first record.
type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}

// UsageLedger is a UsageStore that can also report running totals.
type UsageLedger interface {
	UsageStore
	Totals(ctx context.Context) (UsageTotals, error)
}

// UsageTotals aggregates stored usage records.
type UsageTotals struct {
	Requests        int64
	PixelsProcessed int64
	InputBytes      int64
	OutputBytes     int64
	ComputeTimeMS   int64
}

func (t *UsageTotals) add(usage domain.UsageLog) {
	t.Requests++
	t.PixelsProcessed += usage.PixelsProcessed
	t.InputBytes += usage.InputBytes
	t.OutputBytes += usage.OutputBytes
	t.ComputeTimeMS += usage.ComputeTimeMS
}
