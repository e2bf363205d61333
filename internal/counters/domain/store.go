package counters

import (
	"context"
	"time"
)

// Store reads and writes counter snapshots.
//
// Range bounds are half-open: start <= At < end. ListInRange orders by At ascending.
type Store interface {
	ListInRange(ctx context.Context, machineID int64, start, end time.Time) ([]Snapshot, error)
	ListByCasinoAndDate(ctx context.Context, casinoID int64, start, end time.Time) ([]Snapshot, error)
	Insert(ctx context.Context, snapshot *Snapshot) error
	// UpdateBatch applies corrections to the casino's snapshots on date and
	// returns the rewritten rows. Last writer wins per row.
	UpdateBatch(ctx context.Context, casinoID int64, date time.Time, corrections []Correction, actor string, at time.Time) ([]Snapshot, error)
}

// DayRange returns the half-open window covering the civil date of day.
func DayRange(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
