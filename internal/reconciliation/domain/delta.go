package reconciliation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	counters "casino-cuadres/internal/counters/domain"
)

// DeltaMode selects how snapshots in a period become totals.
type DeltaMode string

const (
	// DeltaModeEndpoints differences the closing and opening snapshots and
	// scales by denomination.
	DeltaModeEndpoints DeltaMode = "endpoints"
	// DeltaModeSum adds every in-range snapshot unscaled. It treats each
	// snapshot as a per-event amount and must be selected explicitly.
	DeltaModeSum DeltaMode = "sum"
)

// ParseDeltaMode validates a mode name. Empty means endpoints.
func ParseDeltaMode(value string) (DeltaMode, error) {
	switch DeltaMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", DeltaModeEndpoints:
		return DeltaModeEndpoints, nil
	case DeltaModeSum:
		return DeltaModeSum, nil
	default:
		return "", fmt.Errorf("reconciliation: unknown delta mode %q", value)
	}
}

// Delta is the per-machine computation over a period.
type Delta struct {
	MachineID     int64              `json:"machine_id"`
	Period        Period             `json:"period"`
	Mode          DeltaMode          `json:"mode"`
	Totals        Totals             `json:"totals"`
	Denomination  decimal.Decimal    `json:"denominacion"`
	First         *counters.Snapshot `json:"first_snapshot"`
	Last          *counters.Snapshot `json:"last_snapshot"`
	SnapshotCount int                `json:"snapshot_count"`
}

// Profit returns the delta's profit.
func (d Delta) Profit() decimal.Decimal {
	return d.Totals.Profit()
}

// SnapshotTotals lifts the four meter fields of a snapshot.
func SnapshotTotals(s counters.Snapshot) Totals {
	return Totals{In: s.In, Out: s.Out, Jackpot: s.Jackpot, Billetero: s.Billetero}
}
