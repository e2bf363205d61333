package counters

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the local wall-clock layout snapshots are recorded with.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	// ErrNegativeAmount is returned when a meter amount is negative.
	ErrNegativeAmount = errors.New("counters: negative amount")
	// ErrInvalidMachine is returned for an empty or unknown machine id.
	ErrInvalidMachine = errors.New("counters: invalid machine")
	// ErrEmptyTimestamp is returned when a snapshot has no timestamp.
	ErrEmptyTimestamp = errors.New("counters: empty timestamp")
	// ErrNilSnapshot is returned when saving a nil snapshot.
	ErrNilSnapshot = errors.New("counters: nil snapshot")
	// ErrEmptyCorrection is returned when a correction changes nothing.
	ErrEmptyCorrection = errors.New("counters: empty correction")
)

// Snapshot is a point-in-time meter reading of one machine.
type Snapshot struct {
	ID        int64           `json:"id"`
	MachineID int64           `json:"machine_id"`
	CasinoID  int64           `json:"casino_id"`
	At        time.Time       `json:"at"`
	In        decimal.Decimal `json:"in"`
	Out       decimal.Decimal `json:"out"`
	Jackpot   decimal.Decimal `json:"jackpot"`
	Billetero decimal.Decimal `json:"billetero"`
	CreatedAt time.Time       `json:"created_at"`
	CreatedBy string          `json:"created_by"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	UpdatedBy string          `json:"updated_by,omitempty"`
}

// Validate checks snapshot invariants.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrNilSnapshot
	}
	if s.MachineID <= 0 {
		return ErrInvalidMachine
	}
	if s.At.IsZero() {
		return ErrEmptyTimestamp
	}
	for _, v := range []decimal.Decimal{s.In, s.Out, s.Jackpot, s.Billetero} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

// Clone returns a copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// Correction rewrites meter fields of one machine's snapshots on a date.
// When At is set only the snapshot with that exact timestamp is touched.
type Correction struct {
	MachineID int64            `json:"machine_id"`
	At        *time.Time       `json:"at,omitempty"`
	In        *decimal.Decimal `json:"in,omitempty"`
	Out       *decimal.Decimal `json:"out,omitempty"`
	Jackpot   *decimal.Decimal `json:"jackpot,omitempty"`
	Billetero *decimal.Decimal `json:"billetero,omitempty"`
}

// Validate checks the correction targets a machine and changes something valid.
func (c Correction) Validate() error {
	if c.MachineID <= 0 {
		return ErrInvalidMachine
	}
	changed := false
	for _, v := range []*decimal.Decimal{c.In, c.Out, c.Jackpot, c.Billetero} {
		if v == nil {
			continue
		}
		if v.IsNegative() {
			return ErrNegativeAmount
		}
		changed = true
	}
	if !changed {
		return ErrEmptyCorrection
	}
	return nil
}

// Apply writes the correction's field changes onto s.
func (c Correction) Apply(s *Snapshot, actor string, at time.Time) {
	if c.In != nil {
		s.In = *c.In
	}
	if c.Out != nil {
		s.Out = *c.Out
	}
	if c.Jackpot != nil {
		s.Jackpot = *c.Jackpot
	}
	if c.Billetero != nil {
		s.Billetero = *c.Billetero
	}
	s.UpdatedAt = at
	s.UpdatedBy = actor
}

// Targets reports whether the correction applies to s.
func (c Correction) Targets(s *Snapshot) bool {
	if s == nil || s.MachineID != c.MachineID {
		return false
	}
	if c.At != nil {
		return s.At.Equal(*c.At)
	}
	return true
}
