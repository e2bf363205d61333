package reconciliation

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Scope identifies what a balance is reconciled for.
type Scope string

const (
	ScopeMachine Scope = "machine"
	ScopeCasino  Scope = "casino"
)

// ParseScope validates a scope string.
func ParseScope(value string) (Scope, error) {
	switch Scope(value) {
	case ScopeMachine, ScopeCasino:
		return Scope(value), nil
	default:
		return "", ErrInvalidScope
	}
}

// Key identifies a stored balance: one row per scope, subject and period.
type Key struct {
	Scope     Scope
	SubjectID int64
	Period    Period
}

func (k Key) String() string {
	return string(k.Scope) + "|" + strconv.FormatInt(k.SubjectID, 10) + "|" + k.Period.Key()
}

// Balance is a reconciled result for a machine or a casino over a period.
type Balance struct {
	ID          int64           `json:"id"`
	Scope       Scope           `json:"scope"`
	SubjectID   int64           `json:"subject_id"`
	Period      Period          `json:"period"`
	Totals      Totals          `json:"totals"`
	Profit      decimal.Decimal `json:"utilidad_total"`
	GeneratedAt time.Time       `json:"generated_at"`
	GeneratedBy string          `json:"generated_by"`
	Locked      bool            `json:"locked"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	LockedBy    string          `json:"locked_by,omitempty"`
}

// NewBalance builds a balance and derives its profit from totals.
func NewBalance(scope Scope, subjectID int64, period Period, totals Totals, generatedAt time.Time, generatedBy string, locked bool) (*Balance, error) {
	b := &Balance{
		Scope:       scope,
		SubjectID:   subjectID,
		Period:      period,
		Totals:      totals,
		Profit:      totals.Profit(),
		GeneratedAt: generatedAt,
		GeneratedBy: generatedBy,
		Locked:      locked,
	}
	if locked {
		lockedAt := generatedAt
		b.LockedAt = &lockedAt
		b.LockedBy = generatedBy
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks balance invariants.
func (b *Balance) Validate() error {
	if b == nil {
		return ErrNilBalance
	}
	if _, err := ParseScope(string(b.Scope)); err != nil {
		return err
	}
	if b.SubjectID <= 0 {
		return errors.New("reconciliation: invalid subject id")
	}
	if b.Period.Start.IsZero() || b.Period.Start.After(b.Period.End) {
		return ErrInvalidPeriod
	}
	if !b.Profit.Equal(b.Totals.Profit()) {
		return errors.New("reconciliation: profit does not match totals")
	}
	return nil
}

// Key returns the storage key.
func (b *Balance) Key() Key {
	return Key{Scope: b.Scope, SubjectID: b.SubjectID, Period: b.Period}
}

// IsRelockOf reports whether b re-locks stored with identical figures.
func (b *Balance) IsRelockOf(stored *Balance) bool {
	if b == nil || stored == nil {
		return false
	}
	return b.Locked && stored.Locked && b.Totals.Equal(stored.Totals)
}

// Clone returns a copy.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

// BalanceFilter narrows balance listings. Zero values match everything.
type BalanceFilter struct {
	Scope     Scope
	SubjectID int64
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// DefaultListLimit bounds unpaged listings.
const DefaultListLimit = 100

// Matches applies the non-paging part of the filter.
func (f BalanceFilter) Matches(b *Balance) bool {
	if b == nil || b.Scope != f.Scope {
		return false
	}
	if f.SubjectID > 0 && b.SubjectID != f.SubjectID {
		return false
	}
	if !f.From.IsZero() && b.Period.Start.Before(dateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && b.Period.End.After(dateOf(f.To)) {
		return false
	}
	return true
}
