package masterdata

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Machine is a slot machine installed in a casino.
type Machine struct {
	ID           int64           `json:"id"`
	CasinoID     int64           `json:"casino_id"`
	Brand        string          `json:"marca"`
	Model        string          `json:"modelo"`
	Serial       string          `json:"serial"`
	Asset        string          `json:"asset"`
	Denomination decimal.Decimal `json:"denominacion"`
	Active       bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks machine invariants.
func (m Machine) Validate() error {
	if m.ID <= 0 {
		return errors.New("machine: invalid id")
	}
	if m.CasinoID <= 0 {
		return errors.New("machine: invalid casino id")
	}
	if m.Serial == "" {
		return errors.New("machine: empty serial")
	}
	return nil
}

// Scale returns the denomination used to convert counter units to money.
// Values <= 0 fall back to 1.
func (m Machine) Scale() decimal.Decimal {
	if m.Denomination.Sign() <= 0 {
		return decimal.NewFromInt(1)
	}
	return m.Denomination
}
