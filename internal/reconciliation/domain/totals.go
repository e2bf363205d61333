package reconciliation

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimals kept on reconciled amounts.
const MoneyPlaces int32 = 2

// Totals holds the four reconciled counter amounts.
type Totals struct {
	In        decimal.Decimal `json:"in_total"`
	Out       decimal.Decimal `json:"out_total"`
	Jackpot   decimal.Decimal `json:"jackpot_total"`
	Billetero decimal.Decimal `json:"billetero_total"`
}

// Profit returns in - (out + jackpot). Billetero is informational only.
func (t Totals) Profit() decimal.Decimal {
	return t.In.Sub(t.Out.Add(t.Jackpot))
}

// Add returns the field-wise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		In:        t.In.Add(o.In),
		Out:       t.Out.Add(o.Out),
		Jackpot:   t.Jackpot.Add(o.Jackpot),
		Billetero: t.Billetero.Add(o.Billetero),
	}
}

// Sub returns the field-wise difference t - o.
func (t Totals) Sub(o Totals) Totals {
	return Totals{
		In:        t.In.Sub(o.In),
		Out:       t.Out.Sub(o.Out),
		Jackpot:   t.Jackpot.Sub(o.Jackpot),
		Billetero: t.Billetero.Sub(o.Billetero),
	}
}

// Scale multiplies every field by factor.
func (t Totals) Scale(factor decimal.Decimal) Totals {
	return Totals{
		In:        t.In.Mul(factor),
		Out:       t.Out.Mul(factor),
		Jackpot:   t.Jackpot.Mul(factor),
		Billetero: t.Billetero.Mul(factor),
	}
}

// Round rounds every field to places decimals, halves away from zero.
func (t Totals) Round(places int32) Totals {
	return Totals{
		In:        t.In.Round(places),
		Out:       t.Out.Round(places),
		Jackpot:   t.Jackpot.Round(places),
		Billetero: t.Billetero.Round(places),
	}
}

// Equal compares field values numerically.
func (t Totals) Equal(o Totals) bool {
	return t.In.Equal(o.In) && t.Out.Equal(o.Out) && t.Jackpot.Equal(o.Jackpot) && t.Billetero.Equal(o.Billetero)
}

// SumTotals folds a list of totals.
func SumTotals(items ...Totals) Totals {
	var sum Totals
	for _, item := range items {
		sum = sum.Add(item)
	}
	return sum
}
