package lotledger

import (
	"github.com/ebau/lotledger/date"
	"github.com/shopspring/decimal"
)

// GainsReport contains the results of a capital gains calculation over a set
// of disposed lots.
type GainsReport struct {
	Amounts   map[Token]uint64 // total disposed amount per token, smallest units
	Proceeds  Money            // quantity × disposal price
	CostBasis Money            // quantity × acquisition price
	Income    Money            // acquisition value of reward-kind lots
	ShortTerm Money            // gain on lots held < 365 days
	LongTerm  Money            // gain on lots held ≥ 365 days
	Gain      Money            // ShortTerm + LongTerm
	Tax       Money            // owed when Gain > 0, per the configured rates
	Lots      int
}

// FilterDisposed returns the disposals whose settlement date falls in the
// period, boundaries included.
func FilterDisposed(disposed []DisposedLot, period date.Range) []DisposedLot {
	var kept []DisposedLot
	for _, d := range disposed {
		if period.Contains(d.When) {
			kept = append(kept, d)
		}
	}
	return kept
}

// CalculateGains aggregates disposed lots into proceeds, income, and the
// short/long-term gain split. The holding period is the calendar-day distance
// between acquisition and disposal; exactly 365 days is long-term.
//
// Tax applies only to a positive total gain: when both terms contributed a
// positive gain each is taxed at its own rate, otherwise the whole gain is
// taxed at the rate of the contributing term.
func CalculateGains(disposed []DisposedLot, rate TaxRate) *GainsReport {
	report := &GainsReport{
		Amounts:   make(map[Token]uint64),
		Proceeds:  M(0, "USD"),
		CostBasis: M(0, "USD"),
		Income:    M(0, "USD"),
		ShortTerm: M(0, "USD"),
		LongTerm:  M(0, "USD"),
	}

	for _, d := range disposed {
		quantity := d.Token.UIAmount(d.Lot.Amount)
		proceeds := M(quantity.Mul(d.Price), "USD")
		basis := M(quantity.Mul(d.Lot.Acquisition.Price), "USD")

		report.Amounts[d.Token] += d.Lot.Amount
		report.Proceeds = report.Proceeds.Add(proceeds)
		report.CostBasis = report.CostBasis.Add(basis)
		if d.Lot.Acquisition.Kind.IsIncome() {
			report.Income = report.Income.Add(basis)
		}

		gain := proceeds.Sub(basis)
		if d.Lot.LongTermOn(d.When) {
			report.LongTerm = report.LongTerm.Add(gain)
		} else {
			report.ShortTerm = report.ShortTerm.Add(gain)
		}
		report.Lots++
	}

	report.Gain = report.ShortTerm.Add(report.LongTerm)
	report.Tax = tax(report.ShortTerm, report.LongTerm, rate)
	return report
}

func tax(short, long Money, rate TaxRate) Money {
	total := short.Add(long)
	if !total.IsPositive() {
		return M(0, "USD")
	}
	shortRate := decimal.NewFromFloat(rate.ShortTermGain)
	longRate := decimal.NewFromFloat(rate.LongTermGain)
	switch {
	case short.IsPositive() && long.IsPositive():
		return short.Mul(shortRate).Add(long.Mul(longRate))
	case long.IsPositive():
		return total.Mul(longRate)
	default:
		return total.Mul(shortRate)
	}
}
