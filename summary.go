package lotledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ebau/lotledger/date"
)

// Holding is the aggregate position in one token across every tracked
// account.
type Holding struct {
	Token    Token
	Amount   uint64 // live lot amount, smallest units
	Accounts int
}

// Summary describes the outcome of disposing a set of live lots at the
// current market price, before any transfer is recorded.
type Summary struct {
	Token     Token
	Amount    uint64
	Value     Money
	CostBasis Money
	ShortTerm Money
	LongTerm  Money
	Gain      Money
	Tax       Money
}

// Holdings sums live lots per token over all tracked accounts.
func (l *Ledger) Holdings() []Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byToken := make(map[Token]*Holding)
	for _, a := range l.accounts {
		h, ok := byToken[a.Token]
		if !ok {
			h = &Holding{Token: a.Token}
			byToken[a.Token] = h
		}
		h.Amount += a.LiveAmount()
		h.Accounts++
	}

	holdings := make([]Holding, 0, len(byToken))
	for _, h := range byToken {
		holdings = append(holdings, *h)
	}
	slices.SortFunc(holdings, func(x, y Holding) int {
		return strings.Compare(x.Token.Symbol(), y.Token.Symbol())
	})
	return holdings
}

// Summarize prices a hypothetical disposal of the account's lots selected by
// amount, method and explicit lot numbers, settling today. The ledger is not
// modified.
func (l *Ledger) Summarize(address string, token Token, amount *uint64, method LotSelectionMethod, lotNumbers []uint64) (*Summary, error) {
	l.mu.RLock()
	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		l.mu.RUnlock()
		return nil, fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	// extractLots mutates, so run the selection on a scratch copy.
	scratch := &TrackedAccount{
		Address:       a.Address,
		Token:         a.Token,
		Lots:          a.snapshotLots(),
		nextLotNumber: a.nextLotNumber,
	}
	rate := l.taxRate
	prices := l.prices
	l.mu.RUnlock()

	selected, err := scratch.extractLots(amount, method, lotNumbers)
	if err != nil {
		return nil, err
	}

	taxRate := TaxRate{LongTermGain: DefaultLongTermGainRate, ShortTermGain: DefaultShortTermGainRate}
	if rate != nil {
		taxRate = *rate
	}
	today := date.Today()
	disposed := make([]DisposedLot, 0, len(selected))
	for _, lot := range selected {
		price := lot.Acquisition.Price
		if prices != nil {
			if p, ok := prices.Get(token); ok {
				price = p
			}
		}
		disposed = append(disposed, DisposedLot{Lot: lot, Token: token, Price: price, When: today})
	}
	report := CalculateGains(disposed, taxRate)

	return &Summary{
		Token:     token,
		Amount:    sumLots(selected),
		Value:     report.Proceeds,
		CostBasis: report.CostBasis,
		ShortTerm: report.ShortTerm,
		LongTerm:  report.LongTerm,
		Gain:      report.Gain,
		Tax:       report.Tax,
	}, nil
}
