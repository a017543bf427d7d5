package lotledger

import (
	"fmt"
	"slices"
)

// This file implements lot selection: given a target amount, a policy and the
// live lots of one account, decide which lots (or portions of lots) are
// consumed. Selection mutates the account's live set; the caller is
// responsible for snapshotting first when the debit is provisional.

// orderCandidates returns the candidate lots in policy order. Lots created by
// the account itself are numbered in acquisition order, but lots received
// through an internal move carry fresh numbers with their original
// acquisition, so FIFO and LIFO sort by acquisition date. Ties keep lot-number
// order.
func orderCandidates(lots []Lot, method LotSelectionMethod) []Lot {
	ordered := slices.Clone(lots)
	switch method {
	case FirstInFirstOut:
		slices.SortStableFunc(ordered, byAcquisitionDate)
	case LastInFirstOut:
		slices.SortStableFunc(ordered, byAcquisitionDate)
		slices.Reverse(ordered)
	case HighestCostFirst:
		slices.SortStableFunc(ordered, func(x, y Lot) int {
			return y.Acquisition.Price.Cmp(x.Acquisition.Price)
		})
	}
	return ordered
}

func byAcquisitionDate(x, y Lot) int {
	switch {
	case x.Acquisition.When.Before(y.Acquisition.When):
		return -1
	case x.Acquisition.When.After(y.Acquisition.When):
		return 1
	}
	return 0
}

// extractLots consumes lots from the account to satisfy the request and
// returns the consumed portions. A nil amount means "all remaining": every
// live lot is consumed in full and no residual can exist. An explicit
// lotNumbers selection consumes exactly those lots in full; a non-nil amount
// must then match their sum.
//
// When the policy's last lot would overshoot the target, it is split: the
// consumed portion keeps the original lot number, the residual inherits the
// acquisition metadata under a new lot number.
func (a *TrackedAccount) extractLots(amount *uint64, method LotSelectionMethod, lotNumbers []uint64) ([]Lot, error) {
	if len(lotNumbers) > 0 {
		return a.extractNumbered(amount, lotNumbers)
	}

	if amount == nil {
		// Withdraw all: move the entire live set, never leaving a residual.
		consumed := a.Lots
		a.Lots = nil
		return consumed, nil
	}

	target := *amount
	if live := a.LiveAmount(); live < target {
		return nil, fmt.Errorf("%w: account %s holds %s, requested %s",
			ErrInsufficientLots, a.Address, a.Token.FormatAmount(live), a.Token.FormatAmount(target))
	}

	var consumed []Lot
	for _, lot := range orderCandidates(a.Lots, method) {
		if target == 0 {
			break
		}
		if lot.Amount <= target {
			consumed = append(consumed, lot)
			target -= lot.Amount
			a.removeLot(lot.LotNumber)
			continue
		}
		// Split the last lot: consumed part keeps the number, the residual
		// gets a new one with the same acquisition.
		part := lot
		part.Amount = target
		consumed = append(consumed, part)
		a.removeLot(lot.LotNumber)
		a.addLot(lot.Amount-target, lot.Acquisition)
		target = 0
	}
	return consumed, nil
}

// extractNumbered consumes exactly the given lots, in full.
func (a *TrackedAccount) extractNumbered(amount *uint64, lotNumbers []uint64) ([]Lot, error) {
	var consumed []Lot
	var total uint64
	seen := make(map[uint64]bool, len(lotNumbers))
	for _, n := range lotNumbers {
		if seen[n] {
			return nil, fmt.Errorf("lot %d listed twice", n)
		}
		seen[n] = true
		lot := a.Lot(n)
		if lot == nil {
			return nil, fmt.Errorf("%w: lot %d is not live in account %s", ErrInsufficientLots, n, a.Address)
		}
		consumed = append(consumed, *lot)
		total += lot.Amount
	}
	if amount != nil && *amount != total {
		return nil, fmt.Errorf("%w: selected lots hold %s, requested %s",
			ErrInsufficientLots, a.Token.FormatAmount(total), a.Token.FormatAmount(*amount))
	}
	for _, lot := range consumed {
		a.removeLot(lot.LotNumber)
	}
	return consumed, nil
}

func (a *TrackedAccount) removeLot(number uint64) {
	a.Lots = slices.DeleteFunc(a.Lots, func(l Lot) bool { return l.LotNumber == number })
}

// sumLots returns the total amount across the given lots.
func sumLots(lots []Lot) uint64 {
	var total uint64
	for _, l := range lots {
		total += l.Amount
	}
	return total
}
