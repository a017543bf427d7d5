package lotledger

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/ebau/lotledger/date"
	"github.com/shopspring/decimal"
)

// AcquisitionKind tags how a lot entered the ledger. Reward lots are income
// events: their acquisition value is taxed as income when disposed.
type AcquisitionKind string

const (
	KindPurchase AcquisitionKind = "purchase" // regular buy or funding deposit
	KindReward   AcquisitionKind = "reward"   // staking reward or airdrop
	KindTransfer AcquisitionKind = "transfer" // moved in from another tracked account
	KindSwap     AcquisitionKind = "swap"     // received from a token swap
)

// IsIncome reports whether the acquisition counts as an income event.
func (k AcquisitionKind) IsIncome() bool { return k == KindReward }

// ParseAcquisitionKind converts a string into an AcquisitionKind. The empty
// string defaults to purchase.
func ParseAcquisitionKind(s string) (AcquisitionKind, error) {
	switch AcquisitionKind(s) {
	case "":
		return KindPurchase, nil
	case KindPurchase, KindReward, KindTransfer, KindSwap:
		return AcquisitionKind(s), nil
	}
	return "", fmt.Errorf("invalid acquisition kind %q (purchase, reward, transfer, swap)", s)
}

// Acquisition records how and at what price a lot was acquired.
type Acquisition struct {
	When  date.Date       `json:"when"`
	Price decimal.Decimal `json:"price"` // USD per whole unit
	Kind  AcquisitionKind `json:"kind"`
}

// Lot is a discrete, dated, priced quantity of a token, tracked for cost
// basis. Amount is in the token's smallest unit and is always positive while
// the lot is live.
type Lot struct {
	LotNumber   uint64      `json:"lot"`
	Amount      uint64      `json:"amount"`
	Acquisition Acquisition `json:"acquisition"`
}

// CostBasis returns the acquisition value of the lot in USD.
func (l Lot) CostBasis(t Token) Money {
	return M(t.UIAmount(l.Amount).Mul(l.Acquisition.Price), "USD")
}

// LongTermOn reports whether disposing the lot on the given date qualifies as
// a long-term holding (365 calendar days or more).
func (l Lot) LongTermOn(when date.Date) bool {
	return when.DaysSince(l.Acquisition.When) >= 365
}

// DisposedLot is a lot that left the live set. The originating lot is moved
// here, not copied; the record is immutable and used only for reporting.
type DisposedLot struct {
	Lot   Lot             `json:"lot"`
	Token Token           `json:"token"`
	Price decimal.Decimal `json:"price"` // USD per whole unit at disposal
	When  date.Date       `json:"when"`
}

// Gain returns the realized gain of the disposal in USD.
func (d DisposedLot) Gain() Money {
	return M(d.Token.UIAmount(d.Lot.Amount).Mul(d.Price.Sub(d.Lot.Acquisition.Price)), "USD")
}

// TrackedAccount is one on-chain account whose holdings are tracked as lots.
// It is owned by the Ledger and mutated only through Ledger operations.
type TrackedAccount struct {
	Address           string
	Token             Token
	Description       string
	Lots              []Lot
	LastUpdateBalance uint64 // last known on-chain balance, smallest units

	// nextLotNumber is the monotonic per-account counter; lot numbers are
	// never reused within the account's lifetime.
	nextLotNumber uint64
}

func (a *TrackedAccount) String() string {
	return fmt.Sprintf("%s (%s) %s", a.Address, a.Token, a.Token.FormatAmount(a.LastUpdateBalance))
}

// LiveAmount returns the sum of all live lot amounts.
func (a *TrackedAccount) LiveAmount() uint64 {
	var total uint64
	for _, l := range a.Lots {
		total += l.Amount
	}
	return total
}

// Lot returns the live lot with the given number, or nil.
func (a *TrackedAccount) Lot(number uint64) *Lot {
	for i := range a.Lots {
		if a.Lots[i].LotNumber == number {
			return &a.Lots[i]
		}
	}
	return nil
}

// newLotNumber assigns the next lot number.
func (a *TrackedAccount) newLotNumber() uint64 {
	n := a.nextLotNumber
	a.nextLotNumber++
	return n
}

// addLot appends a lot assigned from this account's counter, keeping the
// live set ordered by lot number.
func (a *TrackedAccount) addLot(amount uint64, acq Acquisition) Lot {
	lot := Lot{LotNumber: a.newLotNumber(), Amount: amount, Acquisition: acq}
	a.Lots = append(a.Lots, lot)
	a.sortLots()
	return lot
}

func (a *TrackedAccount) sortLots() {
	slices.SortFunc(a.Lots, func(x, y Lot) int {
		return cmp.Compare(x.LotNumber, y.LotNumber)
	})
}

// snapshotLots returns a deep copy of the live lot slice, used to make the
// record→cancel rollback byte-identical.
func (a *TrackedAccount) snapshotLots() []Lot {
	return slices.Clone(a.Lots)
}
