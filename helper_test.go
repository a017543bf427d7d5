package lotledger

import (
	"testing"
	"time"

	"github.com/ebau/lotledger/date"
	"github.com/shopspring/decimal"
)

const (
	stakeAddr  = "Stake1Acc111111111111111111111111111111111111"
	stake2Addr = "Stake2Acc111111111111111111111111111111111111"
	walletAddr = "Wa11et111111111111111111111111111111111111111"
)

// USD is a helper for tests to create usd money from const.
func USD(v float64) Money { return M(v, "USD") }

// sol converts whole SOL into lamports.
func sol(v float64) uint64 { return SOL.Amount(decimal.NewFromFloat(v)) }

// amt returns a pointer for amount arguments.
func amt(v uint64) *uint64 { return &v }

func price(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// setupLedger creates a ledger tracking one stake account with three lots:
// lot 0: 5 SOL bought 2024-01-10 at $20, lot 1: 3 SOL reward 2024-06-01 at
// $150, lot 2: 2 SOL bought 2025-03-05 at $100.
func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	db := NewLedger()
	if err := db.AddAccount(stakeAddr, SOL, "main stake"); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	lots := []struct {
		amount uint64
		when   date.Date
		price  float64
		kind   AcquisitionKind
	}{
		{sol(5), date.New(2024, time.January, 10), 20, KindPurchase},
		{sol(3), date.New(2024, time.June, 1), 150, KindReward},
		{sol(2), date.New(2025, time.March, 5), 100, KindPurchase},
	}
	for _, l := range lots {
		acq := Acquisition{When: l.when, Price: price(l.price), Kind: l.kind}
		if _, err := db.AddLot(stakeAddr, SOL, l.amount, acq); err != nil {
			t.Fatalf("AddLot() failed: %v", err)
		}
	}
	return db
}

// mustAccount fetches a test account or fails.
func mustAccount(t *testing.T, db *Ledger, address string) TrackedAccount {
	t.Helper()
	a, ok := db.GetAccount(address, SOL)
	if !ok {
		t.Fatalf("account %s is not tracked", address)
	}
	return a
}
