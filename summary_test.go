package lotledger

import (
	"reflect"
	"testing"
	"time"

	"github.com/ebau/lotledger/date"
)

func TestHoldings(t *testing.T) {
	db := setupLedger(t)
	if err := db.AddAccount(walletAddr, USDC, "venue float"); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	acq := Acquisition{When: date.New(2025, time.January, 2), Price: price(1), Kind: KindPurchase}
	if _, err := db.AddLot(walletAddr, USDC, 250_000000, acq); err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}

	holdings := db.Holdings()
	if len(holdings) != 2 {
		t.Fatalf("got %d holdings, want 2", len(holdings))
	}
	// Sorted by symbol: SOL before USDC.
	if holdings[0].Token != SOL || holdings[0].Amount != sol(10) || holdings[0].Accounts != 1 {
		t.Errorf("holdings[0] = %+v", holdings[0])
	}
	if holdings[1].Token != USDC || holdings[1].Amount != 250_000000 {
		t.Errorf("holdings[1] = %+v", holdings[1])
	}
}

func TestSummarize(t *testing.T) {
	db := setupLedger(t)
	db.SetTaxRate(TaxRate{LongTermGain: 0.2, ShortTermGain: 0.4})
	prices := NewPriceMap()
	prices.Set(SOL, price(200))
	db.SetPrices(prices)
	before := mustAccount(t, db, stakeAddr)

	// Dispose the oldest lot hypothetically: 5 SOL bought at $20, sold at
	// $200, held since January 2024.
	s, err := db.Summarize(stakeAddr, SOL, amt(sol(5)), FirstInFirstOut, nil)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	if s.Amount != sol(5) {
		t.Errorf("Amount = %d, want %d", s.Amount, sol(5))
	}
	if want := USD(1000); !s.Value.Equal(want) {
		t.Errorf("Value = %s, want %s", s.Value, want)
	}
	if want := USD(100); !s.CostBasis.Equal(want) {
		t.Errorf("CostBasis = %s, want %s", s.CostBasis, want)
	}
	if want := USD(900); !s.Gain.Equal(want) || !s.LongTerm.Equal(want) {
		t.Errorf("Gain = %s, LongTerm = %s, want %s", s.Gain, s.LongTerm, want)
	}
	if want := USD(180); !s.Tax.Equal(want) {
		t.Errorf("Tax = %s, want %s", s.Tax, want)
	}

	// Summarize is a what-if: the account is untouched.
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Error("Summarize() mutated the account")
	}
}

func TestSummarize_WithoutMarketPrice(t *testing.T) {
	db := setupLedger(t)
	s, err := db.Summarize(stakeAddr, SOL, amt(sol(5)), FirstInFirstOut, nil)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	// No price map attached: the disposal prices at acquisition, so nothing
	// gains or loses.
	if !s.Gain.IsZero() {
		t.Errorf("Gain = %s, want 0", s.Gain)
	}
	if want := USD(100); !s.Value.Equal(want) {
		t.Errorf("Value = %s, want %s", s.Value, want)
	}
}

func TestSummarize_UnknownAccount(t *testing.T) {
	db := setupLedger(t)
	if _, err := db.Summarize(walletAddr, SOL, nil, FirstInFirstOut, nil); err == nil {
		t.Error("Summarize() accepted an untracked account")
	}
}
