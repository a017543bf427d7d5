package lotledger

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ebau/lotledger/date"
)

const testSignature = "5igna111111111111111111111111111111111111111111111111111111111111111111111111111111111"

// setupRawLedger tracks one account with lots of 500, 300 and 200 raw units
// and a recorded balance of 1000.
func setupRawLedger(t *testing.T) *Ledger {
	t.Helper()
	db := NewLedger()
	if err := db.AddAccount(stakeAddr, SOL, ""); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	for i, l := range []struct {
		amount uint64
		price  float64
	}{{500, 20}, {300, 150}, {200, 100}} {
		acq := Acquisition{When: date.New(2024, time.January, 10+i), Price: price(l.price), Kind: KindPurchase}
		if _, err := db.AddLot(stakeAddr, SOL, l.amount, acq); err != nil {
			t.Fatalf("AddLot() failed: %v", err)
		}
	}
	return db
}

func TestRecordTransfer_Duplicate(t *testing.T) {
	db := setupRawLedger(t)
	if err := db.RecordTransfer(testSignature, 100, amt(100), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}
	if err := db.RecordTransfer(testSignature, 100, amt(100), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err == nil {
		t.Error("RecordTransfer() accepted a duplicate signature")
	}
}

func TestRecordTransfer_InsufficientLeavesLedgerUntouched(t *testing.T) {
	db := setupRawLedger(t)
	before := mustAccount(t, db, stakeAddr)

	err := db.RecordTransfer(testSignature, 100, amt(2000), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil)
	if !errors.Is(err, ErrInsufficientLots) {
		t.Fatalf("RecordTransfer() = %v, want ErrInsufficientLots", err)
	}
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Error("failed RecordTransfer() mutated the live lots")
	}
	if len(db.PendingTransfers()) != 0 {
		t.Error("failed RecordTransfer() left a pending record")
	}
}

func TestCancelTransfer_RestoresExactly(t *testing.T) {
	db := setupRawLedger(t)
	before := mustAccount(t, db, stakeAddr)

	// 600 splits lot 1, producing a residual under a fresh number.
	if err := db.RecordTransfer(testSignature, 100, amt(600), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}
	if err := db.CancelTransfer(testSignature); err != nil {
		t.Fatalf("CancelTransfer() failed: %v", err)
	}

	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Errorf("lots after cancel = %+v, want %+v", after.Lots, before.Lots)
	}
	if after.LastUpdateBalance != before.LastUpdateBalance {
		t.Errorf("balance after cancel = %d, want %d", after.LastUpdateBalance, before.LastUpdateBalance)
	}

	// The lot-number counter rolled back too: the next lot gets the number
	// the cancelled split residual would have used.
	lot, err := db.AddLot(stakeAddr, SOL, 50, Acquisition{When: date.Today(), Price: price(10), Kind: KindPurchase})
	if err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}
	if lot.LotNumber != 3 {
		t.Errorf("next lot number after cancel = %d, want 3", lot.LotNumber)
	}

	// Cancelling again is a no-op for crash-recovery retries.
	if err := db.CancelTransfer(testSignature); err != nil {
		t.Errorf("second CancelTransfer() = %v, want nil", err)
	}
}

func TestConfirmTransfer_Disposal(t *testing.T) {
	db := setupRawLedger(t)
	db.SetTaxRate(TaxRate{LongTermGain: 0.2, ShortTermGain: 0.4})

	if err := db.RecordTransfer(testSignature, 100, amt(600), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}
	settled := date.New(2025, time.August, 1)
	if err := db.ConfirmTransfer(testSignature, settled); err != nil {
		t.Fatalf("ConfirmTransfer() failed: %v", err)
	}

	disposed := db.DisposedLots()
	if len(disposed) != 2 {
		t.Fatalf("disposed %d lots, want 2", len(disposed))
	}
	if got := disposed[0].Lot.Amount + disposed[1].Lot.Amount; got != 600 {
		t.Errorf("disposed total = %d, want 600", got)
	}
	for _, d := range disposed {
		if d.When != settled {
			t.Errorf("disposal date = %s, want %s", d.When, settled)
		}
		// No market price is attached, so disposals price at acquisition.
		if !d.Price.Equal(d.Lot.Acquisition.Price) {
			t.Errorf("disposal price = %s, want acquisition price %s", d.Price, d.Lot.Acquisition.Price)
		}
	}

	a := mustAccount(t, db, stakeAddr)
	if a.LastUpdateBalance != 400 {
		t.Errorf("balance after confirm = %d, want 400", a.LastUpdateBalance)
	}

	// A settled transfer can be neither re-confirmed nor cancelled.
	if err := db.ConfirmTransfer(testSignature, settled); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("second ConfirmTransfer() = %v, want ErrAlreadyFinalized", err)
	}
	if err := db.CancelTransfer(testSignature); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("CancelTransfer() after confirm = %v, want ErrAlreadyFinalized", err)
	}
}

func TestConfirmTransfer_InternalMove(t *testing.T) {
	db := setupRawLedger(t)
	if err := db.AddAccount(stake2Addr, SOL, "split target"); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}

	if err := db.RecordTransfer(testSignature, 100, amt(500), stakeAddr, SOL, stake2Addr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}
	if err := db.ConfirmTransfer(testSignature, date.Today()); err != nil {
		t.Fatalf("ConfirmTransfer() failed: %v", err)
	}

	if len(db.DisposedLots()) != 0 {
		t.Error("internal move created disposals")
	}
	dst := mustAccount(t, db, stake2Addr)
	if len(dst.Lots) != 1 || dst.Lots[0].Amount != 500 {
		t.Fatalf("destination lots = %+v, want one lot of 500", dst.Lots)
	}
	// Acquisition metadata survives the move.
	if got := dst.Lots[0].Acquisition.When; got != date.New(2024, time.January, 10) {
		t.Errorf("moved lot acquisition date = %s, want 2024-01-10", got)
	}
	if dst.LastUpdateBalance != 500 {
		t.Errorf("destination balance = %d, want 500", dst.LastUpdateBalance)
	}
}

func TestConfirmTransfer_UnknownSignature(t *testing.T) {
	db := setupRawLedger(t)
	if err := db.ConfirmTransfer("nope", date.Today()); !errors.Is(err, ErrUnknownSignature) {
		t.Errorf("ConfirmTransfer() = %v, want ErrUnknownSignature", err)
	}
	if err := db.CancelTransfer("nope"); !errors.Is(err, ErrUnknownSignature) {
		t.Errorf("CancelTransfer() = %v, want ErrUnknownSignature", err)
	}
}

func TestRecordDrop(t *testing.T) {
	db := setupRawLedger(t)
	if err := db.RecordDrop(stakeAddr, SOL, amt(500), FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordDrop() failed: %v", err)
	}
	if got := len(db.DisposedLots()); got != 1 {
		t.Fatalf("disposed %d lots, want 1", got)
	}
	a := mustAccount(t, db, stakeAddr)
	if a.LastUpdateBalance != 500 {
		t.Errorf("balance after drop = %d, want 500", a.LastUpdateBalance)
	}
}

func TestRemoveAccount_WithLiveLots(t *testing.T) {
	db := setupRawLedger(t)
	if err := db.RemoveAccount(stakeAddr, SOL); !errors.Is(err, ErrLedgerInvariant) {
		t.Errorf("RemoveAccount() = %v, want ErrLedgerInvariant", err)
	}
}

func TestAdjustBalance(t *testing.T) {
	testCases := []struct {
		name         string
		chainBalance uint64
		wantFirstLot uint64
		wantBalance  uint64
	}{
		{
			name:         "small fee absorbed into the first lot",
			chainBalance: 995,
			wantFirstLot: 495,
			wantBalance:  995,
		},
		{
			name:         "shortfall equal to the first lot is left standing",
			chainBalance: 500,
			wantFirstLot: 500,
			wantBalance:  1000,
		},
		{
			name:         "chain balance not lower changes nothing",
			chainBalance: 1000,
			wantFirstLot: 500,
			wantBalance:  1000,
		},
		{
			name:         "higher chain balance changes nothing",
			chainBalance: 1200,
			wantFirstLot: 500,
			wantBalance:  1000,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupRawLedger(t)
			if err := db.AdjustBalance(stakeAddr, SOL, tc.chainBalance); err != nil {
				t.Fatalf("AdjustBalance() failed: %v", err)
			}
			a := mustAccount(t, db, stakeAddr)
			if a.Lots[0].Amount != tc.wantFirstLot {
				t.Errorf("first lot = %d, want %d", a.Lots[0].Amount, tc.wantFirstLot)
			}
			if a.LastUpdateBalance != tc.wantBalance {
				t.Errorf("balance = %d, want %d", a.LastUpdateBalance, tc.wantBalance)
			}
		})
	}
}

func TestAdjustBalance_FeeExceedsFirstLot(t *testing.T) {
	db := NewLedger()
	if err := db.AddAccount(stakeAddr, SOL, ""); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	acq := Acquisition{When: date.Today(), Price: price(100), Kind: KindPurchase}
	if _, err := db.AddLot(stakeAddr, SOL, 3, acq); err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}
	// Shortfall of 5 exceeds the 3-unit first lot: nothing moves.
	if err := db.AdjustBalance(stakeAddr, SOL, 0); err != nil {
		t.Fatalf("AdjustBalance() failed: %v", err)
	}
	a := mustAccount(t, db, stakeAddr)
	if a.Lots[0].Amount != 3 || a.LastUpdateBalance != 3 {
		t.Errorf("account changed: first lot %d balance %d, want 3 and 3", a.Lots[0].Amount, a.LastUpdateBalance)
	}
}

func TestAdjustBalance_OldestByAcquisition(t *testing.T) {
	// After a merge, the destination numbers moved lots after its own, so the
	// oldest acquisition can sit behind a higher lot number. The fee still
	// lands on the oldest-acquired lot.
	db := NewLedger()
	if err := db.AddAccount(stakeAddr, SOL, ""); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	newer := Acquisition{When: date.New(2025, time.March, 5), Price: price(100), Kind: KindPurchase}
	older := Acquisition{When: date.New(2024, time.January, 10), Price: price(20), Kind: KindPurchase}
	if _, err := db.AddLot(stakeAddr, SOL, 400, newer); err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}
	if _, err := db.AddLot(stakeAddr, SOL, 600, older); err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}

	if err := db.AdjustBalance(stakeAddr, SOL, 995); err != nil {
		t.Fatalf("AdjustBalance() failed: %v", err)
	}
	a := mustAccount(t, db, stakeAddr)
	if a.Lots[0].Amount != 400 {
		t.Errorf("newer lot = %d, want untouched 400", a.Lots[0].Amount)
	}
	if a.Lots[1].Amount != 595 {
		t.Errorf("oldest lot = %d, want 595", a.Lots[1].Amount)
	}
	if a.LastUpdateBalance != 995 {
		t.Errorf("balance = %d, want 995", a.LastUpdateBalance)
	}
}

func TestTaxRateDefaults(t *testing.T) {
	db := NewLedger()
	rate := db.GetTaxRate()
	if rate.LongTermGain != DefaultLongTermGainRate || rate.ShortTermGain != DefaultShortTermGainRate {
		t.Errorf("default rates = %+v", rate)
	}
	db.SetTaxRate(TaxRate{LongTermGain: 0.15, ShortTermGain: 0.3})
	if rate := db.GetTaxRate(); rate.LongTermGain != 0.15 || rate.ShortTermGain != 0.3 {
		t.Errorf("configured rates = %+v", rate)
	}
}
