package lotledger

import (
	"testing"
)

func TestSaveAndFindLedger(t *testing.T) {
	dir := t.TempDir()

	db := setupLedger(t)
	db.name = "mainnet"
	if err := SaveLedger(dir, db); err != nil {
		t.Fatalf("SaveLedger() failed: %v", err)
	}

	loaded, err := FindLedger(dir, "mainnet")
	if err != nil {
		t.Fatalf("FindLedger() failed: %v", err)
	}
	if loaded.Name() != "mainnet" {
		t.Errorf("Name() = %q, want mainnet", loaded.Name())
	}
	a := mustAccount(t, loaded, stakeAddr)
	if len(a.Lots) != 3 || a.LastUpdateBalance != sol(10) {
		t.Errorf("loaded account = %+v", a)
	}
}

func TestFindLedger_Default(t *testing.T) {
	// An empty directory with an empty query yields a fresh default ledger.
	db, err := FindLedger(t.TempDir(), "")
	if err != nil {
		t.Fatalf("FindLedger() failed: %v", err)
	}
	if db.Name() != "lots" {
		t.Errorf("Name() = %q, want lots", db.Name())
	}
	if len(db.Accounts()) != 0 {
		t.Errorf("default ledger has %d accounts", len(db.Accounts()))
	}
}

func TestFindLedger_Missing(t *testing.T) {
	if _, err := FindLedger(t.TempDir(), "nope"); err == nil {
		t.Error("FindLedger() invented a ledger")
	}
}

func TestFindLedgers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"mainnet", "devnet"} {
		db := NewLedger()
		db.name = name
		if err := SaveLedger(dir, db); err != nil {
			t.Fatalf("SaveLedger(%s) failed: %v", name, err)
		}
	}
	ledgers, err := FindLedgers(dir, "")
	if err != nil {
		t.Fatalf("FindLedgers() failed: %v", err)
	}
	if len(ledgers) != 2 {
		t.Errorf("found %d ledgers, want 2", len(ledgers))
	}
}
