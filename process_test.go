package lotledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/ebau/lotledger/date"
)

// fakeNetwork scripts the chain facade for engine tests.
type fakeNetwork struct {
	signature  string
	newAccount string // reported by Prepare for split requests
	settled    date.Date

	prepareErr  error
	simulateErr error
	submitErr   error
	awaitErr    error

	status     TxStatus
	statusDate date.Date

	balances map[string]uint64
	submits  int
	lastReq  TransferRequest
}

func (f *fakeNetwork) Prepare(ctx context.Context, req TransferRequest) (*PreparedTx, error) {
	f.lastReq = req
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	tx := &PreparedTx{Signature: f.signature, LastValidBlockHeight: 100}
	if req.Op == OpSplit {
		tx.NewAccount = f.newAccount
	}
	return tx, nil
}

func (f *fakeNetwork) Simulate(ctx context.Context, tx *PreparedTx) error { return f.simulateErr }

func (f *fakeNetwork) Submit(ctx context.Context, tx *PreparedTx) error {
	f.submits++
	return f.submitErr
}

func (f *fakeNetwork) Status(ctx context.Context, signature string, lastValidBlockHeight uint64) (TxStatus, date.Date, error) {
	return f.status, f.statusDate, nil
}

func (f *fakeNetwork) Await(ctx context.Context, signature string, lastValidBlockHeight uint64) (date.Date, error) {
	if f.awaitErr != nil {
		return date.Date{}, f.awaitErr
	}
	return f.settled, nil
}

func (f *fakeNetwork) Balance(ctx context.Context, address string) (uint64, error) {
	return f.balances[address], nil
}

func (f *fakeNetwork) TokenBalance(ctx context.Context, owner string, token Token) (uint64, error) {
	return f.balances[owner], nil
}

type fakeTransferrer struct {
	signature string
	err       error
}

func (f *fakeTransferrer) Transfer(ctx context.Context, token Token, from, to string, amount uint64) (string, error) {
	return f.signature, f.err
}

func newTestEngine(t *testing.T, net *fakeNetwork) (*Engine, *Ledger) {
	t.Helper()
	db := setupRawLedger(t)
	return NewEngine(db, net), db
}

func TestEngine_Withdraw(t *testing.T) {
	net := &fakeNetwork{
		signature: "txWithdraw",
		settled:   date.New(2025, time.August, 10),
		balances:  map[string]uint64{stakeAddr: 400},
	}
	e, db := newTestEngine(t, net)

	sig, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, amt(600), FirstInFirstOut, nil)
	if err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}
	if sig != "txWithdraw" {
		t.Errorf("signature = %q, want txWithdraw", sig)
	}
	if got := len(db.DisposedLots()); got != 2 {
		t.Errorf("disposed %d lots, want 2", got)
	}
	if got := len(db.PendingTransfers()); got != 0 {
		t.Errorf("%d transfers still pending", got)
	}
	a := mustAccount(t, db, stakeAddr)
	if a.LastUpdateBalance != 400 {
		t.Errorf("balance = %d, want 400", a.LastUpdateBalance)
	}
}

func TestEngine_Withdraw_All(t *testing.T) {
	net := &fakeNetwork{signature: "txAll", settled: date.Today()}
	e, db := newTestEngine(t, net)

	if _, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, nil, FirstInFirstOut, nil); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}
	// A full withdrawal empties the account and stops tracking it.
	if _, ok := db.GetAccount(stakeAddr, SOL); ok {
		t.Error("account still tracked after full withdrawal")
	}
	if got := len(db.DisposedLots()); got != 3 {
		t.Errorf("disposed %d lots, want 3", got)
	}
}

func TestEngine_Withdraw_ExplicitLotsWithoutAmount(t *testing.T) {
	net := &fakeNetwork{
		signature: "txLot0",
		settled:   date.New(2025, time.August, 10),
		balances:  map[string]uint64{stakeAddr: 500},
	}
	e, db := newTestEngine(t, net)

	// No amount given: the listed lot fixes it. The prepared transaction must
	// move exactly that lot's 500, not the account's full balance.
	sig, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, nil, FirstInFirstOut, []uint64{0})
	if err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}
	if sig != "txLot0" {
		t.Errorf("signature = %q, want txLot0", sig)
	}
	if net.lastReq.Amount == nil {
		t.Fatal("prepared a full-balance withdrawal for an explicit lot selection")
	}
	if *net.lastReq.Amount != 500 {
		t.Errorf("prepared amount = %d, want 500", *net.lastReq.Amount)
	}
	a := mustAccount(t, db, stakeAddr)
	if len(a.Lots) != 2 {
		t.Errorf("account holds %d lots, want 2", len(a.Lots))
	}
	if a.LastUpdateBalance != 500 {
		t.Errorf("balance = %d, want 500", a.LastUpdateBalance)
	}
	if got := len(db.DisposedLots()); got != 1 {
		t.Errorf("disposed %d lots, want 1", got)
	}

	// An unknown lot number is rejected before anything reaches the chain.
	if _, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, nil, FirstInFirstOut, []uint64{9}); !errors.Is(err, ErrInsufficientLots) {
		t.Fatalf("Withdraw() = %v, want ErrInsufficientLots", err)
	}
	if net.submits != 1 {
		t.Errorf("submitted %d times, want 1", net.submits)
	}
}

func TestEngine_Withdraw_SimulationFailure(t *testing.T) {
	net := &fakeNetwork{
		signature:   "txSim",
		simulateErr: fmt.Errorf("%w: insufficient funds for fee", ErrSimulationRejected),
	}
	e, db := newTestEngine(t, net)
	before := mustAccount(t, db, stakeAddr)

	_, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, amt(600), FirstInFirstOut, nil)
	if !errors.Is(err, ErrSimulationRejected) {
		t.Fatalf("Withdraw() = %v, want ErrSimulationRejected", err)
	}
	// A rejected simulation leaves no trace: no pending record, no lot moved,
	// nothing submitted.
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Error("simulation failure mutated the lots")
	}
	if len(db.PendingTransfers()) != 0 {
		t.Error("simulation failure left a pending record")
	}
	if net.submits != 0 {
		t.Errorf("submitted %d times after a failed simulation", net.submits)
	}
}

func TestEngine_Withdraw_SubmitFailureRollsBack(t *testing.T) {
	net := &fakeNetwork{
		signature: "txSubmit",
		submitErr: fmt.Errorf("%w: connection refused", ErrNetworkUnavailable),
	}
	e, db := newTestEngine(t, net)
	before := mustAccount(t, db, stakeAddr)

	_, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, amt(600), FirstInFirstOut, nil)
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("Withdraw() = %v, want ErrNetworkUnavailable", err)
	}
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Errorf("lots after rollback = %+v, want %+v", after.Lots, before.Lots)
	}
	if len(db.PendingTransfers()) != 0 {
		t.Error("cancelled transfer still reported pending")
	}
	if len(db.DisposedLots()) != 0 {
		t.Error("failed transfer produced disposals")
	}
}

func TestEngine_Withdraw_ExpiryRollsBack(t *testing.T) {
	net := &fakeNetwork{
		signature: "txExpired",
		awaitErr:  fmt.Errorf("%w: last valid height 100 passed", ErrBlockhashExpired),
	}
	e, db := newTestEngine(t, net)
	before := mustAccount(t, db, stakeAddr)

	_, err := e.Withdraw(context.Background(), stakeAddr, walletAddr, amt(600), FirstInFirstOut, nil)
	if !errors.Is(err, ErrBlockhashExpired) {
		t.Fatalf("Withdraw() = %v, want ErrBlockhashExpired", err)
	}
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Error("expiry did not restore the lots")
	}
}

func TestEngine_Split(t *testing.T) {
	net := &fakeNetwork{
		signature:  "txSplit",
		newAccount: stake2Addr,
		settled:    date.Today(),
		balances:   map[string]uint64{stakeAddr: 500, stake2Addr: 500},
	}
	e, db := newTestEngine(t, net)

	sig, newAccount, err := e.Split(context.Background(), stakeAddr, 500, FirstInFirstOut, nil)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	if sig != "txSplit" || newAccount != stake2Addr {
		t.Errorf("Split() = %q, %q", sig, newAccount)
	}
	// The split landed as an internal move: lots in the new account, nothing
	// disposed.
	dst := mustAccount(t, db, stake2Addr)
	if len(dst.Lots) != 1 || dst.Lots[0].Amount != 500 {
		t.Errorf("new account lots = %+v, want one lot of 500", dst.Lots)
	}
	if len(db.DisposedLots()) != 0 {
		t.Error("split produced disposals")
	}
}

func TestEngine_Split_FailureUntracksNewAccount(t *testing.T) {
	net := &fakeNetwork{
		signature:  "txSplitFail",
		newAccount: stake2Addr,
		awaitErr:   fmt.Errorf("%w: last valid height 100 passed", ErrBlockhashExpired),
	}
	e, db := newTestEngine(t, net)

	if _, _, err := e.Split(context.Background(), stakeAddr, 500, FirstInFirstOut, nil); err == nil {
		t.Fatal("Split() succeeded despite expiry")
	}
	if _, ok := db.GetAccount(stake2Addr, SOL); ok {
		t.Error("failed split left the new account tracked")
	}
}

func TestEngine_Merge(t *testing.T) {
	net := &fakeNetwork{
		signature: "txMerge",
		settled:   date.Today(),
		balances:  map[string]uint64{stake2Addr: 1000},
	}
	e, db := newTestEngine(t, net)
	if err := db.AddAccount(stake2Addr, SOL, "merge target"); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}

	if _, err := e.Merge(context.Background(), stakeAddr, stake2Addr); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if _, ok := db.GetAccount(stakeAddr, SOL); ok {
		t.Error("merge source still tracked")
	}
	dst := mustAccount(t, db, stake2Addr)
	if len(dst.Lots) != 3 {
		t.Fatalf("destination has %d lots, want 3", len(dst.Lots))
	}
	// Acquisitions survive the merge.
	if got := dst.Lots[0].Acquisition.When; got != date.New(2024, time.January, 10) {
		t.Errorf("oldest lot acquisition = %s, want 2024-01-10", got)
	}
}

func TestEngine_Merge_UntrackedDestination(t *testing.T) {
	e, _ := newTestEngine(t, &fakeNetwork{signature: "txMerge"})
	if _, err := e.Merge(context.Background(), stakeAddr, stake2Addr); err == nil {
		t.Error("Merge() accepted an untracked destination")
	}
}

func TestEngine_Sync(t *testing.T) {
	net := &fakeNetwork{
		signature:  "txPending",
		status:     TxConfirmed,
		statusDate: date.New(2025, time.August, 20),
		// 300 above the recorded balance: a staking reward arrived.
		balances: map[string]uint64{stakeAddr: 1300},
	}
	e, db := newTestEngine(t, net)

	// Simulate a crash between submit and settlement.
	if err := db.RecordTransfer("txPending", 100, amt(200), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	// The stranded transfer confirmed from chain state.
	if got := len(db.PendingTransfers()); got != 0 {
		t.Errorf("%d transfers still pending", got)
	}
	if got := len(db.DisposedLots()); got != 1 {
		t.Errorf("disposed %d lots, want 1", got)
	}

	a := mustAccount(t, db, stakeAddr)
	last := a.Lots[len(a.Lots)-1]
	if last.Acquisition.Kind != KindReward {
		t.Errorf("growth lot kind = %s, want reward", last.Acquisition.Kind)
	}
	if last.Amount != 500 {
		// 1300 on chain vs 800 recorded after the confirmed 200 debit.
		t.Errorf("growth lot amount = %d, want 500", last.Amount)
	}
	if a.LastUpdateBalance != 1300 {
		t.Errorf("balance = %d, want 1300", a.LastUpdateBalance)
	}
}

func TestEngine_Sync_CancelsExpired(t *testing.T) {
	net := &fakeNetwork{
		signature: "txGone",
		status:    TxExpired,
		balances:  map[string]uint64{stakeAddr: 1000},
	}
	e, db := newTestEngine(t, net)
	before := mustAccount(t, db, stakeAddr)

	if err := db.RecordTransfer("txGone", 100, amt(200), stakeAddr, SOL, walletAddr, SOL, FirstInFirstOut, nil); err != nil {
		t.Fatalf("RecordTransfer() failed: %v", err)
	}
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	after := mustAccount(t, db, stakeAddr)
	if !reflect.DeepEqual(before.Lots, after.Lots) {
		t.Error("expired transfer not rolled back")
	}
}

func TestEngine_Sync_PricesIncomeAtMarket(t *testing.T) {
	net := &fakeNetwork{balances: map[string]uint64{stakeAddr: 1200}}
	e, db := newTestEngine(t, net)
	prices := NewPriceMap()
	prices.Set(SOL, price(180))
	db.SetPrices(prices)

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	a := mustAccount(t, db, stakeAddr)
	last := a.Lots[len(a.Lots)-1]
	if last.Amount != 200 {
		t.Fatalf("growth lot amount = %d, want 200", last.Amount)
	}
	if !last.Acquisition.Price.Equal(price(180)) {
		t.Errorf("growth lot price = %s, want 180", last.Acquisition.Price)
	}
}

func TestEngine_TransferToken(t *testing.T) {
	db := NewLedger()
	if err := db.AddAccount(walletAddr, USDC, ""); err != nil {
		t.Fatalf("AddAccount() failed: %v", err)
	}
	acq := Acquisition{When: date.New(2025, time.January, 2), Price: price(1), Kind: KindPurchase}
	if _, err := db.AddLot(walletAddr, USDC, 500_000000, acq); err != nil {
		t.Fatalf("AddLot() failed: %v", err)
	}
	e := NewEngine(db, &fakeNetwork{})

	// Without a transferrer token moves are refused.
	if _, err := e.TransferToken(context.Background(), USDC, walletAddr, stakeAddr, 100_000000, FirstInFirstOut, nil); err == nil {
		t.Error("TransferToken() worked without a transferrer")
	}

	e.SetTokenTransferrer(&fakeTransferrer{signature: "txSPL"})
	if _, err := e.TransferToken(context.Background(), SOL, walletAddr, stakeAddr, 1, FirstInFirstOut, nil); err == nil {
		t.Error("TransferToken() accepted the native token")
	}

	sig, err := e.TransferToken(context.Background(), USDC, walletAddr, stakeAddr, 100_000000, FirstInFirstOut, nil)
	if err != nil {
		t.Fatalf("TransferToken() failed: %v", err)
	}
	if sig != "txSPL" {
		t.Errorf("signature = %q, want txSPL", sig)
	}
	if got := len(db.DisposedLots()); got != 1 {
		t.Errorf("disposed %d lots, want 1", got)
	}

	// The collaborator failing records nothing.
	e.SetTokenTransferrer(&fakeTransferrer{err: fmt.Errorf("spl-token exited 1")})
	if _, err := e.TransferToken(context.Background(), USDC, walletAddr, stakeAddr, 100_000000, FirstInFirstOut, nil); err == nil {
		t.Error("TransferToken() ignored the collaborator failure")
	}
	if got := len(db.DisposedLots()); got != 1 {
		t.Errorf("failed transfer changed disposals: %d", got)
	}
}
