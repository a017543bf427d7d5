package lotledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ebau/lotledger/date"
	"github.com/shopspring/decimal"
)

// Operation identifies one kind of on-chain transfer the engine can run.
type Operation string

const (
	OpWithdraw   Operation = "withdraw"   // stake account → recipient wallet
	OpDelegate   Operation = "delegate"   // stake account → vote account
	OpDeactivate Operation = "deactivate" // begin stake cooldown
	OpSplit      Operation = "split"      // move lamports into a fresh stake account
	OpMerge      Operation = "merge"      // fold one stake account into another
	OpTransfer   Operation = "transfer"   // plain system transfer from the authority wallet
)

// TransferRequest describes one on-chain transfer to prepare. A nil Amount
// means the full balance, where the operation allows it.
type TransferRequest struct {
	Op     Operation
	From   string
	To     string // recipient, vote account, or merge destination
	Amount *uint64
}

// PreparedTx is a built and signed transaction, not yet submitted.
type PreparedTx struct {
	Signature            string
	LastValidBlockHeight uint64
	NewAccount           string // split destination address, when the op created one
	Raw                  []byte // wire-format signed transaction
}

// TxStatus is the landed state of a submitted transaction.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxExpired
)

// Network is the chain facade the engine drives. The chain package provides
// the JSON-RPC implementation; tests substitute a fake.
type Network interface {
	// Prepare builds and signs the transaction against a fresh blockhash.
	Prepare(ctx context.Context, req TransferRequest) (*PreparedTx, error)
	// Simulate dry-runs the transaction; a rejection wraps
	// ErrSimulationRejected.
	Simulate(ctx context.Context, tx *PreparedTx) error
	// Submit broadcasts the signed transaction. Safe to retry with the same
	// signature while the blockhash is valid.
	Submit(ctx context.Context, tx *PreparedTx) error
	// Status reports whether the signature landed, and the settlement date
	// when it did. Expiry is decided from the chain's block height against
	// lastValidBlockHeight.
	Status(ctx context.Context, signature string, lastValidBlockHeight uint64) (TxStatus, date.Date, error)
	// Await polls Status until the transaction confirms, expires, or the
	// context is cancelled. Expiry wraps ErrBlockhashExpired.
	Await(ctx context.Context, signature string, lastValidBlockHeight uint64) (date.Date, error)
	// Balance returns the native balance of an address in lamports.
	Balance(ctx context.Context, address string) (uint64, error)
	// TokenBalance sums the owner's holdings of a non-native token, in the
	// token's smallest unit.
	TokenBalance(ctx context.Context, owner string, token Token) (uint64, error)
}

// TokenTransferrer moves non-native tokens. The engine never builds token
// transactions itself; a collaborator (typically the spl-token CLI) reports
// the landed signature or an error.
type TokenTransferrer interface {
	Transfer(ctx context.Context, token Token, from, to string, amount uint64) (signature string, err error)
}

// Engine runs the transfer lifecycle against the ledger and the chain:
// prepare, simulate, record pending, submit, await, then confirm or cancel.
//
// The engine mutex serializes whole operations, so a second operation can
// never select lots that an in-flight one provisionally consumed.
type Engine struct {
	mu     sync.Mutex
	db     *Ledger
	net    Network
	tokens TokenTransferrer // may be nil when no token venue is configured
}

func NewEngine(db *Ledger, net Network) *Engine {
	return &Engine{db: db, net: net}
}

// SetTokenTransferrer attaches the collaborator used for non-native tokens.
func (e *Engine) SetTokenTransferrer(t TokenTransferrer) { e.tokens = t }

// run drives one prepared transfer through submit and settlement. The pending
// record exists before the first submit; on any failure past that point the
// record is cancelled so the ledger rolls back exactly.
func (e *Engine) run(ctx context.Context, tx *PreparedTx) (date.Date, error) {
	if err := e.net.Submit(ctx, tx); err != nil {
		if cerr := e.db.CancelTransfer(tx.Signature); cerr != nil {
			return date.Date{}, fmt.Errorf("submitting %s: %w (rollback also failed: %v)", tx.Signature, err, cerr)
		}
		return date.Date{}, fmt.Errorf("submitting %s: %w", tx.Signature, err)
	}
	settled, err := e.net.Await(ctx, tx.Signature, tx.LastValidBlockHeight)
	if err != nil {
		if cerr := e.db.CancelTransfer(tx.Signature); cerr != nil {
			return date.Date{}, fmt.Errorf("awaiting %s: %w (rollback also failed: %v)", tx.Signature, err, cerr)
		}
		return date.Date{}, fmt.Errorf("awaiting %s: %w", tx.Signature, err)
	}
	if err := e.db.ConfirmTransfer(tx.Signature, settled); err != nil {
		return date.Date{}, err
	}
	return settled, nil
}

// Withdraw moves lamports from a tracked stake account to a recipient wallet.
// A nil amount withdraws everything; the account must then be empty and is
// removed from the ledger. Lot selection follows method unless explicit lot
// numbers are given.
func (e *Engine) Withdraw(ctx context.Context, from, to string, amount *uint64,
	method LotSelectionMethod, lotNumbers []uint64) (string, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	// Explicit lot numbers fix the amount to their sum. Left nil, the
	// prepared transaction would drain the whole account while only the
	// listed lots get debited.
	if amount == nil && len(lotNumbers) > 0 {
		total, err := e.db.sumLiveLots(from, SOL, lotNumbers)
		if err != nil {
			return "", err
		}
		amount = &total
	}

	tx, err := e.net.Prepare(ctx, TransferRequest{Op: OpWithdraw, From: from, To: to, Amount: amount})
	if err != nil {
		return "", err
	}
	if err := e.net.Simulate(ctx, tx); err != nil {
		return "", err
	}
	if err := e.db.RecordTransfer(tx.Signature, tx.LastValidBlockHeight, amount,
		from, SOL, to, SOL, method, lotNumbers); err != nil {
		return "", err
	}
	if _, err := e.run(ctx, tx); err != nil {
		return tx.Signature, err
	}

	if amount == nil {
		// A full withdrawal must leave no live lots behind.
		if a, ok := e.db.GetAccount(from, SOL); ok && len(a.Lots) > 0 {
			return tx.Signature, fmt.Errorf("%w: account %s still holds %d lots after full withdrawal",
				ErrLedgerInvariant, from, len(a.Lots))
		}
		if err := e.db.RemoveAccount(from, SOL); err != nil {
			return tx.Signature, err
		}
	} else if err := e.syncBalance(ctx, from, SOL); err != nil {
		log.Printf("withdraw %s: post-settlement sync: %v", tx.Signature, err)
	}
	return tx.Signature, nil
}

// Delegate points a tracked stake account at a vote account. No lots move;
// the fee is reconciled from the chain afterwards.
func (e *Engine) Delegate(ctx context.Context, stakeAccount, voteAccount string) (string, error) {
	return e.feeOnly(ctx, TransferRequest{Op: OpDelegate, From: stakeAccount, To: voteAccount})
}

// Deactivate begins the cooldown of a delegated stake account.
func (e *Engine) Deactivate(ctx context.Context, stakeAccount string) (string, error) {
	return e.feeOnly(ctx, TransferRequest{Op: OpDeactivate, From: stakeAccount})
}

// feeOnly runs an operation that moves no lots between accounts. There is no
// pending record: nothing to roll back beyond the fee, which AdjustBalance
// absorbs into the oldest lot.
func (e *Engine) feeOnly(ctx context.Context, req TransferRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.net.Prepare(ctx, req)
	if err != nil {
		return "", err
	}
	if err := e.net.Simulate(ctx, tx); err != nil {
		return "", err
	}
	if err := e.net.Submit(ctx, tx); err != nil {
		return "", err
	}
	if _, err := e.net.Await(ctx, tx.Signature, tx.LastValidBlockHeight); err != nil {
		return tx.Signature, err
	}
	if err := e.syncBalance(ctx, req.From, SOL); err != nil {
		log.Printf("%s %s: post-settlement sync: %v", req.Op, tx.Signature, err)
	}
	return tx.Signature, nil
}

// Split moves lamports from a tracked stake account into a freshly created
// stake account, which the ledger starts tracking before the transfer is
// recorded so settlement lands as an internal move, not a disposal. Returns
// the signature and the new account's address.
func (e *Engine) Split(ctx context.Context, from string, amount uint64,
	method LotSelectionMethod, lotNumbers []uint64) (string, string, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.net.Prepare(ctx, TransferRequest{Op: OpSplit, From: from, Amount: &amount})
	if err != nil {
		return "", "", err
	}
	if err := e.net.Simulate(ctx, tx); err != nil {
		return "", "", err
	}
	if err := e.db.AddAccount(tx.NewAccount, SOL, fmt.Sprintf("split from %s", from)); err != nil {
		return "", "", err
	}
	if err := e.db.RecordTransfer(tx.Signature, tx.LastValidBlockHeight, &amount,
		from, SOL, tx.NewAccount, SOL, method, lotNumbers); err != nil {
		if rerr := e.db.RemoveAccount(tx.NewAccount, SOL); rerr != nil {
			log.Printf("split: removing unused account %s: %v", tx.NewAccount, rerr)
		}
		return "", "", err
	}
	if _, err := e.run(ctx, tx); err != nil {
		if rerr := e.db.RemoveAccount(tx.NewAccount, SOL); rerr != nil {
			log.Printf("split: removing unused account %s: %v", tx.NewAccount, rerr)
		}
		return tx.Signature, "", err
	}
	return tx.Signature, tx.NewAccount, nil
}

// Merge folds one tracked stake account into another. Every lot of the source
// moves to the destination with its acquisition intact, then the emptied
// source stops being tracked.
func (e *Engine) Merge(ctx context.Context, source, destination string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.db.GetAccount(destination, SOL); !ok {
		return "", fmt.Errorf("merge destination %s is not tracked", destination)
	}

	tx, err := e.net.Prepare(ctx, TransferRequest{Op: OpMerge, From: source, To: destination})
	if err != nil {
		return "", err
	}
	if err := e.net.Simulate(ctx, tx); err != nil {
		return "", err
	}
	if err := e.db.RecordTransfer(tx.Signature, tx.LastValidBlockHeight, nil,
		source, SOL, destination, SOL, DefaultLotSelectionMethod, nil); err != nil {
		return "", err
	}
	if _, err := e.run(ctx, tx); err != nil {
		return tx.Signature, err
	}

	if a, ok := e.db.GetAccount(source, SOL); ok && len(a.Lots) > 0 {
		return tx.Signature, fmt.Errorf("%w: account %s still holds %d lots after merge",
			ErrLedgerInvariant, source, len(a.Lots))
	}
	if err := e.db.RemoveAccount(source, SOL); err != nil {
		return tx.Signature, err
	}
	return tx.Signature, nil
}

// TransferToken moves a non-native token out through the external transfer
// collaborator, then records the disposal. Nothing is recorded when the
// collaborator reports failure.
func (e *Engine) TransferToken(ctx context.Context, token Token, from, to string, amount uint64,
	method LotSelectionMethod, lotNumbers []uint64) (string, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	if token.IsNative() {
		return "", fmt.Errorf("token transfer does not apply to %s", token)
	}
	if e.tokens == nil {
		return "", fmt.Errorf("no token transferrer configured")
	}
	signature, err := e.tokens.Transfer(ctx, token, from, to, amount)
	if err != nil {
		return "", fmt.Errorf("transferring %s: %w", token.FormatAmount(amount), err)
	}
	if err := e.db.RecordDrop(from, token, &amount, method, lotNumbers); err != nil {
		return signature, err
	}
	return signature, nil
}

// Sync refreshes each tracked account against the chain. Balance growth
// becomes a reward-kind income lot priced at the current market price; a
// shortfall is handed to AdjustBalance. It also resolves transfers left
// Pending by a crash: landed ones are confirmed, expired ones cancelled.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, t := range e.db.PendingTransfers() {
		status, settled, err := e.net.Status(ctx, t.Signature, t.LastValidBlockHeight)
		if err != nil {
			errs = append(errs, fmt.Errorf("pending %s: %w", t.Signature, err))
			continue
		}
		switch status {
		case TxConfirmed:
			if err := e.db.ConfirmTransfer(t.Signature, settled); err != nil {
				errs = append(errs, err)
			}
		case TxExpired:
			if err := e.db.CancelTransfer(t.Signature); err != nil {
				errs = append(errs, err)
			}
		default:
			log.Printf("transfer %s still pending (valid until height %d)", t.Signature, t.LastValidBlockHeight)
		}
	}

	for _, a := range e.db.Accounts() {
		if err := e.syncAccount(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("syncing %s (%s): %w", a.Address, a.Token, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) syncAccount(ctx context.Context, a TrackedAccount) error {
	balance, err := e.chainBalance(ctx, a.Address, a.Token)
	if err != nil {
		return err
	}
	if balance > a.LastUpdateBalance {
		grown := balance - a.LastUpdateBalance
		price := e.db.marketPrice(a.Token, decimal.Zero)
		acq := Acquisition{When: date.Today(), Price: price, Kind: KindReward}
		if _, err := e.db.AddLot(a.Address, a.Token, grown, acq); err != nil {
			return err
		}
		log.Printf("%s (%s): new income lot %s", a.Address, a.Token, a.Token.FormatAmount(grown))
		return nil
	}
	return e.db.AdjustBalance(a.Address, a.Token, balance)
}

// syncBalance reconciles one account's recorded balance after a fee-paying
// operation.
func (e *Engine) syncBalance(ctx context.Context, address string, token Token) error {
	balance, err := e.chainBalance(ctx, address, token)
	if err != nil {
		return err
	}
	return e.db.AdjustBalance(address, token, balance)
}

func (e *Engine) chainBalance(ctx context.Context, address string, token Token) (uint64, error) {
	if token.IsNative() {
		return e.net.Balance(ctx, address)
	}
	return e.net.TokenBalance(ctx, address, token)
}
