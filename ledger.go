package lotledger

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/ebau/lotledger/date"
	"github.com/shopspring/decimal"
)

// TaxRate holds the two capital-gain tax rates used by the aggregator.
type TaxRate struct {
	LongTermGain  float64 `json:"longTermGain"`
	ShortTermGain float64 `json:"shortTermGain"`
}

// Defaults applied when no rate was configured.
const (
	DefaultLongTermGainRate  = 0.22
	DefaultShortTermGainRate = 0.3935
)

type accountKey struct {
	address string
	token   Token
}

// Ledger owns the durable mapping of tracked accounts to tax lots, the
// pending/finalized transfer records, and the disposed-lot history.
//
// A Ledger is constructed once at startup by the composition root and passed
// by handle to every operation; it is never a package-level singleton.
// Access is mutually exclusive for writers and shared for readers.
type Ledger struct {
	mu sync.RWMutex

	name      string
	accounts  map[accountKey]*TrackedAccount
	transfers map[string]*PendingTransfer
	disposed  []DisposedLot
	taxRate   *TaxRate

	// prices is consulted for disposal pricing; it is shared with the
	// background poller and never written by the ledger.
	prices *PriceMap
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:  make(map[accountKey]*TrackedAccount),
		transfers: make(map[string]*PendingTransfer),
	}
}

// Name returns the ledger name, derived from its file path by the loader.
func (l *Ledger) Name() string { return l.name }

// SetPrices attaches the shared price map used to price disposals.
func (l *Ledger) SetPrices(p *PriceMap) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prices = p
}

// disposalPrice resolves the USD price for a disposal of the given token,
// falling back to the lot's acquisition price when no market price is known.
// Callers must hold l.mu.
func (l *Ledger) disposalPrice(token Token, fallback decimal.Decimal) decimal.Decimal {
	if l.prices != nil {
		if p, ok := l.prices.Get(token); ok {
			return p
		}
	}
	return fallback
}

// marketPrice is the locked variant of disposalPrice for callers outside the
// ledger's critical sections.
func (l *Ledger) marketPrice(token Token, fallback decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.disposalPrice(token, fallback)
}

// Accounts returns a copy of every tracked account, sorted by address then
// token, safe for rendering without holding the ledger lock.
func (l *Ledger) Accounts() []TrackedAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	accounts := make([]TrackedAccount, 0, len(l.accounts))
	for _, a := range l.accounts {
		c := *a
		c.Lots = slices.Clone(a.Lots)
		accounts = append(accounts, c)
	}
	slices.SortFunc(accounts, func(x, y TrackedAccount) int {
		if c := strings.Compare(x.Address, y.Address); c != 0 {
			return c
		}
		return strings.Compare(x.Token.Symbol(), y.Token.Symbol())
	})
	return accounts
}

// GetAccount returns a copy of the tracked account, if any.
func (l *Ledger) GetAccount(address string, token Token) (TrackedAccount, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		return TrackedAccount{}, false
	}
	c := *a
	c.Lots = slices.Clone(a.Lots)
	return c, true
}

// sumLiveLots returns the combined live amount of the given lot numbers. Every
// listed lot must be live; duplicates are rejected.
func (l *Ledger) sumLiveLots(address string, token Token, lotNumbers []uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		return 0, fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	var total uint64
	seen := make(map[uint64]bool, len(lotNumbers))
	for _, n := range lotNumbers {
		if seen[n] {
			return 0, fmt.Errorf("lot %d listed twice", n)
		}
		seen[n] = true
		lot := a.Lot(n)
		if lot == nil {
			return 0, fmt.Errorf("%w: lot %d is not live in account %s", ErrInsufficientLots, n, address)
		}
		total += lot.Amount
	}
	return total, nil
}

// AddAccount starts tracking a new, empty account.
func (l *Ledger) AddAccount(address string, token Token, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := accountKey{address, token}
	if _, exists := l.accounts[key]; exists {
		return fmt.Errorf("account %s (%s) is already tracked", address, token)
	}
	l.accounts[key] = &TrackedAccount{Address: address, Token: token, Description: description}
	return nil
}

// UpdateAccount persists a full replacement of one account's live-lot state.
// The lot-number counter is never moved backwards, so numbers stay unique
// across the account's lifetime.
func (l *Ledger) UpdateAccount(account TrackedAccount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.accounts[accountKey{account.Address, account.Token}]
	if !ok {
		return fmt.Errorf("account %s (%s) is not tracked", account.Address, account.Token)
	}
	existing.Description = account.Description
	existing.LastUpdateBalance = account.LastUpdateBalance
	existing.Lots = slices.Clone(account.Lots)
	existing.sortLots()
	for _, lot := range existing.Lots {
		if lot.LotNumber >= existing.nextLotNumber {
			existing.nextLotNumber = lot.LotNumber + 1
		}
	}
	return nil
}

// AddLot appends a new lot to an account, assigning the next lot number, and
// grows the recorded balance accordingly. Used for funding and reward events.
func (l *Ledger) AddLot(address string, token Token, amount uint64, acq Acquisition) (Lot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		return Lot{}, fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	if amount == 0 {
		return Lot{}, fmt.Errorf("cannot add an empty lot to %s", address)
	}
	lot := a.addLot(amount, acq)
	a.LastUpdateBalance += amount
	return lot, nil
}

// RemoveAccount stops tracking an account. It fails while live lots remain
// unaccounted.
func (l *Ledger) RemoveAccount(address string, token Token) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := accountKey{address, token}
	a, ok := l.accounts[key]
	if !ok {
		return fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	if len(a.Lots) > 0 {
		return fmt.Errorf("%w: removing account %s (%s) with %d live lots",
			ErrLedgerInvariant, address, token, len(a.Lots))
	}
	delete(l.accounts, key)
	return nil
}

// RecordTransfer atomically selects the lots to debit, marks them
// provisionally consumed, and inserts a Pending transfer keyed by signature.
// A nil amount means all remaining lots. It fails when the signature is
// already known or the source cannot cover the amount; on failure the ledger
// is unchanged.
func (l *Ledger) RecordTransfer(signature string, lastValidBlockHeight uint64, amount *uint64,
	from string, fromToken Token, to string, toToken Token,
	method LotSelectionMethod, lotNumbers []uint64) error {

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.transfers[signature]; exists {
		return fmt.Errorf("transfer %s is already recorded", signature)
	}
	src, ok := l.accounts[accountKey{from, fromToken}]
	if !ok {
		return fmt.Errorf("account %s (%s) is not tracked", from, fromToken)
	}

	priorLots := src.snapshotLots()
	priorNext := src.nextLotNumber

	consumed, err := src.extractLots(amount, method, lotNumbers)
	if err != nil {
		return fmt.Errorf("recording transfer %s from %s: %w", signature, from, err)
	}

	l.transfers[signature] = &PendingTransfer{
		Signature:            signature,
		LastValidBlockHeight: lastValidBlockHeight,
		Amount:               sumLots(consumed),
		From:                 from,
		FromToken:            fromToken,
		To:                   to,
		ToToken:              toToken,
		Method:               method,
		Lots:                 consumed,
		Status:               TransferPending,
		PriorLots:            priorLots,
		PriorNextLot:         priorNext,
	}
	return nil
}

// ConfirmTransfer transitions a Pending transfer to Confirmed, finalizing the
// lot debit. When the destination account is tracked the lots move there
// (an internal move realizes no gain); otherwise DisposedLot records are
// created at the current market price. Fails when the signature is unknown or
// the transfer already finalized.
func (l *Ledger) ConfirmTransfer(signature string, settled date.Date) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.transfers[signature]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignature, signature)
	}
	if t.Status != TransferPending {
		return fmt.Errorf("%w: transfer %s is %s", ErrAlreadyFinalized, signature, t.Status)
	}

	if src, ok := l.accounts[accountKey{t.From, t.FromToken}]; ok {
		if src.LastUpdateBalance >= t.Amount {
			src.LastUpdateBalance -= t.Amount
		} else {
			src.LastUpdateBalance = 0
		}
	}

	if dst, ok := l.accounts[accountKey{t.To, t.ToToken}]; ok && t.ToToken == t.FromToken {
		// Internal move: the lots keep their acquisition (date, price, kind)
		// and receive fresh numbers from the destination's counter.
		for _, lot := range t.Lots {
			dst.addLot(lot.Amount, lot.Acquisition)
		}
		dst.LastUpdateBalance += t.Amount
	} else {
		for _, lot := range t.Lots {
			l.disposed = append(l.disposed, DisposedLot{
				Lot:   lot,
				Token: t.FromToken,
				Price: l.disposalPrice(t.FromToken, lot.Acquisition.Price),
				When:  settled,
			})
		}
	}

	t.Status = TransferConfirmed
	t.ConfirmedOn = settled
	t.PriorLots = nil
	t.PriorNextLot = 0
	return nil
}

// CancelTransfer transitions a Pending transfer to Cancelled and reverses the
// provisional debit exactly, restoring the source account byte-for-byte.
// Cancelling an already-cancelled transfer is a no-op so crash recovery can
// retry safely; cancelling a Confirmed transfer fails.
func (l *Ledger) CancelTransfer(signature string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.transfers[signature]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignature, signature)
	}
	switch t.Status {
	case TransferConfirmed:
		return fmt.Errorf("%w: transfer %s is confirmed", ErrAlreadyFinalized, signature)
	case TransferCancelled:
		return nil
	}

	if src, ok := l.accounts[accountKey{t.From, t.FromToken}]; ok {
		src.Lots = slices.Clone(t.PriorLots)
		src.nextLotNumber = t.PriorNextLot
	}
	t.Status = TransferCancelled
	t.PriorLots = nil
	t.PriorNextLot = 0
	return nil
}

// RecordDrop is a direct disposal with no on-chain transaction involved
// (e.g. an off-chain venue transfer): lot selection applies and DisposedLot
// records are created immediately, with no Pending phase.
func (l *Ledger) RecordDrop(address string, token Token, amount *uint64,
	method LotSelectionMethod, lotNumbers []uint64) error {

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		return fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	consumed, err := a.extractLots(amount, method, lotNumbers)
	if err != nil {
		return fmt.Errorf("dropping lots from %s: %w", address, err)
	}
	total := sumLots(consumed)
	if a.LastUpdateBalance >= total {
		a.LastUpdateBalance -= total
	} else {
		a.LastUpdateBalance = 0
	}
	today := date.Today()
	for _, lot := range consumed {
		l.disposed = append(l.disposed, DisposedLot{
			Lot:   lot,
			Token: token,
			Price: l.disposalPrice(token, lot.Acquisition.Price),
			When:  today,
		})
	}
	return nil
}

// DisposedLots returns a read-only snapshot of the disposal history, in
// recording order. Callers sort as needed.
func (l *Ledger) DisposedLots() []DisposedLot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.disposed)
}

// PendingTransfers returns copies of every transfer still in the Pending
// state, for restart reconciliation.
func (l *Ledger) PendingTransfers() []PendingTransfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var pending []PendingTransfer
	for _, t := range l.transfers {
		if t.Status == TransferPending {
			c := *t
			c.Lots = slices.Clone(t.Lots)
			pending = append(pending, c)
		}
	}
	slices.SortFunc(pending, func(x, y PendingTransfer) int {
		return strings.Compare(x.Signature, y.Signature)
	})
	return pending
}

// GetTaxRate returns the configured tax rates, or the fixed defaults.
func (l *Ledger) GetTaxRate() TaxRate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.taxRate != nil {
		return *l.taxRate
	}
	return TaxRate{LongTermGain: DefaultLongTermGainRate, ShortTermGain: DefaultShortTermGainRate}
}

// SetTaxRate configures the two capital-gain rates.
func (l *Ledger) SetTaxRate(rate TaxRate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.taxRate = &rate
}

// AdjustBalance reconciles the recorded balance with the authoritative
// on-chain balance after a fee-paying operation. A shortfall smaller than the
// oldest-acquired live lot is absorbed by that lot (network fees reduce the
// oldest lot, cost-basis neutral, no disposal). A larger shortfall, or a
// chain balance that is not lower, changes nothing.
//
// Lots received through an internal move carry fresh numbers with their
// original acquisition, so the oldest lot is found by acquisition date, not
// by lot number.
//
// When repeated small fees drain a nearly-empty account the shortfall can
// permanently exceed the oldest lot; the gap is logged and left standing.
func (l *Ledger) AdjustBalance(address string, token Token, chainBalance uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[accountKey{address, token}]
	if !ok {
		return fmt.Errorf("account %s (%s) is not tracked", address, token)
	}
	if chainBalance >= a.LastUpdateBalance {
		return nil
	}
	shortfall := a.LastUpdateBalance - chainBalance
	oldest := -1
	for i, lot := range a.Lots {
		if oldest < 0 || lot.Acquisition.When.Before(a.Lots[oldest].Acquisition.When) {
			oldest = i
		}
	}
	if oldest < 0 || shortfall >= a.Lots[oldest].Amount {
		log.Printf("%s (%s): shortfall %s exceeds oldest lot, balance left unreconciled",
			address, token, token.FormatAmount(shortfall))
		return nil
	}
	a.Lots[oldest].Amount -= shortfall
	a.LastUpdateBalance = chainBalance
	return nil
}
