package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ebau/lotledger"
	"github.com/ebau/lotledger/date"
)

// Prepare builds and signs the requested transfer against a fresh blockhash.
// The returned signature is final: retrying the same PreparedTx resubmits the
// same transaction.
func (c *Client) Prepare(ctx context.Context, req lotledger.TransferRequest) (*lotledger.PreparedTx, error) {
	blockhash, lastValid, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	authority := c.authority.PublicKey()

	var instructions []solana.Instruction
	var extraSigner *solana.PrivateKey
	newAccount := ""

	from, err := solana.PublicKeyFromBase58(req.From)
	if err != nil {
		return nil, fmt.Errorf("bad source address %q: %w", req.From, err)
	}

	switch req.Op {
	case lotledger.OpWithdraw:
		to, err := solana.PublicKeyFromBase58(req.To)
		if err != nil {
			return nil, fmt.Errorf("bad recipient address %q: %w", req.To, err)
		}
		lamports, err := c.resolveAmount(ctx, req)
		if err != nil {
			return nil, err
		}
		instructions = []solana.Instruction{withdrawStake(from, to, authority, lamports)}

	case lotledger.OpDelegate:
		vote, err := solana.PublicKeyFromBase58(req.To)
		if err != nil {
			return nil, fmt.Errorf("bad vote address %q: %w", req.To, err)
		}
		instructions = []solana.Instruction{delegateStake(from, vote, authority)}

	case lotledger.OpDeactivate:
		instructions = []solana.Instruction{deactivateStake(from, authority)}

	case lotledger.OpSplit:
		if req.Amount == nil {
			return nil, fmt.Errorf("split requires an explicit amount")
		}
		wallet := solana.NewWallet()
		extraSigner = &wallet.PrivateKey
		newAccount = wallet.PublicKey().String()
		instructions = splitStakeTx(from, wallet.PublicKey(), authority, *req.Amount)

	case lotledger.OpMerge:
		destination, err := solana.PublicKeyFromBase58(req.To)
		if err != nil {
			return nil, fmt.Errorf("bad merge destination %q: %w", req.To, err)
		}
		instructions = []solana.Instruction{mergeStake(destination, from, authority)}

	case lotledger.OpTransfer:
		to, err := solana.PublicKeyFromBase58(req.To)
		if err != nil {
			return nil, fmt.Errorf("bad recipient address %q: %w", req.To, err)
		}
		lamports, err := c.resolveAmount(ctx, req)
		if err != nil {
			return nil, err
		}
		instructions = []solana.Instruction{transferLamports(from, to, lamports)}

	default:
		return nil, fmt.Errorf("unknown operation %q", req.Op)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(authority))
	if err != nil {
		return nil, fmt.Errorf("building %s transaction: %w", req.Op, err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(authority) {
			return &c.authority
		}
		if extraSigner != nil && key.Equals(extraSigner.PublicKey()) {
			return extraSigner
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signing %s transaction: %w", req.Op, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serializing %s transaction: %w", req.Op, err)
	}

	return &lotledger.PreparedTx{
		Signature:            tx.Signatures[0].String(),
		LastValidBlockHeight: lastValid,
		NewAccount:           newAccount,
		Raw:                  raw,
	}, nil
}

// resolveAmount returns the explicit amount, or the source's full balance
// when the request left it nil.
func (c *Client) resolveAmount(ctx context.Context, req lotledger.TransferRequest) (uint64, error) {
	if req.Amount != nil {
		return *req.Amount, nil
	}
	balance, err := c.Balance(ctx, req.From)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, fmt.Errorf("account %s holds no lamports", req.From)
	}
	return balance, nil
}

// Simulate dry-runs the signed transaction without submitting it. Any program
// error rejects the transfer before the ledger is touched.
func (c *Client) Simulate(ctx context.Context, tx *lotledger.PreparedTx) error {
	var out struct {
		Value struct {
			Err  json.RawMessage `json:"err"`
			Logs []string        `json:"logs"`
		} `json:"value"`
	}
	params := []any{
		base64.StdEncoding.EncodeToString(tx.Raw),
		map[string]string{"encoding": "base64", "commitment": "confirmed"},
	}
	if err := c.call(ctx, "simulateTransaction", params, &out); err != nil {
		return err
	}
	if len(out.Value.Err) > 0 && string(out.Value.Err) != "null" {
		return fmt.Errorf("%w: %s (%s)", lotledger.ErrSimulationRejected,
			out.Value.Err, strings.Join(out.Value.Logs, "; "))
	}
	return nil
}

// Submit broadcasts the signed transaction. Preflight is skipped since the
// engine already simulated; a node that has seen the signature returns it
// again, so retries are harmless.
func (c *Client) Submit(ctx context.Context, tx *lotledger.PreparedTx) error {
	var signature string
	params := []any{
		base64.StdEncoding.EncodeToString(tx.Raw),
		map[string]any{"encoding": "base64", "skipPreflight": true},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return err
	}
	if signature != tx.Signature {
		return fmt.Errorf("node acknowledged %s for submitted %s", signature, tx.Signature)
	}
	return nil
}

// Status queries whether the signature landed. A signature the cluster does
// not know is Expired once the block height passes lastValidBlockHeight, and
// Pending before that.
func (c *Client) Status(ctx context.Context, signature string, lastValidBlockHeight uint64) (lotledger.TxStatus, date.Date, error) {
	var out struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			Err                json.RawMessage `json:"err"`
			ConfirmationStatus string          `json:"confirmationStatus"`
		} `json:"value"`
	}
	params := []any{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return lotledger.TxPending, date.Date{}, err
	}

	if len(out.Value) > 0 && out.Value[0] != nil {
		st := out.Value[0]
		if len(st.Err) > 0 && string(st.Err) != "null" {
			// landed but failed on-chain; the blockhash is burned
			return lotledger.TxExpired, date.Date{}, nil
		}
		if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
			return lotledger.TxConfirmed, c.settlementDate(ctx, st.Slot), nil
		}
		return lotledger.TxPending, date.Date{}, nil
	}

	height, err := c.blockHeight(ctx)
	if err != nil {
		return lotledger.TxPending, date.Date{}, err
	}
	if height > lastValidBlockHeight {
		return lotledger.TxExpired, date.Date{}, nil
	}
	return lotledger.TxPending, date.Date{}, nil
}

// settlementDate resolves the calendar date of a slot's block time, falling
// back to today when the node cannot provide it.
func (c *Client) settlementDate(ctx context.Context, slot uint64) date.Date {
	var unix *int64
	if err := c.call(ctx, "getBlockTime", []any{slot}, &unix); err != nil || unix == nil {
		return date.Today()
	}
	return date.FromTime(time.Unix(*unix, 0).UTC())
}

// Await polls until the signature confirms or its blockhash expires. Expiry
// wraps ErrBlockhashExpired so the engine can roll the transfer back.
func (c *Client) Await(ctx context.Context, signature string, lastValidBlockHeight uint64) (date.Date, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		status, settled, err := c.Status(ctx, signature, lastValidBlockHeight)
		if err != nil {
			return date.Date{}, err
		}
		switch status {
		case lotledger.TxConfirmed:
			return settled, nil
		case lotledger.TxExpired:
			return date.Date{}, fmt.Errorf("%w: %s (valid until height %d)",
				lotledger.ErrBlockhashExpired, signature, lastValidBlockHeight)
		}
		select {
		case <-ctx.Done():
			return date.Date{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
