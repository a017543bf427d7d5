package lotledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// RecordType discriminates the JSONL records of a ledger file.
type RecordType string

const (
	RecordTaxRate  RecordType = "tax-rate"
	RecordAccount  RecordType = "account"
	RecordTransfer RecordType = "transfer"
	RecordDisposed RecordType = "disposed"
)

// accountRecord is a specialized struct for coding one tracked account line,
// including the unexported lot-number counter.
type accountRecord struct {
	Address     string `json:"address"`
	Token       Token  `json:"token"`
	Description string `json:"description,omitempty"`
	Balance     uint64 `json:"balance"`
	NextLot     uint64 `json:"nextLot"`
	Lots        []Lot  `json:"lots,omitempty"`
}

// DecodeLedger reads a stream of JSONL records and reconstructs the ledger.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	ledger := NewLedger()
	scanner := bufio.NewScanner(r)
	// an account line carries its whole lot list, allow long lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}

		var identifier struct {
			Record RecordType `json:"record"`
		}
		if err := json.Unmarshal(lineBytes, &identifier); err != nil {
			return nil, fmt.Errorf("could not identify record in line %q: %w", string(lineBytes), err)
		}

		switch identifier.Record {
		case RecordTaxRate:
			var rate TaxRate
			if err := json.Unmarshal(lineBytes, &rate); err != nil {
				return nil, err
			}
			ledger.taxRate = &rate

		case RecordAccount:
			var rec accountRecord
			if err := json.Unmarshal(lineBytes, &rec); err != nil {
				return nil, err
			}
			a := &TrackedAccount{
				Address:           rec.Address,
				Token:             rec.Token,
				Description:       rec.Description,
				Lots:              rec.Lots,
				LastUpdateBalance: rec.Balance,
				nextLotNumber:     rec.NextLot,
			}
			a.sortLots()
			// never let a hand-edited counter collide with a live lot
			for _, lot := range a.Lots {
				if lot.LotNumber >= a.nextLotNumber {
					a.nextLotNumber = lot.LotNumber + 1
				}
			}
			key := accountKey{a.Address, a.Token}
			if _, exists := ledger.accounts[key]; exists {
				return nil, fmt.Errorf("duplicate account record for %s (%s)", a.Address, a.Token)
			}
			ledger.accounts[key] = a

		case RecordTransfer:
			var t PendingTransfer
			if err := json.Unmarshal(lineBytes, &t); err != nil {
				return nil, err
			}
			if _, exists := ledger.transfers[t.Signature]; exists {
				return nil, fmt.Errorf("duplicate transfer record %s", t.Signature)
			}
			ledger.transfers[t.Signature] = &t

		case RecordDisposed:
			var d DisposedLot
			if err := json.Unmarshal(lineBytes, &d); err != nil {
				return nil, err
			}
			ledger.disposed = append(ledger.disposed, d)

		default:
			return nil, fmt.Errorf("unknown ledger record: %q", identifier.Record)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return ledger, nil
}

func writeRecord(w io.Writer, jw *jsonObjectWriter) error {
	line, err := jw.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

// EncodeLedger persists the ledger to an io.Writer in JSONL format: the tax
// rate first, then accounts sorted by address and token, then transfers
// sorted by signature, then disposals in recording order. The key order
// within each line is fixed so that saved files diff cleanly.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	decimal.MarshalJSONWithoutQuotes = true
	ledger.mu.RLock()
	defer ledger.mu.RUnlock()

	if rate := ledger.taxRate; rate != nil {
		jw := &jsonObjectWriter{}
		jw.Append("record", RecordTaxRate).EmbedFrom(rate)
		if err := writeRecord(w, jw); err != nil {
			return err
		}
	}

	for _, a := range sortedAccounts(ledger.accounts) {
		jw := &jsonObjectWriter{}
		jw.Append("record", RecordAccount).
			Append("address", a.Address).
			Append("token", a.Token).
			Optional("description", a.Description).
			Append("balance", a.LastUpdateBalance).
			Append("nextLot", a.nextLotNumber).
			Optional("lots", a.Lots)
		if err := writeRecord(w, jw); err != nil {
			return err
		}
	}

	for _, t := range sortedTransfers(ledger.transfers) {
		jw := &jsonObjectWriter{}
		jw.Append("record", RecordTransfer).EmbedFrom(t)
		if err := writeRecord(w, jw); err != nil {
			return err
		}
	}

	for _, d := range ledger.disposed {
		jw := &jsonObjectWriter{}
		jw.Append("record", RecordDisposed).EmbedFrom(d)
		if err := writeRecord(w, jw); err != nil {
			return err
		}
	}
	return nil
}

func sortedAccounts(m map[accountKey]*TrackedAccount) []*TrackedAccount {
	accounts := make([]*TrackedAccount, 0, len(m))
	for _, a := range m {
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(x, y *TrackedAccount) int {
		if c := strings.Compare(x.Address, y.Address); c != 0 {
			return c
		}
		return strings.Compare(x.Token.Symbol(), y.Token.Symbol())
	})
	return accounts
}

func sortedTransfers(m map[string]*PendingTransfer) []*PendingTransfer {
	transfers := make([]*PendingTransfer, 0, len(m))
	for _, t := range m {
		transfers = append(transfers, t)
	}
	slices.SortFunc(transfers, func(x, y *PendingTransfer) int {
		return strings.Compare(x.Signature, y.Signature)
	})
	return transfers
}
