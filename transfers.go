package lotledger

import (
	"github.com/ebau/lotledger/date"
)

// TransferStatus is the lifecycle state of a recorded transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferCancelled TransferStatus = "cancelled"
)

// PendingTransfer is the ledger's record of an in-flight (or finalized)
// transfer, keyed by the transaction signature. The consumed lots are moved
// out of the source account when the transfer is recorded; PriorLots and
// PriorNextLot snapshot the source account so a cancellation restores it
// byte-for-byte.
type PendingTransfer struct {
	Signature            string             `json:"signature"`
	LastValidBlockHeight uint64             `json:"lastValidBlockHeight"`
	Amount               uint64             `json:"amount"`
	From                 string             `json:"from"`
	FromToken            Token              `json:"fromToken"`
	To                   string             `json:"to"`
	ToToken              Token              `json:"toToken"`
	Method               LotSelectionMethod `json:"method"`
	Lots                 []Lot              `json:"lots"` // consumed portions, original numbers
	Status               TransferStatus     `json:"status"`
	ConfirmedOn          date.Date          `json:"confirmedOn,omitzero"`

	// Rollback snapshot of the source account. Cleared on confirmation.
	PriorLots    []Lot  `json:"priorLots,omitempty"`
	PriorNextLot uint64 `json:"priorNextLot,omitempty"`
}

// LotNumbers returns the numbers of the consumed lots.
func (t *PendingTransfer) LotNumbers() []uint64 {
	numbers := make([]uint64, 0, len(t.Lots))
	for _, l := range t.Lots {
		numbers = append(numbers, l.LotNumber)
	}
	return numbers
}
