package lotledger

import "errors"

// Sentinel errors for ledger and lifecycle failures. Callers match them with
// errors.Is; the wrapping message carries the account, amount and operation.
var (
	// ErrSimulationRejected aborts an operation before any ledger mutation
	// and before any fee is incurred.
	ErrSimulationRejected = errors.New("transaction simulation rejected")

	// ErrInsufficientLots means lot selection cannot satisfy the requested
	// amount from the addressable live lots.
	ErrInsufficientLots = errors.New("insufficient lots")

	// ErrUnknownSignature means no transfer is recorded under the signature.
	ErrUnknownSignature = errors.New("unknown transfer signature")

	// ErrAlreadyFinalized means the transfer already left the Pending state.
	ErrAlreadyFinalized = errors.New("transfer already finalized")

	// ErrBlockhashExpired means the submission window closed without a
	// confirmation; the pending transfer has been cancelled.
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")

	// ErrNetworkUnavailable is propagated, never retried beyond the
	// blockhash validity window.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrLedgerInvariant flags an accounting bug (e.g. a full withdrawal
	// leaving live lots behind). It is fatal and must not be swallowed.
	ErrLedgerInvariant = errors.New("ledger invariant violation")
)
