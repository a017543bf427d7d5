// Package lotledger tracks Solana holdings as tax lots and drives on-chain
// transfers through a safe two-phase lifecycle. It is designed to be
// local-first and auditable: the ledger lives in a human-readable JSONL file
// that can be versioned and inspected.
//
// The core functionalities include:
//   - Lot Ledger: every acquisition (purchase, staking reward, inbound
//     transfer, swap) becomes an immutable lot with its own number, amount,
//     date and USD cost basis. Disposals move lots into a permanent history,
//     they are never rewritten.
//   - Lot Selection: disposals pick lots by FIFO, LIFO, highest-cost-first,
//     or an explicit list of lot numbers, splitting a lot when the amount
//     does not line up.
//   - Transfer Lifecycle: withdrawals, delegations, splits and merges are
//     simulated before anything is recorded, held as pending while in flight,
//     and either confirmed at settlement or rolled back exactly.
//   - Balance Reconciliation: recorded balances converge to the chain;
//     growth becomes reward income lots, small fee drains are absorbed into
//     the oldest lot.
//   - Gains and Tax: disposal history aggregates into proceeds, income, and
//     the short/long-term gain split with configurable rates.
//
// This package is the foundational logic for the lotl command-line tool; the
// chain package supplies the Solana JSON-RPC implementation of the network
// facade, and the exchange package handles off-chain disbursement venues.
package lotledger
