package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// withdrawCmd moves lamports from a tracked stake account to a wallet,
// consuming lots.
type withdrawCmd struct {
	from   string
	to     string
	amount string
	method string
	lots   string
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "withdraw lamports from a tracked stake account" }
func (*withdrawCmd) Usage() string {
	return `lotl withdraw -from <stake> -to <wallet> [-amount <sol>|all] [-method fifo|lifo|highest-cost] [-lots <n,n,...>]

  Builds, simulates, submits and settles a stake withdrawal. Lots are
  consumed per the selection method, or exactly the listed lot numbers.
  Withdrawing everything removes the emptied account from the ledger.
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Tracked stake account to withdraw from.")
	f.StringVar(&c.to, "to", "", "Recipient wallet address.")
	f.StringVar(&c.amount, "amount", "all", "Amount in SOL, or 'all'. With -lots, 'all' means the listed lots' sum.")
	f.StringVar(&c.method, "method", "", "Lot selection method (default fifo).")
	f.StringVar(&c.lots, "lots", "", "Explicit lot numbers, comma separated. Overrides -method.")
}

func (c *withdrawCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" {
		fmt.Fprintln(os.Stderr, "-from and -to are required")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(lotledger.SOL, c.amount)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	method, err := lotledger.ParseLotSelectionMethod(c.method)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	lots, err := parseLots(c.lots)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	engine, err := newEngine(ledger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	signature, err := engine.Withdraw(ctx, c.from, c.to, amount, method, lots)
	// The ledger may have changed even when the operation failed past
	// recording, so always save before reporting.
	if serr := EncodeLedger(ledger); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("withdrawal settled: %s\n", signature)
	return subcommands.ExitSuccess
}
