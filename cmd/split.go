package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// splitCmd carves part of a stake account into a fresh tracked account.
type splitCmd struct {
	from   string
	amount string
	method string
	lots   string
}

func (*splitCmd) Name() string     { return "split" }
func (*splitCmd) Synopsis() string { return "split lamports into a new stake account" }
func (*splitCmd) Usage() string {
	return `lotl split -from <stake> -amount <sol> [-method fifo|lifo|highest-cost] [-lots <n,n,...>]

  Creates a fresh stake account and moves the amount into it. The moved lots
  keep their acquisition data; this is an internal move, not a disposal.
`
}

func (c *splitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Tracked stake account to split.")
	f.StringVar(&c.amount, "amount", "", "Amount in SOL to carve out.")
	f.StringVar(&c.method, "method", "", "Lot selection method (default fifo).")
	f.StringVar(&c.lots, "lots", "", "Explicit lot numbers, comma separated. Overrides -method.")
}

func (c *splitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" {
		fmt.Fprintln(os.Stderr, "-from is required")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(lotledger.SOL, c.amount)
	if err != nil || amount == nil {
		fmt.Fprintln(os.Stderr, "-amount must be an explicit SOL amount")
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

	signature, newAccount, err := engine.Split(ctx, c.from, *amount, method, lots)
	if serr := EncodeLedger(ledger); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("split settled: %s\nnew stake account: %s\n", signature, newAccount)
	return subcommands.ExitSuccess
}
