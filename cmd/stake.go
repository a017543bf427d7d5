package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// runFeeOnly runs a transfer command that moves no lots, saving the ledger
// afterwards since the fee reconciliation may have touched it.
func runFeeOnly(run func(*lotledger.Engine) (string, error)) subcommands.ExitStatus {
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

	signature, err := run(engine)
	if serr := EncodeLedger(ledger); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("settled: %s\n", signature)
	return subcommands.ExitSuccess
}

// delegateCmd points a stake account at a validator's vote account.
type delegateCmd struct {
	stake string
	vote  string
}

func (*delegateCmd) Name() string     { return "delegate" }
func (*delegateCmd) Synopsis() string { return "delegate a stake account to a vote account" }
func (*delegateCmd) Usage() string {
	return `lotl delegate -stake <address> -vote <address>

  Delegates the stake account. No lots move; the transaction fee is
  reconciled into the oldest lot.
`
}

func (c *delegateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.stake, "stake", "", "Tracked stake account.")
	f.StringVar(&c.vote, "vote", "", "Validator vote account.")
}

func (c *delegateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.stake == "" || c.vote == "" {
		fmt.Fprintln(os.Stderr, "-stake and -vote are required")
		return subcommands.ExitUsageError
	}
	return runFeeOnly(func(e *lotledger.Engine) (string, error) {
		return e.Delegate(ctx, c.stake, c.vote)
	})
}

// deactivateCmd starts the cooldown of a delegated stake account.
type deactivateCmd struct {
	stake string
}

func (*deactivateCmd) Name() string     { return "deactivate" }
func (*deactivateCmd) Synopsis() string { return "deactivate a delegated stake account" }
func (*deactivateCmd) Usage() string {
	return `lotl deactivate -stake <address>

  Begins the stake cooldown so the lamports become withdrawable next epoch.
`
}

func (c *deactivateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.stake, "stake", "", "Tracked stake account.")
}

func (c *deactivateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.stake == "" {
		fmt.Fprintln(os.Stderr, "-stake is required")
		return subcommands.ExitUsageError
	}
	return runFeeOnly(func(e *lotledger.Engine) (string, error) {
		return e.Deactivate(ctx, c.stake)
	})
}
