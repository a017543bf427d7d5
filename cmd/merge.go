package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// mergeCmd folds one tracked stake account into another.
type mergeCmd struct {
	from string
	into string
}

func (*mergeCmd) Name() string     { return "merge" }
func (*mergeCmd) Synopsis() string { return "merge one tracked stake account into another" }
func (*mergeCmd) Usage() string {
	return `lotl merge -from <stake> -into <stake>

  Merges the source stake account into the destination on-chain, and moves
  every source lot to the destination with its acquisition intact. The
  emptied source stops being tracked.
`
}

func (c *mergeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Source stake account; closes on success.")
	f.StringVar(&c.into, "into", "", "Destination stake account; must be tracked.")
}

func (c *mergeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.into == "" {
		fmt.Fprintln(os.Stderr, "-from and -into are required")
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

	signature, err := engine.Merge(ctx, c.from, c.into)
	if serr := EncodeLedger(ledger); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("merge settled: %s\n", signature)
	return subcommands.ExitSuccess
}
