package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// dropCmd records a disposal that happened outside the engine, or sends a
// non-native token out through the spl-token collaborator.
type dropCmd struct {
	account string
	token   string
	to      string
	amount  string
	method  string
	lots    string
}

func (*dropCmd) Name() string     { return "drop" }
func (*dropCmd) Synopsis() string { return "dispose lots directly, optionally sending a token out" }
func (*dropCmd) Usage() string {
	return `lotl drop -account <address> [-token <symbol>] [-to <address>] [-amount <n>|all] [-method <m>] [-lots <n,n,...>]

  Without -to, records an immediate disposal of the selected lots at the
  current market price (for transfers that happened out of band). With -to
  and a non-native token, runs the external token transfer first and records
  the disposal only on reported success.
`
}

func (c *dropCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Tracked account holding the lots.")
	f.StringVar(&c.token, "token", "SOL", "Token symbol.")
	f.StringVar(&c.to, "to", "", "Recipient; triggers an spl-token transfer for non-native tokens.")
	f.StringVar(&c.amount, "amount", "all", "Whole-unit amount, or 'all'.")
	f.StringVar(&c.method, "method", "", "Lot selection method (default fifo).")
	f.StringVar(&c.lots, "lots", "", "Explicit lot numbers, comma separated. Overrides -method.")
}

func (c *dropCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "-account is required")
		return subcommands.ExitUsageError
	}
	token, err := lotledger.ParseToken(c.token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(token, c.amount)
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

	if c.to != "" && !token.IsNative() {
		if amount == nil {
			fmt.Fprintln(os.Stderr, "token transfers need an explicit -amount")
			return subcommands.ExitUsageError
		}
		engine, err := newEngine(ledger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		signature, err := engine.TransferToken(ctx, token, c.account, c.to, *amount, method, lots)
		if serr := EncodeLedger(ledger); serr != nil {
			fmt.Fprintln(os.Stderr, serr)
			return subcommands.ExitFailure
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("token transfer settled: %s\n", signature)
		return subcommands.ExitSuccess
	}

	if err := ledger.RecordDrop(c.account, token, amount, method, lots); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := EncodeLedger(ledger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("disposal recorded")
	return subcommands.ExitSuccess
}
