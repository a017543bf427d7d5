package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// accountsCmd lists tracked accounts, and can start or stop tracking one.
type accountsCmd struct {
	track   string
	untrack string
	token   string
	desc    string
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list, track, or untrack ledger accounts" }
func (*accountsCmd) Usage() string {
	return `lotl accounts [-track <address> | -untrack <address>] [-token <symbol>] [-desc <text>]

  Without flags, lists every tracked account with its live lots and balance.
  -track starts tracking a new empty account; -untrack stops tracking an
  account that holds no live lots.
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.track, "track", "", "Start tracking this address.")
	f.StringVar(&c.untrack, "untrack", "", "Stop tracking this address.")
	f.StringVar(&c.token, "token", "SOL", "Token symbol the account holds.")
	f.StringVar(&c.desc, "desc", "", "Description for a newly tracked account.")
}

func (c *accountsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.track != "" && c.untrack != "" {
		fmt.Fprintln(os.Stderr, "-track and -untrack cannot be used together")
		return subcommands.ExitUsageError
	}
	token, err := lotledger.ParseToken(c.token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	switch {
	case c.track != "":
		if err := ledger.AddAccount(c.track, token, c.desc); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("tracking %s (%s)\n", c.track, token)
	case c.untrack != "":
		if err := ledger.RemoveAccount(c.untrack, token); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("stopped tracking %s (%s)\n", c.untrack, token)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tTOKEN\tLOTS\tBALANCE\tDESCRIPTION")
		for _, a := range ledger.Accounts() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				a.Address, a.Token, len(a.Lots), a.Token.FormatAmount(a.LastUpdateBalance), a.Description)
		}
		w.Flush()
		return subcommands.ExitSuccess
	}

	if err := EncodeLedger(ledger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
