package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/ebau/lotledger"
	"github.com/ebau/lotledger/date"
)

// lotsCmd lists the live lots of an account, and can record a funding lot.
type lotsCmd struct {
	account string
	token   string
	add     string
	price   string
	kind    string
	when    string
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list an account's live lots, or record a new one" }
func (*lotsCmd) Usage() string {
	return `lotl lots -account <address> [-token <symbol>] [-add <amount> -price <usd> [-kind <kind>] [-on <date>]]

  Lists the live lots of one tracked account. With -add, records a new lot
  (a funding deposit or a manually entered reward) at the given USD price.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account address.")
	f.StringVar(&c.token, "token", "SOL", "Token symbol.")
	f.StringVar(&c.add, "add", "", "Record a new lot of this whole-unit amount.")
	f.StringVar(&c.price, "price", "", "Acquisition price in USD per whole unit.")
	f.StringVar(&c.kind, "kind", string(lotledger.KindPurchase), "Acquisition kind (purchase, reward, transfer, swap).")
	f.StringVar(&c.when, "on", "", "Acquisition date, YYYY-MM-DD. Defaults to today.")
}

func (c *lotsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "-account is required")
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

	if c.add != "" {
		return c.addLot(ledger, token)
	}

	account, ok := ledger.GetAccount(c.account, token)
	if !ok {
		fmt.Fprintf(os.Stderr, "account %s (%s) is not tracked\n", c.account, token)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOT\tAMOUNT\tACQUIRED\tPRICE\tKIND\tCOST BASIS")
	for _, lot := range account.Lots {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			lot.LotNumber, token.FormatAmount(lot.Amount),
			lot.Acquisition.When, lot.Acquisition.Price.StringFixed(4),
			lot.Acquisition.Kind, lot.CostBasis(token))
	}
	w.Flush()
	fmt.Printf("live: %s, last known balance: %s\n",
		token.FormatAmount(account.LiveAmount()), token.FormatAmount(account.LastUpdateBalance))
	return subcommands.ExitSuccess
}

func (c *lotsCmd) addLot(ledger *lotledger.Ledger, token lotledger.Token) subcommands.ExitStatus {
	amount, err := parseAmount(token, c.add)
	if err != nil || amount == nil {
		fmt.Fprintf(os.Stderr, "bad -add amount %q\n", c.add)
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -price %q: %v\n", c.price, err)
		return subcommands.ExitUsageError
	}
	when := date.Today()
	if c.when != "" {
		if when, err = date.Parse(c.when); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	kind, err := lotledger.ParseAcquisitionKind(c.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	acq := lotledger.Acquisition{When: when, Price: price, Kind: kind}
	lot, err := ledger.AddLot(c.account, token, *amount, acq)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := EncodeLedger(ledger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("recorded lot %d: %s at %s USD (%s)\n",
		lot.LotNumber, token.FormatAmount(lot.Amount), price.StringFixed(4), c.kind)
	return subcommands.ExitSuccess
}
