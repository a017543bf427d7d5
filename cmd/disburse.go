package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/ebau/lotledger/exchange"
)

// disburseCmd drives a cash-out venue: inspects it, or pays fiat out.
type disburseCmd struct {
	venue    string
	list     bool
	deposit  string
	amount   string
	currency string
	payment  string
}

func (*disburseCmd) Name() string     { return "disburse" }
func (*disburseCmd) Synopsis() string { return "inspect a cash-out venue or pay fiat out" }
func (*disburseCmd) Usage() string {
	return `lotl disburse -venue <name> [-list | -deposit <asset> | -amount <n> -currency <ccy> -payment <id>]

  -list shows the venue's balances and linked payment methods. -deposit
  prints the on-chain address that credits the venue for an asset. With an
  amount, asks the venue to pay fiat out to the given payment method.
`
}

func (c *disburseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.venue, "venue", "", "Configured venue name.")
	f.BoolVar(&c.list, "list", false, "List venue balances and payment methods.")
	f.StringVar(&c.deposit, "deposit", "", "Print the deposit address for this asset symbol.")
	f.StringVar(&c.amount, "amount", "", "Fiat amount to disburse.")
	f.StringVar(&c.currency, "currency", "USD", "Fiat currency to disburse.")
	f.StringVar(&c.payment, "payment", "", "Payment method id from -list.")
}

func (c *disburseCmd) venueFromConfig() (exchange.Venue, error) {
	if c.venue == "" {
		return nil, fmt.Errorf("-venue is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	vcfg, ok := cfg.Venues[c.venue]
	if !ok {
		return nil, fmt.Errorf("venue %q is not configured", c.venue)
	}
	return exchange.New("rest", vcfg)
}

func (c *disburseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	venue, err := c.venueFromConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	switch {
	case c.list:
		accounts, err := venue.Accounts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		methods, err := venue.PaymentMethods(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tCURRENCY\tAVAILABLE")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Currency, a.Available)
		}
		fmt.Fprintln(w, "\nPAYMENT METHOD\tTYPE\tNAME")
		for _, m := range methods {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Kind, m.Name)
		}
		w.Flush()

	case c.deposit != "":
		address, err := venue.DepositAddress(ctx, c.deposit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println(address)

	case c.amount != "":
		if c.payment == "" {
			fmt.Fprintln(os.Stderr, "-payment is required to disburse")
			return subcommands.ExitUsageError
		}
		amount, err := decimal.NewFromString(c.amount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -amount %q: %v\n", c.amount, err)
			return subcommands.ExitUsageError
		}
		d, err := venue.DisburseCash(ctx, amount, c.currency, c.payment)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("disbursement %s: %s %s (%s)\n", d.ID, d.Amount, d.Currency, d.Status)

	default:
		fmt.Fprintln(os.Stderr, "one of -list, -deposit, -amount is required")
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}
