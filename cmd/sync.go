package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// syncCmd reconciles the ledger against the chain.
type syncCmd struct {
	prices bool
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "reconcile the ledger against the chain" }
func (*syncCmd) Usage() string {
	return `lotl sync [-prices=false]

  Resolves transfers left pending by a previous run (confirming landed ones,
  cancelling expired ones), refreshes every account's balance, records stake
  rewards as income lots, and absorbs fee shortfalls into the oldest lot.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.prices, "prices", true, "Fetch current prices first, to value new income lots.")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if c.prices {
		prices := lotledger.NewPriceMap()
		client := &http.Client{Timeout: 30 * time.Second}
		fetched, err := lotledger.FetchPrices(client, lotledger.Tokens())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v (income lots will be priced at zero)\n", err)
		}
		for token, usd := range fetched {
			prices.Set(token, usd)
		}
		ledger.SetPrices(prices)
	}

	err = engine.Sync(ctx)
	if serr := EncodeLedger(ledger); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("ledger is in sync")
	return subcommands.ExitSuccess
}
