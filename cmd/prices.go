package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// pricesCmd fetches and prints current USD prices, optionally looping.
type pricesCmd struct {
	watch bool
	every time.Duration
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "show current USD prices of the supported tokens" }
func (*pricesCmd) Usage() string {
	return `lotl prices [-watch] [-every <duration>]

  Fetches each supported token's USD price. With -watch, keeps polling and
  reprints on every refresh, the way long-running commands consume prices.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.watch, "watch", false, "Keep polling instead of a single fetch.")
	f.DurationVar(&c.every, "every", lotledger.DefaultPollInterval, "Polling interval with -watch.")
}

func printPrices(prices *lotledger.PriceMap) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, token := range lotledger.Tokens() {
		if usd, ok := prices.Get(token); ok {
			fmt.Fprintf(w, "%s\t%s USD\n", token, usd.StringFixed(4))
		} else {
			fmt.Fprintf(w, "%s\t-\n", token)
		}
	}
	w.Flush()
}

func (c *pricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client := &http.Client{Timeout: 30 * time.Second}
	prices := lotledger.NewPriceMap()

	if !c.watch {
		fetched, err := lotledger.FetchPrices(client, lotledger.Tokens())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		for token, usd := range fetched {
			prices.Set(token, usd)
		}
		printPrices(prices)
		return subcommands.ExitSuccess
	}

	go prices.Poll(ctx, client, lotledger.Tokens(), c.every)
	ticker := time.NewTicker(c.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-ticker.C:
			fmt.Printf("as of %s\n", prices.UpdatedAt().Format(time.TimeOnly))
			printPrices(prices)
		}
	}
}
