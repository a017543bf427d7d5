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

// summaryCmd shows holdings, or prices a hypothetical disposal.
type summaryCmd struct {
	account string
	token   string
	amount  string
	method  string
	lots    string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "holdings overview, or what-if disposal pricing" }
func (*summaryCmd) Usage() string {
	return `lotl summary [-account <address> [-token <symbol>] [-amount <n>|all] [-method <m>] [-lots <n,n,...>]]

  Without -account, sums live holdings per token across all accounts. With
  -account, prices the selected lots at the current market price and shows
  the gain and tax a disposal would realize, without touching the ledger.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Price a disposal from this account.")
	f.StringVar(&c.token, "token", "SOL", "Token symbol.")
	f.StringVar(&c.amount, "amount", "all", "Whole-unit amount, or 'all'.")
	f.StringVar(&c.method, "method", "", "Lot selection method (default fifo).")
	f.StringVar(&c.lots, "lots", "", "Explicit lot numbers, comma separated. Overrides -method.")
}

func (c *summaryCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.account == "" {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tHELD\tACCOUNTS")
		for _, h := range ledger.Holdings() {
			fmt.Fprintf(w, "%s\t%s\t%d\n", h.Token, h.Token.FormatAmount(h.Amount), h.Accounts)
		}
		w.Flush()
		return subcommands.ExitSuccess
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

	// Value the what-if at live prices when reachable; acquisition prices
	// otherwise.
	prices := lotledger.NewPriceMap()
	client := &http.Client{Timeout: 30 * time.Second}
	if fetched, err := lotledger.FetchPrices(client, []lotledger.Token{token}); err == nil {
		for t, usd := range fetched {
			prices.Set(t, usd)
		}
		ledger.SetPrices(prices)
	}

	s, err := ledger.Summarize(c.account, token, amount, method, lots)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "disposing\t%s\n", s.Token.FormatAmount(s.Amount))
	fmt.Fprintf(w, "value\t%s\n", s.Value)
	fmt.Fprintf(w, "cost basis\t%s\n", s.CostBasis)
	fmt.Fprintf(w, "short-term gain\t%s\n", s.ShortTerm)
	fmt.Fprintf(w, "long-term gain\t%s\n", s.LongTerm)
	fmt.Fprintf(w, "total gain\t%s\n", s.Gain)
	fmt.Fprintf(w, "estimated tax\t%s\n", s.Tax)
	w.Flush()
	return subcommands.ExitSuccess
}
