package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"google.golang.org/genai"

	"github.com/ebau/lotledger"
	"github.com/ebau/lotledger/advisor"
	"github.com/ebau/lotledger/date"
)

// assistCmd starts an interactive session with the tax advisor.
type assistCmd struct {
	year int
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "interactive session with the gains advisor" }
func (*assistCmd) Usage() string {
	return `lotl assist [-year <yyyy>] [initial question]

  Starts a chat primed with the year's realized gains, income and tax
  figures, so the advisor can explain them.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "Report year for the briefing. Defaults to the current year.")
}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	initialPrompt := ""
	if f.NArg() > 0 {
		initialPrompt = strings.Join(f.Args(), " ")
	}

	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	year := c.year
	if year == 0 {
		year = date.Today().Year()
	}
	period := date.Range{From: date.New(year, 1, 1), To: date.New(year, 12, 31)}
	rate := ledger.GetTaxRate()
	report := lotledger.CalculateGains(lotledger.FilterDisposed(ledger.DisposedLots(), period), rate)
	briefing := advisor.Briefing(report, rate, ledger.Holdings())

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing Gemini's client:", err)
		return subcommands.ExitFailure
	}

	a := advisor.New(os.Stdout, os.Stdin)
	if err := a.Run(ctx, client, briefing, initialPrompt); err != nil {
		fmt.Fprintln(os.Stderr, "Advisor failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
