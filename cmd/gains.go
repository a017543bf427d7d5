package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
	"github.com/ebau/lotledger/date"
)

// gainsCmd reports realized gains, income and tax over a period.
type gainsCmd struct {
	start string
	end   string
	year  int
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "realized gain, income and tax report" }
func (*gainsCmd) Usage() string {
	return `lotl gains [-year <yyyy> | -s <date> -d <date>]

  Aggregates disposed lots into proceeds, cost basis, staking income, the
  short/long-term gain split, and the tax owed under the configured rates.
  Defaults to the current calendar year.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "Report on one calendar year.")
	f.StringVar(&c.start, "s", "", "Start date of the reporting period, YYYY-MM-DD.")
	f.StringVar(&c.end, "d", "", "End date of the reporting period, YYYY-MM-DD.")
}

// reportRange resolves the period flags, defaulting to the current year.
func (c *gainsCmd) reportRange() (date.Range, error) {
	if c.start != "" || c.end != "" {
		from, to := date.New(1970, 1, 1), date.Today()
		var err error
		if c.start != "" {
			if from, err = date.Parse(c.start); err != nil {
				return date.Range{}, err
			}
		}
		if c.end != "" {
			if to, err = date.Parse(c.end); err != nil {
				return date.Range{}, err
			}
		}
		return date.Range{From: from, To: to}, nil
	}
	year := c.year
	if year == 0 {
		year = date.Today().Year()
	}
	return date.Range{From: date.New(year, 1, 1), To: date.New(year, 12, 31)}, nil
}

func (c *gainsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := c.reportRange()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	disposed := lotledger.FilterDisposed(ledger.DisposedLots(), period)
	rate := ledger.GetTaxRate()
	report := lotledger.CalculateGains(disposed, rate)

	fmt.Printf("Realized gains %s to %s (%d lots)\n", period.From, period.To, report.Lots)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for token, amount := range report.Amounts {
		fmt.Fprintf(w, "disposed\t%s\n", token.FormatAmount(amount))
	}
	fmt.Fprintf(w, "proceeds\t%s\n", report.Proceeds)
	fmt.Fprintf(w, "cost basis\t%s\n", report.CostBasis)
	fmt.Fprintf(w, "income (rewards)\t%s\n", report.Income)
	fmt.Fprintf(w, "short-term gain\t%s\t(rate %.4f)\n", report.ShortTerm, rate.ShortTermGain)
	fmt.Fprintf(w, "long-term gain\t%s\t(rate %.4f)\n", report.LongTerm, rate.LongTermGain)
	fmt.Fprintf(w, "total gain\t%s\n", report.Gain)
	fmt.Fprintf(w, "tax owed\t%s\n", report.Tax)
	w.Flush()
	return subcommands.ExitSuccess
}
