package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ebau/lotledger"
)

// setTaxRateCmd stores the two capital-gain rates in the ledger.
type setTaxRateCmd struct {
	long  float64
	short float64
}

func (*setTaxRateCmd) Name() string     { return "set-tax-rate" }
func (*setTaxRateCmd) Synopsis() string { return "configure the long and short term tax rates" }
func (*setTaxRateCmd) Usage() string {
	return `lotl set-tax-rate -long <rate> -short <rate>

  Stores the capital-gain rates used by the gains report, as fractions
  (e.g. 0.22 for 22%).
`
}

func (c *setTaxRateCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.long, "long", lotledger.DefaultLongTermGainRate, "Long-term rate, holdings of 365 days or more.")
	f.Float64Var(&c.short, "short", lotledger.DefaultShortTermGainRate, "Short-term rate, holdings under 365 days.")
}

func (c *setTaxRateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.long < 0 || c.long >= 1 || c.short < 0 || c.short >= 1 {
		fmt.Fprintln(os.Stderr, "rates must be fractions in [0, 1)")
		return subcommands.ExitUsageError
	}
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	ledger.SetTaxRate(lotledger.TaxRate{LongTermGain: c.long, ShortTermGain: c.short})
	if err := EncodeLedger(ledger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tax rates set: long %.4f, short %.4f\n", c.long, c.short)
	return subcommands.ExitSuccess
}
