package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

// disposedCmd lists the disposal history.
type disposedCmd struct{}

func (*disposedCmd) Name() string     { return "disposed" }
func (*disposedCmd) Synopsis() string { return "list every disposed lot" }
func (*disposedCmd) Usage() string {
	return `lotl disposed

  Lists the full disposal history in recording order, one line per lot, with
  the realized gain of each.
`
}

func (*disposedCmd) SetFlags(_ *flag.FlagSet) {}

func (c *disposedCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DISPOSED\tLOT\tAMOUNT\tACQUIRED\tBASIS/UNIT\tPRICE\tGAIN")
	for _, d := range ledger.DisposedLots() {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			d.When, d.Lot.LotNumber, d.Token.FormatAmount(d.Lot.Amount),
			d.Lot.Acquisition.When, d.Lot.Acquisition.Price.StringFixed(4),
			d.Price.StringFixed(4), d.Gain())
	}
	w.Flush()
	return subcommands.ExitSuccess
}
