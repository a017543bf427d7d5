// Package cmd implements the CLI application to manage the tax-lot ledger.
package cmd

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/ebau/lotledger"
	"github.com/ebau/lotledger/chain"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on
// the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&accountsCmd{}, "ledger")
	c.Register(&lotsCmd{}, "ledger")
	c.Register(&setTaxRateCmd{}, "ledger")

	c.Register(&withdrawCmd{}, "transfers")
	c.Register(&delegateCmd{}, "transfers")
	c.Register(&deactivateCmd{}, "transfers")
	c.Register(&splitCmd{}, "transfers")
	c.Register(&mergeCmd{}, "transfers")
	c.Register(&dropCmd{}, "transfers")
	c.Register(&syncCmd{}, "transfers")

	c.Register(&gainsCmd{}, "reports")
	c.Register(&disposedCmd{}, "reports")
	c.Register(&summaryCmd{}, "reports")
	c.Register(&pricesCmd{}, "reports")

	c.Register(&disburseCmd{}, "exchange")
	c.Register(&assistCmd{}, "assist")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to
// use global variables.

var configFile = flag.String("config", "", "Path to the config file (default ~/.config/lotl/config.yml)")
var ledgerName = flag.String("l", "", "Ledger to operate on. Defaults to the only ledger if one exists.")

// DecodeLedger loads the selected ledger from the configured directory.
func DecodeLedger() (*lotledger.Ledger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lotledger.FindLedger(cfg.LedgerDir, *ledgerName)
}

// EncodeLedger saves the ledger back to the configured directory.
func EncodeLedger(l *lotledger.Ledger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return lotledger.SaveLedger(cfg.LedgerDir, l)
}

// newNetwork builds the chain client from the configuration. Transfer
// commands need the authority keypair; read-only commands never call this.
func newNetwork() (*chain.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Keypair == "" {
		return nil, fmt.Errorf("no keypair configured; set 'keypair' in %s", defaultConfigPath())
	}
	return chain.NewClient(cfg.RPCURL, cfg.Keypair)
}

// newEngine wires the ledger, chain client, price map and token transferrer
// for one transfer command.
func newEngine(ledger *lotledger.Ledger) (*lotledger.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	net, err := newNetwork()
	if err != nil {
		return nil, err
	}
	engine := lotledger.NewEngine(ledger, net)
	engine.SetTokenTransferrer(&lotledger.SPLTokenCLI{
		Binary:  cfg.SPLTokenBinary,
		RPCURL:  cfg.RPCURL,
		Keypair: cfg.Keypair,
	})
	return engine, nil
}

// parseAmount converts a whole-unit amount flag into smallest units. The
// empty string and "all" mean everything, returned as nil.
func parseAmount(token lotledger.Token, s string) (*uint64, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	ui, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	if !ui.IsPositive() {
		return nil, fmt.Errorf("amount %q must be positive", s)
	}
	amount := token.Amount(ui)
	return &amount, nil
}

// parseLots parses a comma-separated lot number list like "0,3,7".
func parseLots(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	var numbers []uint64
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad lot number %q: %w", part, err)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}
