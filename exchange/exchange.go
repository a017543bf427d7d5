// Package exchange integrates cash-out venues: places that accept token
// deposits and pay out fiat to a linked payment method.
//
// Venues are registered by name in a package-level table; a venue advertises
// what it can do through the Venue interface rather than a type hierarchy.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// AccountInfo is one fiat or token balance held at a venue.
type AccountInfo struct {
	ID        string
	Currency  string
	Available decimal.Decimal
}

// PaymentInfo is one payout destination linked at a venue.
type PaymentInfo struct {
	ID   string
	Kind string // e.g. "bank", "sepa"
	Name string
}

// Disbursement is one fiat payout accepted by a venue.
type Disbursement struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Venue is the capability surface of one configured exchange.
type Venue interface {
	Name() string
	// Accounts lists the venue-side balances.
	Accounts(ctx context.Context) ([]AccountInfo, error)
	// PaymentMethods lists linked payout destinations.
	PaymentMethods(ctx context.Context) ([]PaymentInfo, error)
	// DepositAddress returns the on-chain address that credits the venue
	// account for the given asset symbol.
	DepositAddress(ctx context.Context, asset string) (string, error)
	// DisburseCash pays fiat out to a linked payment method.
	DisburseCash(ctx context.Context, amount decimal.Decimal, currency, paymentID string) (*Disbursement, error)
}

// Config carries the credentials and endpoint of one venue.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Factory builds a venue from its configuration.
type Factory func(name string, cfg Config) (Venue, error)

var (
	mu     sync.RWMutex
	venues = make(map[string]Factory)
)

// Register makes a venue implementation available under a name. It panics on
// a duplicate name, like database/sql drivers.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := venues[name]; dup {
		panic(fmt.Sprintf("exchange: Register called twice for %q", name))
	}
	venues[name] = f
}

// New instantiates the named venue with its configuration.
func New(name string, cfg Config) (Venue, error) {
	mu.RLock()
	f, ok := venues[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown exchange venue %q (have %v)", name, Names())
	}
	return f(name, cfg)
}

// Names lists the registered venues.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(venues))
	for n := range venues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
