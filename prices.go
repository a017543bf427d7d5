package lotledger

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// DefaultPollInterval is how often the background poller refreshes prices.
const DefaultPollInterval = 30 * time.Second

const coingeckoSimplePrice = "https://api.coingecko.com/api/v3/simple/price"

// PriceMap holds the latest known USD price per token. It is shared between
// the background poller (writer) and the ledger (reader).
type PriceMap struct {
	mu      sync.RWMutex
	usd     map[Token]decimal.Decimal
	updated time.Time
}

func NewPriceMap() *PriceMap {
	return &PriceMap{usd: make(map[Token]decimal.Decimal)}
}

// Get returns the latest USD price for the token, if any.
func (p *PriceMap) Get(token Token) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.usd[token]
	return v, ok
}

// Set records a USD price for the token.
func (p *PriceMap) Set(token Token, usd decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usd[token] = usd
	p.updated = time.Now()
}

// UpdatedAt returns the time of the last successful refresh.
func (p *PriceMap) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}

// FetchPrices queries the CoinGecko simple-price endpoint for the given
// tokens and returns their USD prices.
func FetchPrices(client *http.Client, tokens []Token) (map[Token]decimal.Decimal, error) {
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.cgID)
	}
	addr := coingeckoSimplePrice + "?" + url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {"usd"},
	}.Encode()

	var doc interface{}
	if err := jwget(client, addr, &doc); err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	prices := make(map[Token]decimal.Decimal, len(tokens))
	for _, t := range tokens {
		v, err := jsonpath.Get(fmt.Sprintf("$[%q].usd", t.cgID), doc)
		if err != nil {
			// a token missing from the response is not fatal, keep the rest
			continue
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		prices[t] = decimal.NewFromFloat(f)
	}
	return prices, nil
}

// Poll refreshes the map every interval until the context is cancelled. It
// fetches once immediately, and polling errors are logged, not returned.
func (p *PriceMap) Poll(ctx context.Context, client *http.Client, tokens []Token, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	refresh := func() {
		prices, err := FetchPrices(client, tokens)
		if err != nil {
			log.Printf("price refresh: %v", err)
			return
		}
		p.mu.Lock()
		for t, v := range prices {
			p.usd[t] = v
		}
		p.updated = time.Now()
		p.mu.Unlock()
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
