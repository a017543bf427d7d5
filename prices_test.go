package lotledger

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

// stubTransport serves a canned body for any request.
type stubTransport struct {
	body   string
	status int
}

func (s stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Status:     http.StatusText(s.status),
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func stubClient(body string, status int) *http.Client {
	return &http.Client{Transport: stubTransport{body: body, status: status}}
}

func TestFetchPrices(t *testing.T) {
	client := stubClient(`{"solana":{"usd":187.32},"usd-coin":{"usd":0.9998}}`, 200)

	prices, err := FetchPrices(client, []Token{SOL, USDC, MSOL})
	if err != nil {
		t.Fatalf("FetchPrices() failed: %v", err)
	}
	if got, want := prices[SOL], price(187.32); !got.Equal(want) {
		t.Errorf("SOL price = %s, want %s", got, want)
	}
	if got, want := prices[USDC], price(0.9998); !got.Equal(want) {
		t.Errorf("USDC price = %s, want %s", got, want)
	}
	// A token absent from the response is skipped, not an error.
	if _, ok := prices[MSOL]; ok {
		t.Error("MSOL price invented from nothing")
	}
}

func TestFetchPrices_ServerError(t *testing.T) {
	client := stubClient("rate limited", 429)
	if _, err := FetchPrices(client, []Token{SOL}); err == nil {
		t.Error("FetchPrices() ignored the error status")
	}
}

func TestPriceMap(t *testing.T) {
	p := NewPriceMap()
	if _, ok := p.Get(SOL); ok {
		t.Error("empty map returned a price")
	}
	if !p.UpdatedAt().IsZero() {
		t.Error("empty map reports a refresh time")
	}

	p.Set(SOL, price(190))
	got, ok := p.Get(SOL)
	if !ok || !got.Equal(price(190)) {
		t.Errorf("Get(SOL) = %s, %v", got, ok)
	}
	if p.UpdatedAt().IsZero() {
		t.Error("refresh time not recorded")
	}
}
