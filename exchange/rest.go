package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

func init() {
	Register("rest", newRESTVenue)
}

// restVenue talks to a venue exposing the common REST shape: list endpoints
// wrap their payload in a "data" envelope, and credentials travel in headers.
type restVenue struct {
	name   string
	base   string
	key    string
	secret string
	http   *http.Client
}

func newRESTVenue(name string, cfg Config) (Venue, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("venue %q: base_url is required", name)
	}
	return &restVenue{
		name:   name,
		base:   cfg.BaseURL,
		key:    cfg.APIKey,
		secret: cfg.APISecret,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (v *restVenue) Name() string { return v.name }

// roundTrip performs one authenticated request and parses the JSON response
// into a generic document for jsonpath extraction.
func (v *restVenue) roundTrip(ctx context.Context, method, path string, body any) (interface{}, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, v.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.key != "" {
		req.Header.Set("X-Api-Key", v.key)
		req.Header.Set("X-Api-Secret", v.secret)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("venue %s: %s %s: %w", v.name, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("venue %s: %s %s: %s", v.name, method, path, resp.Status)
	}
	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("venue %s: decoding %s response: %w", v.name, path, err)
	}
	return doc, nil
}

// items extracts the "data" envelope as a list.
func items(doc interface{}) ([]interface{}, error) {
	data, err := jsonpath.Get("$.data", doc)
	if err != nil {
		return nil, err
	}
	list, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("data is not a list")
	}
	return list, nil
}

func field(item interface{}, path string) string {
	v, err := jsonpath.Get(path, item)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (v *restVenue) Accounts(ctx context.Context) ([]AccountInfo, error) {
	doc, err := v.roundTrip(ctx, http.MethodGet, "/v1/accounts", nil)
	if err != nil {
		return nil, err
	}
	list, err := items(doc)
	if err != nil {
		return nil, fmt.Errorf("venue %s: accounts: %w", v.name, err)
	}
	accounts := make([]AccountInfo, 0, len(list))
	for _, item := range list {
		available, err := decimal.NewFromString(field(item, "$.available"))
		if err != nil {
			available = decimal.Zero
		}
		accounts = append(accounts, AccountInfo{
			ID:        field(item, "$.id"),
			Currency:  field(item, "$.currency"),
			Available: available,
		})
	}
	return accounts, nil
}

func (v *restVenue) PaymentMethods(ctx context.Context) ([]PaymentInfo, error) {
	doc, err := v.roundTrip(ctx, http.MethodGet, "/v1/payment-methods", nil)
	if err != nil {
		return nil, err
	}
	list, err := items(doc)
	if err != nil {
		return nil, fmt.Errorf("venue %s: payment methods: %w", v.name, err)
	}
	methods := make([]PaymentInfo, 0, len(list))
	for _, item := range list {
		methods = append(methods, PaymentInfo{
			ID:   field(item, "$.id"),
			Kind: field(item, "$.type"),
			Name: field(item, "$.name"),
		})
	}
	return methods, nil
}

func (v *restVenue) DepositAddress(ctx context.Context, asset string) (string, error) {
	doc, err := v.roundTrip(ctx, http.MethodGet, "/v1/deposit-address?asset="+url.QueryEscape(asset), nil)
	if err != nil {
		return "", err
	}
	address := field(doc, "$.data.address")
	if address == "" {
		return "", fmt.Errorf("venue %s: no deposit address for %s", v.name, asset)
	}
	return address, nil
}

func (v *restVenue) DisburseCash(ctx context.Context, amount decimal.Decimal, currency, paymentID string) (*Disbursement, error) {
	doc, err := v.roundTrip(ctx, http.MethodPost, "/v1/withdrawals", map[string]string{
		"amount":            amount.String(),
		"currency":          currency,
		"payment_method_id": paymentID,
	})
	if err != nil {
		return nil, err
	}
	id := field(doc, "$.data.id")
	if id == "" {
		return nil, fmt.Errorf("venue %s: withdrawal not acknowledged", v.name)
	}
	return &Disbursement{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Status:   field(doc, "$.data.status"),
	}, nil
}
