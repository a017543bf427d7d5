package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func testVenue(t *testing.T, handler http.HandlerFunc) Venue {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	v, err := New("rest", Config{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return v
}

func TestRESTVenue_Accounts(t *testing.T) {
	v := testVenue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts" {
			t.Errorf("path = %s, want /v1/accounts", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "k" || r.Header.Get("X-Api-Secret") != "s" {
			t.Error("credentials missing from headers")
		}
		w.Write([]byte(`{"data":[
			{"id":"acc-1","currency":"USD","available":"120.50"},
			{"id":"acc-2","currency":"EUR","available":"not a number"}
		]}`))
	})

	accounts, err := v.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts() failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].ID != "acc-1" || !accounts[0].Available.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("accounts[0] = %+v", accounts[0])
	}
	// An unparsable balance degrades to zero rather than failing the listing.
	if !accounts[1].Available.IsZero() {
		t.Errorf("accounts[1].Available = %s, want 0", accounts[1].Available)
	}
}

func TestRESTVenue_PaymentMethods(t *testing.T) {
	v := testVenue(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"pm-1","type":"ach_bank_account","name":"Checking"}]}`))
	})
	methods, err := v.PaymentMethods(context.Background())
	if err != nil {
		t.Fatalf("PaymentMethods() failed: %v", err)
	}
	if len(methods) != 1 || methods[0].Kind != "ach_bank_account" {
		t.Errorf("methods = %+v", methods)
	}
}

func TestRESTVenue_DepositAddress(t *testing.T) {
	v := testVenue(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("asset"); got != "SOL" {
			t.Errorf("asset = %q, want SOL", got)
		}
		w.Write([]byte(`{"data":{"address":"Dep0sit111"}}`))
	})
	address, err := v.DepositAddress(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("DepositAddress() failed: %v", err)
	}
	if address != "Dep0sit111" {
		t.Errorf("address = %q", address)
	}
}

func TestRESTVenue_DisburseCash(t *testing.T) {
	v := testVenue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body["amount"] != "250" || body["currency"] != "USD" || body["payment_method_id"] != "pm-1" {
			t.Errorf("request body = %v", body)
		}
		w.Write([]byte(`{"data":{"id":"wd-9","status":"pending"}}`))
	})

	d, err := v.DisburseCash(context.Background(), decimal.NewFromInt(250), "USD", "pm-1")
	if err != nil {
		t.Fatalf("DisburseCash() failed: %v", err)
	}
	if d.ID != "wd-9" || d.Status != "pending" {
		t.Errorf("disbursement = %+v", d)
	}
}

func TestRESTVenue_ServerError(t *testing.T) {
	v := testVenue(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	if _, err := v.Accounts(context.Background()); err == nil {
		t.Error("Accounts() ignored the error status")
	}
}

func TestNew_UnknownVenueKind(t *testing.T) {
	if _, err := New("bogus", Config{}); err == nil {
		t.Error("New() accepted an unregistered kind")
	}
}
