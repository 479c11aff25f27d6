package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopapi/internal/domain"
)

func TestCreateIntentSendsMinorUnitsAndMetadata(t *testing.T) {
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"id":"pi_1","client_secret":"cs_1","status":"requires_payment_method"}`))
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk_test_123", 5*time.Second, nil)
	intent, err := c.CreateIntent(context.Background(), CreateIntentInput{
		Amount:      19.99,
		Currency:    "EUR",
		OrderID:     7,
		OrderNumber: "ORD-1-ABC",
		UserID:      42,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "cs_1" {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	if got := gotForm["amount"]; len(got) != 1 || got[0] != "1999" {
		t.Fatalf("expected amount in minor units, got %v", got)
	}
	if got := gotForm["currency"]; len(got) != 1 || got[0] != "eur" {
		t.Fatalf("expected lowercase currency, got %v", got)
	}
	if got := gotForm["metadata[order_id]"]; len(got) != 1 || got[0] != "7" {
		t.Fatalf("expected order id metadata, got %v", got)
	}
	if got := gotForm["metadata[order_number]"]; len(got) != 1 || got[0] != "ORD-1-ABC" {
		t.Fatalf("expected order number metadata, got %v", got)
	}
}

func TestRetrieveIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents/pi_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"pi_1","status":"succeeded"}`))
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk", 5*time.Second, nil)
	intent, err := c.RetrieveIntent(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := intent.Result(); got.Status != domain.GatewaySucceeded || got.TransactionID != "pi_1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDoRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk", 5*time.Second, nil)
	_, err := c.RetrieveIntent(context.Background(), "pi_1")
	if !errors.Is(err, domain.ErrGatewayProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestDoRejectsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"client_secret":"cs_1"}`))
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk", 5*time.Second, nil)
	_, err := c.RetrieveIntent(context.Background(), "pi_1")
	if !errors.Is(err, domain.ErrGatewayProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestDoSurfacesAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk", 5*time.Second, nil)
	_, err := c.RetrieveIntent(context.Background(), "pi_1")
	if err == nil || errors.Is(err, domain.ErrGatewayProtocol) {
		t.Fatalf("expected plain API error, got %v", err)
	}
}

func TestDoServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewStripe(srv.URL, "sk", 5*time.Second, nil)
	_, err := c.RetrieveIntent(context.Background(), "pi_1")
	if err == nil || errors.Is(err, domain.ErrGatewayProtocol) {
		t.Fatalf("5xx must stay a transport error, got %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]domain.GatewayStatus{
		"succeeded":               domain.GatewaySucceeded,
		"processing":              domain.GatewayProcessing,
		"requires_action":         domain.GatewayRequiresAction,
		"requires_payment_method": domain.GatewayRequiresAction,
		"requires_confirmation":   domain.GatewayRequiresAction,
		"canceled":                domain.GatewayFailed,
		"":                        domain.GatewayFailed,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
