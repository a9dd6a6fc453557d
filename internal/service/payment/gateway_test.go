package payment_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:            "order-1",
		Number:        "CHK-0001",
		CustomerEmail: "buyer@example.com",
		Currency:      "USD",
		TotalMinor:    1500,
	}
}

func fastRetry() payment.RetryConfig {
	return payment.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestGatewayCreateSession_Ok(t *testing.T) {
	var gotReference string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotReference, _ = req["reference"].(string)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":           "session-1",
			"redirect_url": "https://pay.example.com/session-1",
		})
	}))
	defer srv.Close()

	gw := payment.NewGateway(srv.URL, fastRetry(), nil)
	session, err := gw.CreateSession(testOrder())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	if session.ID != "session-1" {
		t.Fatalf("expected session-1, got %s", session.ID)
	}
	// Сессия ключуется номером заказа: повтор с тем же reference идемпотентен.
	if gotReference != "CHK-0001" {
		t.Fatalf("expected order number as reference, got %s", gotReference)
	}
}

func TestGatewayCreateSession_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "session-1"})
	}))
	defer srv.Close()

	gw := payment.NewGateway(srv.URL, fastRetry(), nil)
	session, err := gw.CreateSession(testOrder())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if session.ID != "session-1" {
		t.Fatalf("expected session-1, got %s", session.ID)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGatewayCreateSession_DoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	gw := payment.NewGateway(srv.URL, fastRetry(), nil)
	_, err := gw.CreateSession(testOrder())
	if !errors.Is(err, domain.ErrPaymentProvider) {
		t.Fatalf("expected ErrPaymentProvider, got %v", err)
	}
	// 4xx — не временный сбой, повтор не имеет смысла.
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt for 4xx, got %d", calls.Load())
	}
}

func TestGatewayCreateSession_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := payment.NewGateway(srv.URL, fastRetry(), nil)
	_, err := gw.CreateSession(testOrder())
	if !errors.Is(err, domain.ErrPaymentProvider) {
		t.Fatalf("expected ErrPaymentProvider, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestMockGateway_FailFirst(t *testing.T) {
	mock := payment.NewMockGateway()
	mock.Err = errors.New("boom")
	mock.FailFirst = 1

	if _, err := mock.CreateSession(testOrder()); err == nil {
		t.Fatal("expected configured error on first call")
	}
	if _, err := mock.CreateSession(testOrder()); err != nil {
		t.Fatalf("expected success on second call, got %v", err)
	}
	if mock.Calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.Calls)
	}
}
