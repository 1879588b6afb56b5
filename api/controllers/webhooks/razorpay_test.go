package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anmolvirk/swiftcart-backend/internal/reconcile"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
)

const webhookSecret = "whsec_test"

type fakeWebhookService struct {
	calls  int
	lastID string
	err    error
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *razorpay.WebhookEvent) error {
	f.calls++
	f.lastID = event.EventID
	return f.err
}

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]string{}}
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "sc:idempotency:" + scope + ":" + id
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func buildSignedEvent(t *testing.T, eventID string) ([]byte, string) {
	t.Helper()
	event := razorpay.WebhookEvent{
		EventID: eventID,
		Event:   razorpay.EventPaymentCaptured,
		Payload: razorpay.WebhookPayload{
			Payment: &razorpay.WebhookEntity{Entity: razorpay.EventEntity{
				ID:      "pay_test",
				OrderID: "order_test",
			}},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return payload, hex.EncodeToString(mac.Sum(nil))
}

func newGuard(t *testing.T) *reconcile.IdempotencyGuard {
	t.Helper()
	guard, err := reconcile.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "razorpay-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func postEvent(handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRazorpayWebhookSuccessAndIdempotent(t *testing.T) {
	payload, signature := buildSignedEvent(t, "evt_1")
	service := &fakeWebhookService{}
	verifier := razorpay.NewVerifier("key_secret", webhookSecret)
	handler := RazorpayWebhook(service, verifier, newGuard(t), nil)

	rec := postEvent(handler, payload, signature)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.lastID != "evt_1" {
		t.Fatalf("expected event id evt_1, got %s", service.lastID)
	}

	// Replay of the same event is acknowledged without reprocessing.
	rec = postEvent(handler, payload, signature)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestRazorpayWebhookInvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, "evt_2")
	service := &fakeWebhookService{}
	verifier := razorpay.NewVerifier("key_secret", webhookSecret)
	handler := RazorpayWebhook(service, verifier, newGuard(t), nil)

	rec := postEvent(handler, payload, "0000deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked on invalid signature")
	}
}

func TestRazorpayWebhookMissingSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, "evt_3")
	service := &fakeWebhookService{}
	verifier := razorpay.NewVerifier("key_secret", webhookSecret)
	handler := RazorpayWebhook(service, verifier, newGuard(t), nil)

	rec := postEvent(handler, payload, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked without a signature")
	}
}

func TestRazorpayWebhookServiceErrorUnmarksEvent(t *testing.T) {
	payload, signature := buildSignedEvent(t, "evt_4")
	service := &fakeWebhookService{err: errors.New("transient failure")}
	verifier := razorpay.NewVerifier("key_secret", webhookSecret)
	handler := RazorpayWebhook(service, verifier, newGuard(t), nil)

	rec := postEvent(handler, payload, signature)
	if rec.Code == http.StatusOK {
		t.Fatal("expected error status when handling fails")
	}

	// The failed event was unmarked, so the provider retry processes it.
	service.err = nil
	rec = postEvent(handler, payload, signature)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to be processed, call count %d", service.calls)
	}
}

func TestRazorpayWebhookEventIDFromHeader(t *testing.T) {
	event := razorpay.WebhookEvent{
		Event: razorpay.EventPaymentCaptured,
		Payload: razorpay.WebhookPayload{
			Payment: &razorpay.WebhookEntity{Entity: razorpay.EventEntity{
				ID:      "pay_hdr",
				OrderID: "order_hdr",
			}},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	service := &fakeWebhookService{}
	verifier := razorpay.NewVerifier("key_secret", webhookSecret)
	handler := RazorpayWebhook(service, verifier, newGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, signature)
	req.Header.Set(eventIDHeader, "evt_from_header")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.lastID != "evt_from_header" {
		t.Fatalf("expected header event id, got %s", service.lastID)
	}
}
