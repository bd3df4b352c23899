package conversions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"leadscoring_backend/platform/logger"
)

type stubConfig struct {
	endpoint string
	enabled  bool
}

func (c stubConfig) IsConversionsEnabled() bool           { return c.enabled }
func (c stubConfig) GetConversionsEndpoint() string       { return c.endpoint }
func (c stubConfig) GetPixelID() string                   { return "pixel-1" }
func (c stubConfig) GetPixelToken() string                { return "secret" }
func (c stubConfig) GetConversionsRatePerMinute() float64 { return 600 }
func (c stubConfig) GetPhoneRegion() string               { return "US" }

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNewPixelClientDisabled(t *testing.T) {
	if client := NewPixelClient(stubConfig{enabled: false}, logger.New("test")); client != nil {
		t.Fatal("expected nil client when integration disabled")
	}
}

func TestNotifyConversionSendsHashedIdentifiers(t *testing.T) {
	var got pixelEvent
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewPixelClient(stubConfig{enabled: true, endpoint: server.URL}, logger.New("test"))
	if client == nil {
		t.Fatal("expected client")
	}

	leadID := uuid.New()
	err := client.NotifyConversion(context.Background(), Conversion{
		LeadID:   leadID,
		ClientID: "c1",
		Email:    "  Jane@Example.COM ",
		Phone:    "(404) 555-1234",
		Amount:   5000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	if got.PixelID != "pixel-1" || got.LeadID != leadID.String() {
		t.Fatalf("unexpected payload identity: %+v", got)
	}
	if got.EmailHash != sha256hex("jane@example.com") {
		t.Fatalf("expected lowercased trimmed email hash, got %q", got.EmailHash)
	}
	if got.PhoneHash != sha256hex("+14045551234") {
		t.Fatalf("expected E.164 phone hash, got %q", got.PhoneHash)
	}
	if got.Value != 5000 || got.EventName != "job_booked" {
		t.Fatalf("unexpected event payload: %+v", got)
	}
}

func TestNotifyConversionSurfacesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewPixelClient(stubConfig{enabled: true, endpoint: server.URL}, logger.New("test"))

	err := client.NotifyConversion(context.Background(), Conversion{LeadID: uuid.New(), ClientID: "c1"})
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestNopNotifierNeverFails(t *testing.T) {
	if err := (NopNotifier{}).NotifyConversion(context.Background(), Conversion{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
