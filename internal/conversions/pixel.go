package conversions

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadscoring_backend/platform/config"
	"leadscoring_backend/platform/logger"
	"leadscoring_backend/platform/phone"
)

// PixelClient posts conversion events to an HTTP pixel endpoint. Identifiers
// are normalized then hashed before leaving the system: email is lowercased,
// phone is formatted to E.164, both are SHA-256 hex. Outbound calls share a
// rate limiter so a burst of bookings cannot trip the pixel's quota.
type PixelClient struct {
	endpoint string
	pixelID  string
	token    string
	region   string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

type pixelEvent struct {
	PixelID   string  `json:"pixelId"`
	EventName string  `json:"eventName"`
	EventTime int64   `json:"eventTime"`
	LeadID    string  `json:"leadId"`
	ClientID  string  `json:"clientId"`
	EmailHash string  `json:"emailHash,omitempty"`
	PhoneHash string  `json:"phoneHash,omitempty"`
	Value     float64 `json:"value"`
	Currency  string  `json:"currency"`
}

// NewPixelClient builds the pixel notifier. Returns nil when the integration
// is not configured; callers treat a nil client as disabled.
func NewPixelClient(cfg config.ConversionsConfig, log *logger.Logger) *PixelClient {
	if !cfg.IsConversionsEnabled() {
		return nil
	}

	perMinute := cfg.GetConversionsRatePerMinute()
	if perMinute <= 0 {
		perMinute = 60
	}

	return &PixelClient{
		endpoint: strings.TrimRight(cfg.GetConversionsEndpoint(), "/"),
		pixelID:  cfg.GetPixelID(),
		token:    cfg.GetPixelToken(),
		region:   cfg.GetPhoneRegion(),
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(perMinute/60.0), 5),
		log:      log,
	}
}

// NotifyConversion reports one booked lead to the pixel endpoint.
func (c *PixelClient) NotifyConversion(ctx context.Context, conv Conversion) error {
	if c == nil {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("conversion rate limiter: %w", err)
	}

	occurred := conv.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	event := pixelEvent{
		PixelID:   c.pixelID,
		EventName: "job_booked",
		EventTime: occurred.Unix(),
		LeadID:    conv.LeadID.String(),
		ClientID:  conv.ClientID,
		EmailHash: hashIdentifier(strings.ToLower(strings.TrimSpace(conv.Email))),
		PhoneHash: hashIdentifier(phone.NormalizeE164(conv.Phone, c.region)),
		Value:     conv.Amount,
		Currency:  "USD",
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal conversion payload: %w", err)
	}

	url := fmt.Sprintf("%s/events", c.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conversion request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pixel endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("conversion reported", "leadId", conv.LeadID, "clientId", conv.ClientID)
	return nil
}

func hashIdentifier(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

var _ Notifier = (*PixelClient)(nil)
