package crm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Webhook deliveries carry a hex HMAC-SHA256 of "<timestamp>:<body>" keyed by the
// tenant's webhook secret. The timestamp is in Unix milliseconds.
const (
	HeaderWebhookSignature  = "X-Twenty-Webhook-Signature"
	HeaderWebhookTimestamp  = "X-Twenty-Webhook-Timestamp"
	DefaultWebhookTolerance = 5 * time.Minute
)

var (
	ErrWebhookSecretMissing = errors.New("crm webhook secret not configured")
	ErrWebhookSignature     = errors.New("crm webhook signature mismatch")
	ErrWebhookExpired       = errors.New("crm webhook timestamp outside tolerance")
)

// SignWebhook returns the signature a delivery of body at timestamp must carry.
func SignWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks a delivery's signature and, when tolerance is positive, its age.
func VerifyWebhook(secret, timestamp, signature string, body []byte, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return ErrWebhookSecretMissing
	}
	timestamp = strings.TrimSpace(timestamp)
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || timestamp == "" {
		return ErrWebhookSignature
	}
	want, _ := hex.DecodeString(SignWebhook(secret, timestamp, body))
	if !hmac.Equal(got, want) {
		return ErrWebhookSignature
	}
	if tolerance <= 0 {
		return nil
	}
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrWebhookExpired
	}
	age := now.Sub(time.UnixMilli(ms))
	if age > tolerance || age < -tolerance {
		return ErrWebhookExpired
	}
	return nil
}
