package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

// Gateway starts a payment for a booking and returns where the customer pays.
type Gateway interface {
	InitiatePayment(ctx context.Context, bookingID uuid.UUID, amount int64) (string, error)
}

// HostedCheckout hands the customer to a hosted payment page. The query is
// signed so the page can trust the booking and amount it receives.
type HostedCheckout struct {
	BaseURL string
	Secret  string
}

func NewHostedCheckout(baseURL, secret string) *HostedCheckout {
	return &HostedCheckout{BaseURL: baseURL, Secret: secret}
}

func (h *HostedCheckout) InitiatePayment(_ context.Context, bookingID uuid.UUID, amount int64) (string, error) {
	if h == nil || h.BaseURL == "" || h.Secret == "" {
		return "", ErrGatewayNotConfigured
	}
	if amount <= 0 {
		return "", fmt.Errorf("checkout amount must be positive, got %d", amount)
	}

	u, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse checkout url: %w", err)
	}
	amt := strconv.FormatInt(amount, 10)
	q := u.Query()
	q.Set("booking_id", bookingID.String())
	q.Set("amount", amt)
	q.Set("signature", Sign(h.Secret, []byte(bookingID.String()+":"+amt)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
