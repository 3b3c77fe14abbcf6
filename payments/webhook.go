package payments

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const SignatureHeader = "X-Signature"

var ErrBadSignature = errors.New("webhook signature mismatch")

// WebhookPayload is the gateway's payment-confirmed event.
type WebhookPayload struct {
	EventID   string    `json:"event_id" validate:"required"`
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Amount    int64     `json:"amount" validate:"required,gt=0"`
}

// VerifySignature checks the hex HMAC-SHA256 the gateway sent over body.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}
