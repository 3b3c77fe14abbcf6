package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	HTTPClient  *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns nil when the email settings are incomplete.
func NewBrevoService(apiKey, senderEmail, senderName string, log *zap.Logger) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Warn("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}
	log.Info("✅ Email service initialized", zap.String("sender", senderEmail))
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoService) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %q", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// EmailDeliverer sends queue messages by email to the user's address.
type EmailDeliverer struct {
	Contacts ContactBook
	Client   *BrevoService
}

func (d *EmailDeliverer) Deliver(ctx context.Context, userID uuid.UUID, msg Message) error {
	if d.Client == nil {
		return fmt.Errorf("email client not initialized")
	}
	u, err := d.Contacts.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up contact %s: %w", userID, err)
	}
	return d.Client.Send(ctx, u.Email, u.FullName, msg.Subject, msg.HTML)
}
