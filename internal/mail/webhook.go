package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// WebhookSender POSTs messages as JSON to a delivery endpoint. Transport
// errors and 5xx responses are retried with exponential backoff; 4xx
// responses are not, since resending a rejected payload cannot succeed.
type WebhookSender struct {
	url    string
	client *http.Client
	policy func() backoff.BackOff
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

func (s *WebhookSender) Send(ctx context.Context, email Email) error {
	payload, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("email webhook unreachable")
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("webhook rejected email: %s", resp.Status))
		default:
			log.Warn().Str("status", resp.Status).Int("attempt", attempt).Msg("email webhook failed")
			return fmt.Errorf("webhook unavailable: %s", resp.Status)
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(s.policy(), ctx)); err != nil {
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}
	log.Info().Str("to", email.To).Str("subject", email.Subject).Msg("email delivered via webhook")
	return nil
}
