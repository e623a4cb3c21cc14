// Package messaging delivers outbound WhatsApp messages through the Evolution
// send webhook. Delivery is retried with a linear backoff; after the last
// attempt the error is returned to the caller.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saudeflow/agendabot/internal/observability/metrics"
	"github.com/saudeflow/agendabot/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Config holds the outbound channel settings.
type Config struct {
	SendURL     string
	MaxAttempts int
	BackoffStep time.Duration
	HTTPClient  *http.Client
	Metrics     *metrics.OutboundMetrics
	Logger      *logging.Logger
}

// Sender posts messages to the WhatsApp send webhook.
type Sender struct {
	sendURL     string
	maxAttempts int
	backoffStep time.Duration
	client      *http.Client
	metrics     *metrics.OutboundMetrics
	logger      *logging.Logger
}

// NewSender builds a sender from cfg. The send URL is required.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.SendURL == "" {
		return nil, fmt.Errorf("messaging: missing send URL")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.BackoffStep
	if backoff <= 0 {
		backoff = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		sendURL:     cfg.SendURL,
		maxAttempts: maxAttempts,
		backoffStep: backoff,
		client:      client,
		metrics:     cfg.Metrics,
		logger:      logger,
	}, nil
}

type outboundPayload struct {
	TelefoneCliente string `json:"telefoneCliente"`
	Mensagem        string `json:"mensagem"`
	Instancia       string `json:"instancia"`
}

// Send posts one message, retrying failed attempts with delays of one step,
// two steps and so on between tries.
func (s *Sender) Send(ctx context.Context, identity, instance, text string) error {
	body, err := json.Marshal(outboundPayload{
		TelefoneCliente: identity,
		Mensagem:        text,
		Instancia:       instance,
	})
	if err != nil {
		return fmt.Errorf("messaging: encode payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.metrics.ObserveAttempt()
		lastErr = s.post(ctx, body)
		if lastErr == nil {
			s.metrics.ObserveSend(nil)
			return nil
		}
		s.logger.Warn("outbound delivery failed",
			"identity", identity,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", lastErr,
		)
		if attempt < s.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * s.backoffStep):
			case <-ctx.Done():
				s.metrics.ObserveSend(ctx.Err())
				return fmt.Errorf("messaging: send canceled: %w", ctx.Err())
			}
		}
	}
	s.metrics.ObserveSend(lastErr)
	return fmt.Errorf("messaging: send after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
