package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/outcome"
)

// webhookPayload is the JSON body posted for each outcome.
type webhookPayload struct {
	EventType    string    `json:"eventType"`
	InstanceName string    `json:"instanceName"`
	ItemID       string    `json:"itemId,omitempty"`
	ItemTitle    string    `json:"itemTitle,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Client       string    `json:"downloadClient,omitempty"`
	Path         string    `json:"path,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Webhook posts acquisition outcomes to a custom endpoint.
type Webhook struct {
	cfg        config.WebhookConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(cfg config.WebhookConfig, httpClient *http.Client, log *logger.Logger) *Webhook {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.WithComponent("webhook"),
	}
}

// Handler returns the bus subscriber. Delivery happens inline on a short
// timeout; a failed post is logged and dropped, never retried into the
// pipeline's path.
func (w *Webhook) Handler() Handler {
	return func(o outcome.Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.send(ctx, o); err != nil {
			w.log.Warn().Str("url", w.cfg.URL).Err(err).Msg("Failed to deliver webhook")
		}
	}
}

// Test posts a synthetic event so the operator can verify the endpoint.
func (w *Webhook) Test(ctx context.Context) error {
	return w.post(ctx, webhookPayload{
		EventType:    "test",
		InstanceName: "shelfstream",
		Timestamp:    time.Now().UTC(),
	})
}

func (w *Webhook) send(ctx context.Context, o outcome.Outcome) error {
	return w.post(ctx, webhookPayload{
		EventType:    string(o.Disposition),
		InstanceName: "shelfstream",
		ItemID:       o.ItemID,
		ItemTitle:    o.ItemTitle,
		Provider:     o.Provider,
		Client:       o.ClientName,
		Path:         o.Path,
		Reason:       o.Reason,
		Timestamp:    o.At,
	})
}

func (w *Webhook) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, w.cfg.Method, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.cfg.Headers {
		req.Header.Set(key, value)
	}
	if w.cfg.Username != "" {
		req.SetBasicAuth(w.cfg.Username, w.cfg.Password)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
