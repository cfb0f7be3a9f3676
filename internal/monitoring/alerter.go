package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Alerter posts alerts to a webhook endpoint (Slack-compatible
// incoming webhook payload). Delivery is fire-and-forget; callers
// that exit soon after a run should Wait for in-flight deliveries.
type Alerter struct {
	webhookURL string
	httpClient *http.Client
	async      bool
	inflight   sync.WaitGroup
}

// AlerterOption customizes an Alerter.
type AlerterOption func(*Alerter)

// WithAlertHTTPClient overrides the HTTP client used for delivery.
func WithAlertHTTPClient(c *http.Client) AlerterOption {
	return func(a *Alerter) { a.httpClient = c }
}

// WithSynchronousDelivery makes Send block until delivery completes.
// Used by tests; production delivery is asynchronous.
func WithSynchronousDelivery() AlerterOption {
	return func(a *Alerter) { a.async = false }
}

// NewAlerter creates an Alerter targeting the given webhook URL.
func NewAlerter(webhookURL string, opts ...AlerterOption) *Alerter {
	a := &Alerter{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		async:      true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// webhookPayload is the wire shape posted to the webhook.
type webhookPayload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Color     string `json:"color"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"`
}

// Send delivers the alerts. Errors are logged, never returned: alert
// delivery must not affect the crawl that produced the alert.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) {
	if a.webhookURL == "" || len(alerts) == 0 {
		return
	}
	if a.async {
		a.inflight.Add(1)
		go func() {
			defer a.inflight.Done()
			a.deliver(context.WithoutCancel(ctx), alerts)
		}()
		return
	}
	a.deliver(ctx, alerts)
}

// Wait blocks until every asynchronous delivery started so far has
// finished. Each delivery carries its own timeout, so Wait is bounded.
func (a *Alerter) Wait() {
	a.inflight.Wait()
}

func (a *Alerter) deliver(ctx context.Context, alerts []Alert) {
	payload := webhookPayload{
		Text: fmt.Sprintf("Booth crawler: %d alert(s)", len(alerts)),
	}
	for _, al := range alerts {
		payload.Attachments = append(payload.Attachments, attachment{
			Color:     alertColor(al.Type),
			Title:     fmt.Sprintf("[%s] %s", al.Type, al.SourceName),
			Text:      al.Message,
			Timestamp: al.Timestamp.Unix(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("alerter: marshal payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		zap.L().Error("alerter: build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		zap.L().Error("alerter: deliver webhook", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		zap.L().Error("alerter: webhook rejected",
			zap.Int("status", resp.StatusCode),
		)
		return
	}
	zap.L().Debug("alerter: delivered", zap.Int("alerts", len(alerts)))
}

func alertColor(t AlertType) string {
	switch t {
	case AlertSourceFailure:
		return "danger"
	case AlertZeroResults:
		return "danger"
	default:
		return "warning"
	}
}
