// Package slack sends triage notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

const httpTimeout = 10 * time.Second

// Notifier posts evaluations to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Notify implements triage.Notifier.
func (n *Notifier) Notify(ctx context.Context, ev *triage.Evaluation) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	n.logger.Info(ctx, "slack notification delivered", "evaluation_id", ev.ID)
	return nil
}

func buildMessage(ev *triage.Evaluation) map[string]any {
	blocks := []map[string]any{
		headerBlock(ev),
		{"type": "divider"},
		predictionsBlock(ev),
	}
	if ev.Disagreement {
		blocks = append(blocks, disagreementBlock())
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(ev))
	return map[string]any{"blocks": blocks}
}

func headerBlock(ev *triage.Evaluation) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Triage: %s", categoryEmoji(ev.Highest), categoryTitle(ev.Highest)),
		},
	}
}

// predictionsBlock lists one field per model in name order.
func predictionsBlock(ev *triage.Evaluation) map[string]any {
	fields := make([]map[string]any, 0, len(ev.Predictions)+1)
	for _, name := range ev.Predictions.Models() {
		p := ev.Predictions[name]
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:* %s %s (p=%.2f)", name, categoryEmoji(p.Category), p.Category, p.Probability),
		})
	}
	fields = append(fields, map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf("*Duration:* %.1fms", ev.Duration*1000),
	})
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func disagreementBlock() map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": "\u26a0\ufe0f *Models disagree.* Review this patient manually.",
		},
	}
}

func contextBlock(ev *triage.Evaluation) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{{
			"type": "mrkdwn",
			"text": fmt.Sprintf("vitaltriage • evaluation %s • schema %s • %s",
				ev.ID, ev.SchemaVersion, ev.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		}},
	}
}

func categoryEmoji(c triage.Category) string {
	switch c {
	case triage.CategoryEmergency:
		return "\U0001f534" // red circle
	case triage.CategoryNoEmergency:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func categoryTitle(c triage.Category) string {
	switch c {
	case triage.CategoryEmergency:
		return "Emergency admission"
	case triage.CategoryNoEmergency:
		return "Admission, non-emergency"
	default:
		return "No admission"
	}
}
