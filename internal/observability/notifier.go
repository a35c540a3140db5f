package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Notifier pushes alerts to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// conditionTitles orders and names the sections of a notification.
var conditionTitles = []struct {
	condition string
	title     string
}{
	{ConditionOverdue, "Overdue"},
	{ConditionDueSoon, "Due soon"},
	{ConditionPastEstimate, "Running past estimate"},
}

type slackNotifier struct {
	webhookURL string
	boardURL   string
	client     *http.Client
}

// NewSlackNotifier returns a Notifier posting to a Slack incoming webhook.
// boardURL, when set, is linked from the message footer.
func NewSlackNotifier(webhookURL, boardURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		boardURL:   boardURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts one message for all alerts. Nothing is sent for an empty
// slice.
func (s *slackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildSlackMessage(alerts, s.boardURL))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildSlackMessage renders a header, one section per condition in
// conditionTitles order, and a footer with the evaluation time.
func buildSlackMessage(alerts []Alert, boardURL string) slackMessage {
	summary := fmt.Sprintf("focus: %d task alert(s)", len(alerts))
	msg := slackMessage{
		Text:   summary,
		Blocks: []slackBlock{{Type: "header", Text: &slackText{Type: "plain_text", Text: summary}}},
	}

	byCondition := make(map[string][]Alert)
	for _, a := range alerts {
		byCondition[a.Condition] = append(byCondition[a.Condition], a)
	}

	for _, ct := range conditionTitles {
		group := byCondition[ct.condition]
		if len(group) == 0 {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*%s* (%d)", ct.title, len(group))
		for _, a := range group {
			fmt.Fprintf(&b, "\n%s %s", severityEmoji(a.Severity), a.Message)
		}
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: b.String()},
		})
	}

	footer := "Evaluated " + alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")
	if boardURL != "" {
		footer += fmt.Sprintf(" | <%s|Open tasks>", boardURL)
	}
	msg.Blocks = append(msg.Blocks,
		slackBlock{Type: "divider"},
		slackBlock{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: footer}}},
	)
	return msg
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return ":red_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":grey_question:"
	}
}
