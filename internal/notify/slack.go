// Package notify delivers finished reports to chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// maxMessageLen keeps a post under Slack's text limit with room for the fences
const maxMessageLen = 39000

// SlackNotifier posts the plain text report to one channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier for channel. opts are passed to the
// Slack client.
func NewSlackNotifier(token, channel string, logger zerolog.Logger, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
		logger:  logger.With().Str("component", "slack").Logger(),
	}
}

// Notify posts r to the channel
func (n *SlackNotifier) Notify(ctx context.Context, r *report.Report) error {
	channelID, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(FormatMessage(r), false),
	)
	if err != nil {
		return fmt.Errorf("post report to %s: %w", n.channel, err)
	}

	n.logger.Info().
		Str("channel", channelID).
		Str("ts", ts).
		Str("run_id", r.RunID).
		Msg("Report posted to Slack")
	return nil
}

// FormatMessage renders the Slack message body: a summary line plus the
// text report as a code block
func FormatMessage(r *report.Report) string {
	body := strings.TrimSpace(report.PlainText(r))
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "\n... (truncated)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*CDR usage report* for `%s`: %d rows, %d numbers, %d anomalies (as of %s)\n",
		r.Source, r.Rows, len(r.Numbers), len(r.Anomalies), r.AsOf.Format("2006-01-02 15:04 -07:00"))
	b.WriteString("```\n")
	b.WriteString(body)
	b.WriteString("\n```")
	return b.String()
}
