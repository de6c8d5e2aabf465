// Package ops provides ambient operator-visibility notifications (§4.19):
// a Slack post when a Storage Element's capacity_status becomes critical
// or full, and when a Garbage Collector action exhausts its retry budget.
// It is not exposed to any SE/Admin API consumer.
package ops

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts operator alerts to a configured Slack channel. Grounded
// on the teacher's pkg/slack.Notifier: a nil underlying client makes every
// call a no-op, so an unconfigured SLACK_BOT_TOKEN disables this package
// entirely rather than requiring callers to branch on it.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. If botToken is empty, the notifier is a
// noop (logging only), matching the teacher's "integration disabled when
// unconfigured" convention.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// Notify posts a plain-text operator alert. Satisfies both
// pkg/admin/storageelement.Notifier and pkg/admin/gc.Notifier.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if !n.IsEnabled() {
		if n.logger != nil {
			n.logger.Debug("slack notifier disabled, skipping operator alert", "message", message)
		}
		return nil
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("posting operator alert to slack: %w", err)
	}
	return nil
}
