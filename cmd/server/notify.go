package main

import (
	"context"

	"github.com/linnemanlabs/go-core/log"

	vc "github.com/linnemanlabs/vitaltriage/internal/cfg"
	"github.com/linnemanlabs/vitaltriage/internal/notify/rmq"
	"github.com/linnemanlabs/vitaltriage/internal/notify/slack"
	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

// openNotifier builds the configured notifiers. It returns a nil Notifier
// when none are configured, which disables notification.
func openNotifier(ctx context.Context, c *vc.Config, L log.Logger) (triage.Notifier, func(), error) {
	var ns triage.Notifiers
	closeFn := func() {}

	if c.SlackWebhookURL != "" {
		ns = append(ns, slack.New(c.SlackWebhookURL, L))
		L.Info(ctx, "notifier enabled", "type", "slack", "notify_on", c.NotifyOn)
	}

	if c.AMQPURL != "" {
		p, err := rmq.Dial(c.AMQPURL, c.AMQPExchange, L)
		if err != nil {
			return nil, nil, err
		}
		ns = append(ns, p)
		closeFn = func() {
			if err := p.Close(); err != nil {
				L.Warn(context.Background(), "amqp close failed", "error", err)
			}
		}
		L.Info(ctx, "notifier enabled", "type", "amqp", "exchange", c.AMQPExchange, "notify_on", c.NotifyOn)
	}

	switch len(ns) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return ns[0], closeFn, nil
	default:
		return ns, closeFn, nil
	}
}
