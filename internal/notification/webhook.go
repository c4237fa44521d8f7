package notification

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/slack-go/slack"

	"projectnotify/internal/logger"
)

// SlackMirror posts chat notices to a Slack incoming webhook in addition to
// the bus. It is an optional side channel: delivery failures are the
// mirror's problem, never the pipeline's.
type SlackMirror struct {
	webhookURL string
	logger     logger.Logger
}

func NewSlackMirror(webhookURL string, log logger.Logger) *SlackMirror {
	return &SlackMirror{
		webhookURL: webhookURL,
		logger:     log,
	}
}

// Enabled reports whether a webhook URL is configured.
func (m *SlackMirror) Enabled() bool {
	return m != nil && m.webhookURL != ""
}

func (m *SlackMirror) Send(ctx context.Context, msg ChatMessage) error {
	if err := slack.PostWebhookContext(ctx, m.webhookURL, toWebhookMessage(msg)); err != nil {
		return err
	}
	m.logger.DebugwCtx(ctx, "Mirrored chat notice", "channel", msg.Channel)
	return nil
}

func toWebhookMessage(msg ChatMessage) *slack.WebhookMessage {
	attachments := make([]slack.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		fields := make([]slack.AttachmentField, 0, len(a.Fields))
		for _, f := range a.Fields {
			fields = append(fields, slack.AttachmentField{
				Title: f.Title,
				Value: f.Value,
				Short: f.Short,
			})
		}
		attachments = append(attachments, slack.Attachment{
			Color:      a.Color,
			Fallback:   a.Fallback,
			Pretext:    a.Pretext,
			Title:      a.Title,
			TitleLink:  a.TitleLink,
			Text:       a.Text,
			Fields:     fields,
			Footer:     a.Footer,
			FooterIcon: a.FooterIcon,
			Ts:         json.Number(strconv.FormatInt(a.Ts, 10)),
		})
	}

	return &slack.WebhookMessage{
		Username:    msg.Username,
		IconURL:     msg.IconURL,
		Channel:     msg.Channel,
		Attachments: attachments,
	}
}
