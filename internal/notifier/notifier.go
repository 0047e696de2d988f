// Package notifier delivers portal notifications through the messenger bot
// and keeps deferred ones in a redis sorted set until they are due.
package notifier

import (
	"context"

	botgolang "github.com/mail-ru-im/bot-golang"
	log "github.com/sirupsen/logrus"
)

type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}

// BotNotifier sends text messages to messenger users. Recipients are
// messenger user ids, which are e-mail addresses.
type BotNotifier struct {
	bot *botgolang.Bot
}

func NewBotNotifier(bot *botgolang.Bot) *BotNotifier {
	return &BotNotifier{bot: bot}
}

func (n *BotNotifier) Send(_ context.Context, recipient, text string) error {
	return n.bot.NewTextMessage(recipient, text).Send()
}

// LogNotifier only writes notifications to the log. Used when no bot token
// is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, recipient, text string) error {
	log.WithField("recipient", recipient).Infof("notification: %s", text)
	return nil
}
