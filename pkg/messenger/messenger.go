package messenger

import (
	"errors"

	"evidence-portal/internal/config"
	botgolang "github.com/mail-ru-im/bot-golang"
)

var ErrNoToken = errors.New("bot token is not configured")

// NewBot connects to the messenger bot API.
func NewBot(cfg config.Bot, debug bool) (*botgolang.Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	opts := []botgolang.BotOption{botgolang.BotDebug(debug)}
	if cfg.APIURL != "" {
		opts = append(opts, botgolang.BotApiURL(cfg.APIURL))
	}
	return botgolang.NewBot(cfg.Token, opts...)
}
