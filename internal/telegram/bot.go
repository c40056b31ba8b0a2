// Package telegram feeds channel posts into the dispatch queue and sends
// pipeline notifications back out.
package telegram

import (
	"context"
	"log"
	"time"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sink receives raw message texts from the source channel.
type Sink interface {
	EnqueueSignal(text string, receivedAt time.Time)
}

// Bot listens to one source channel and notifies one target channel.
type Bot struct {
	api          *gobot.BotAPI
	sourceChatID int64
	targetChatID int64
	sink         Sink
}

func NewBot(token string, sourceChatID, targetChatID int64, sink Sink) (*Bot, error) {
	api, err := gobot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	log.Printf("[TG] connected as @%s", api.Self.UserName)
	return &Bot{
		api:          api,
		sourceChatID: sourceChatID,
		targetChatID: targetChatID,
		sink:         sink,
	}, nil
}

// Run long-polls for updates until the context is cancelled. Every post from
// the source channel is enqueued verbatim; the parser decides downstream
// whether it is a signal.
func (b *Bot) Run(ctx context.Context) {
	u := gobot.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case up := <-updates:
			msg := inboundMessage(up)
			if msg == nil || msg.Chat == nil {
				continue
			}
			if b.sourceChatID != 0 && msg.Chat.ID != b.sourceChatID {
				continue
			}
			if msg.Text == "" {
				continue
			}
			b.sink.EnqueueSignal(msg.Text, msg.Time())
		}
	}
}

// inboundMessage picks the message out of an update. Channels deliver posts
// as ChannelPost, groups as Message.
func inboundMessage(up gobot.Update) *gobot.Message {
	if up.ChannelPost != nil {
		return up.ChannelPost
	}
	return up.Message
}

// Notify sends text to the target channel. Fire and forget.
func (b *Bot) Notify(text string) {
	if b.targetChatID == 0 {
		return
	}
	msg := gobot.NewMessage(b.targetChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[TG] send failed: %v", err)
	}
}
