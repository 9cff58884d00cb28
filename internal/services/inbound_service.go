// Package services – InboundService
//
// InboundService is the entry point for messages delivered by a chat
// transport webhook. It filters message types, drops redeliveries, parses the
// text and hands the intent to CommandService. Rejections are answered with
// the Result's localized message.
//
// Replay protection has two layers: an in-process expirable LRU that absorbs
// the burst of retries a webhook sender emits, and the processed_messages
// table that survives restarts.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/chat"
	"github.com/tbourn/go-meeting-bot/internal/command"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

const (
	defaultDedupSize = 4096
	defaultDedupTTL  = 24 * time.Hour
)

// ProcessedStore records handled inbound message ids.
type ProcessedStore interface {
	MarkMessageProcessed(ctx context.Context, db *gorm.DB, messageID, senderID, chatID string, now time.Time, ttl time.Duration) error
}

// CommandHandler is the part of CommandService used by InboundService.
type CommandHandler interface {
	Handle(ctx context.Context, intent command.Intent, who Actor, groupID string) Result
}

// Replier sends a plain text answer.
type Replier interface {
	SendText(ctx context.Context, to, body string) error
}

// InboundService processes inbound chat messages.
type InboundService struct {
	DB       *gorm.DB
	Store    ProcessedStore
	Parser   *command.Parser
	Commands CommandHandler
	Replies  Replier
	DedupTTL time.Duration
	Log      zerolog.Logger
	Now      func() time.Time

	seen *expirable.LRU[string, struct{}]
}

// NewInboundService builds an InboundService with its replay cache.
func NewInboundService(db *gorm.DB, store ProcessedStore, parser *command.Parser, cmds CommandHandler, replies Replier, ttl time.Duration, log zerolog.Logger) *InboundService {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	if parser == nil {
		parser = &command.Parser{}
	}
	return &InboundService{
		DB:       db,
		Store:    store,
		Parser:   parser,
		Commands: cmds,
		Replies:  replies,
		DedupTTL: ttl,
		Log:      log,
		seen:     expirable.NewLRU[string, struct{}](defaultDedupSize, nil, ttl),
	}
}

// Process handles one inbound message and returns the command result. The
// zero Result (Success=false, empty Message) means the message was ignored.
func (s *InboundService) Process(ctx context.Context, msg chat.InboundMessage) Result {
	lg := s.Log.With().Str("message_id", msg.MessageID).Str("sender", msg.SenderID).Logger()
	if !msg.Forwardable() {
		lg.Debug().Str("type", msg.Type).Msg("message ignored")
		return Result{}
	}

	intent := s.Parser.Parse(msg.Text)
	if _, none := intent.(command.None); none {
		return Result{}
	}
	if s.duplicate(ctx, msg) {
		lg.Info().Msg("duplicate message dropped")
		return Result{}
	}

	res := s.Commands.Handle(ctx, intent, Actor{ID: msg.SenderID, Name: msg.SenderName}, msg.GroupID)
	if !res.Success && res.Message != "" {
		if err := s.Replies.SendText(ctx, msg.ReplyTo(), res.Message); err != nil {
			lg.Error().Err(err).Msg("send rejection reply")
		}
	}
	if res.Err != nil {
		lg.Info().Err(res.Err).Msg("command rejected")
	}
	return res
}

// duplicate reports whether msg was already handled and otherwise records it.
// Storage failures let the message through.
func (s *InboundService) duplicate(ctx context.Context, msg chat.InboundMessage) bool {
	if msg.MessageID == "" {
		return false
	}
	if s.seen != nil {
		if s.seen.Contains(msg.MessageID) {
			return true
		}
		s.seen.Add(msg.MessageID, struct{}{})
	}
	if s.Store == nil {
		return false
	}
	err := s.Store.MarkMessageProcessed(ctx, s.DB, msg.MessageID, msg.SenderID, msg.GroupID, s.now(), s.DedupTTL)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return true
	case err != nil:
		s.Log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("record processed message")
	}
	return false
}

func (s *InboundService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
