package handlers

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/tbourn/go-meeting-bot/internal/chat"
	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/services"
)

//
// Service contracts (context-aware)
//

// InboundProcessor handles one parsed inbound chat message.
type InboundProcessor interface {
	Process(ctx context.Context, msg chat.InboundMessage) services.Result
}

// WhatsAppVerifier answers the Cloud API subscription handshake.
type WhatsAppVerifier interface {
	VerifyWebhook(mode, token, challenge string) (string, bool)
}

// TelegramVerifier checks the Telegram webhook secret header.
type TelegramVerifier interface {
	VerifySecret(header string) bool
}

// CalendarConsent drives the Google OAuth consent flow.
type CalendarConsent interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// TokenStore persists the calendar token obtained through consent.
// LoadCalendarToken returns (nil, nil) when none is stored.
type TokenStore interface {
	SaveCalendarToken(ctx context.Context, tok *domain.CalendarToken) error
	LoadCalendarToken(ctx context.Context) (*domain.CalendarToken, error)
}

// AdminService backs the read/admin API.
type AdminService interface {
	GetGroup(ctx context.Context, chatID string) (*domain.Group, error)
	UpdateGroup(ctx context.Context, chatID string, u services.GroupUpdate) (*domain.Group, error)
	ListMeetings(ctx context.Context, chatID string, upcoming bool, limit int) ([]domain.Meeting, error)
	MeetingsETag(ctx context.Context, chatID string) (string, error)
	ListReminders(ctx context.Context, chatID string, status domain.ReminderStatus, limit int) ([]domain.Reminder, error)
	CancelReminder(ctx context.Context, id string) error
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Transport verifiers and the
// calendar consent are optional; their routes answer 503 or 403 when unset.
type Deps struct {
	Admin    AdminService
	Inbound  InboundProcessor
	WhatsApp WhatsAppVerifier
	Telegram TelegramVerifier

	Consent CalendarConsent
	Tokens  TokenStore
	// StaticToken is true when a refresh token is configured in the
	// environment, which makes the consent flow optional.
	StaticToken bool

	// SecureCookies marks the OAuth state cookie Secure.
	SecureCookies bool
}

// Handlers groups the HTTP endpoints of the bot.
type Handlers struct {
	Deps

	// runAsync runs inbound processing after the webhook was acknowledged.
	runAsync func(func())
	inflight sync.WaitGroup
}

// New constructs Handlers bound to deps.
func New(deps Deps) *Handlers {
	h := &Handlers{Deps: deps}
	h.runAsync = h.track
	return h
}

func (h *Handlers) track(fn func()) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		fn()
	}()
}

// Wait blocks until every acknowledged webhook message has been processed,
// or returns ctx.Err() when ctx ends first. Call it after the HTTP server
// stopped accepting requests and before closing the database.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
