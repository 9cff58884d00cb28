// Package app assembles the bot from configuration: storage, chat transport,
// calendar reflector, notification dispatcher, scheduler, command services
// and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/calendar"
	"github.com/tbourn/go-meeting-bot/internal/chat"
	"github.com/tbourn/go-meeting-bot/internal/command"
	"github.com/tbourn/go-meeting-bot/internal/config"
	"github.com/tbourn/go-meeting-bot/internal/domain"
	httpapi "github.com/tbourn/go-meeting-bot/internal/http"
	"github.com/tbourn/go-meeting-bot/internal/http/handlers"
	"github.com/tbourn/go-meeting-bot/internal/notify"
	"github.com/tbourn/go-meeting-bot/internal/repo"
	"github.com/tbourn/go-meeting-bot/internal/scheduler"
	"github.com/tbourn/go-meeting-bot/internal/services"
)

// App is the wired bot.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Router   *gin.Engine
	Handlers *handlers.Handlers
	Engine   *scheduler.Engine
	Commands *services.CommandService
	Inbound  *services.InboundService
	Admin    *services.AdminService
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

type options struct {
	sender    chat.Sender
	reflector calendar.Reflector
	now       func() time.Time
}

// WithSender replaces the transport client built from config.
func WithSender(s chat.Sender) Option { return func(o *options) { o.sender = s } }

// WithReflector replaces the calendar reflector built from config.
func WithReflector(r calendar.Reflector) Option { return func(o *options) { o.reflector = r } }

// WithClock sets the clock of the services and the scheduler.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New wires every component on top of an open, migrated db.
func New(cfg config.Config, db *gorm.DB, log zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	deps := handlers.Deps{
		SecureCookies: cfg.Security.EnableHSTS,
	}
	mentions := append([]string(nil), cfg.Chat.Mentions...)

	sender := o.sender
	switch cfg.Chat.Transport {
	case config.TransportTelegram:
		tg := &chat.Telegram{Secret: cfg.Chat.Telegram.WebhookSecret}
		if sender == nil {
			if tg, err = chat.NewTelegram(cfg.Chat.Telegram.BotToken, cfg.Chat.Telegram.WebhookSecret, "", cfg.Chat.SendTimeout); err != nil {
				return nil, err
			}
			sender = tg
		}
		if m := tg.Mention(); m != "" {
			mentions = append(mentions, m)
		}
		deps.Telegram = tg
	default:
		wa := chat.NewWhatsApp(cfg.Chat.WhatsApp, cfg.Chat.SendTimeout)
		if sender == nil {
			sender = wa
		}
		deps.WhatsApp = wa
	}

	tokens := tokenStore{db: db}
	reflector := o.reflector
	if cfg.Google.Enabled() {
		oauthCfg := calendar.OAuthConfig(cfg.Google)
		deps.Consent = calendar.Consent{Config: oauthCfg}
		deps.StaticToken = cfg.Google.RefreshToken != ""
		if reflector == nil {
			reflector = calendar.NewGoogle(cfg.Scheduler.Timezone,
				calendar.Tokens(oauthCfg, cfg.Google.RefreshToken, tokens.LoadCalendarToken))
		}
	}
	if reflector == nil {
		reflector = calendar.Nop{}
	}
	deps.Tokens = tokens

	store := repoStore{}
	dispatcher := notify.New(sender, loc, log.With().Str("component", "notify").Logger())

	engine := &scheduler.Engine{
		DB:       db,
		Store:    store,
		Notifier: dispatcher,
		Log:      log.With().Str("component", "scheduler").Logger(),
		Interval: cfg.Scheduler.Interval,
		Window:   cfg.Scheduler.Interval,
		Now:      o.now,
	}

	commands := &services.CommandService{
		DB:              db,
		Store:           store,
		Calendar:        reflector,
		Messages:        dispatcher,
		Imminent:        engine,
		Location:        loc,
		ReminderMinutes: cfg.Scheduler.ReminderMinutes,
		Log:             log.With().Str("component", "commands").Logger(),
		Now:             o.now,
	}

	inbound := services.NewInboundService(db, store, command.NewParser(mentions), commands, dispatcher,
		cfg.Scheduler.DedupTTL, log.With().Str("component", "inbound").Logger())
	if o.now != nil {
		inbound.Now = o.now
	}

	admin := &services.AdminService{DB: db, Store: store, Now: o.now}

	deps.Admin = admin
	deps.Inbound = inbound

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	h := handlers.New(deps)
	httpapi.RegisterRoutes(r, h, cfg)

	return &App{
		Config:   cfg,
		DB:       db,
		Router:   r,
		Handlers: h,
		Engine:   engine,
		Commands: commands,
		Inbound:  inbound,
		Admin:    admin,
	}, nil
}

// repoStore binds the repo functions to the service and scheduler
// contracts.
type repoStore struct{}

func (repoStore) GetGroupByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Group, error) {
	return repo.GetGroupByChatID(ctx, db, chatID)
}
func (repoStore) CreateGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error {
	return repo.CreateGroup(ctx, db, g)
}
func (repoStore) AddGroupMember(ctx context.Context, db *gorm.DB, groupID string, m *domain.GroupMember) error {
	return repo.AddGroupMember(ctx, db, groupID, m)
}
func (repoStore) ListActiveGroups(ctx context.Context, db *gorm.DB) ([]domain.Group, error) {
	return repo.ListActiveGroups(ctx, db)
}
func (repoStore) UpdateGroup(ctx context.Context, db *gorm.DB, chatID string, p repo.GroupPatch) (*domain.Group, error) {
	return repo.UpdateGroup(ctx, db, chatID, p)
}
func (repoStore) CreateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error {
	return repo.CreateMeeting(ctx, db, m)
}
func (repoStore) FindMeetings(ctx context.Context, db *gorm.DB, f repo.MeetingFilter) ([]domain.Meeting, error) {
	return repo.FindMeetings(ctx, db, f)
}
func (repoStore) GetMeeting(ctx context.Context, db *gorm.DB, id string) (*domain.Meeting, error) {
	return repo.GetMeeting(ctx, db, id)
}
func (repoStore) UpdateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error {
	return repo.UpdateMeeting(ctx, db, m)
}
func (repoStore) DeleteMeeting(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteMeeting(ctx, db, id)
}
func (repoStore) MeetingsStats(ctx context.Context, db *gorm.DB, groupID string) (int64, *time.Time, error) {
	return repo.MeetingsStats(ctx, db, groupID)
}
func (repoStore) CreateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error {
	return repo.CreateReminder(ctx, db, r)
}
func (repoStore) FindDueReminders(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Reminder, error) {
	return repo.FindDueReminders(ctx, db, now)
}
func (repoStore) UpdateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error {
	return repo.UpdateReminder(ctx, db, r)
}
func (repoStore) ListReminders(ctx context.Context, db *gorm.DB, f repo.ReminderFilter) ([]domain.Reminder, error) {
	return repo.ListReminders(ctx, db, f)
}
func (repoStore) CancelReminder(ctx context.Context, db *gorm.DB, id string) error {
	return repo.CancelReminder(ctx, db, id)
}
func (repoStore) MarkMessageProcessed(ctx context.Context, db *gorm.DB, messageID, senderID, chatID string, now time.Time, ttl time.Duration) error {
	return repo.MarkMessageProcessed(ctx, db, messageID, senderID, chatID, now, ttl)
}
func (repoStore) PurgeProcessedMessages(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PurgeProcessedMessages(ctx, db, now)
}

// tokenStore persists the consent token. Load reports (nil, nil) when none
// was saved.
type tokenStore struct{ db *gorm.DB }

func (s tokenStore) SaveCalendarToken(ctx context.Context, tok *domain.CalendarToken) error {
	return repo.SaveCalendarToken(ctx, s.db, tok)
}

func (s tokenStore) LoadCalendarToken(ctx context.Context) (*domain.CalendarToken, error) {
	tok, err := repo.LoadCalendarToken(ctx, s.db)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return tok, err
}
