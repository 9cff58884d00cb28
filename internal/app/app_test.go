package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meeting-bot/internal/calendar"
	"github.com/tbourn/go-meeting-bot/internal/chat"
	"github.com/tbourn/go-meeting-bot/internal/config"
	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/http/handlers"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

func newAppDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		GinMode:     "test",
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   100,
		Chat: config.ChatConfig{
			Transport:   config.TransportWhatsApp,
			SendTimeout: time.Second,
			Mentions:    []string{"@bot"},
			WhatsApp:    config.WhatsAppConfig{VerifyToken: "vt"},
		},
		Scheduler: config.SchedulerConfig{
			Timezone:        "Asia/Jakarta",
			ReminderMinutes: []int{30},
			Interval:        time.Minute,
			DedupTTL:        24 * time.Hour,
		},
		OTEL: config.OTELConfig{ServiceName: "test"},
	}
}

type sent struct{ to, body string }

type outbox struct {
	mu   sync.Mutex
	msgs []sent
}

func (o *outbox) sender() chat.Sender {
	return chat.SenderFunc(func(_ context.Context, to, body string) (string, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.msgs = append(o.msgs, sent{to, body})
		return fmt.Sprintf("d%d", len(o.msgs)), nil
	})
}

func (o *outbox) take() []sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.msgs
	o.msgs = nil
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time   { c.mu.Lock(); defer c.mu.Unlock(); return c.t }
func (c *clock) set(t time.Time) { c.mu.Lock(); c.t = t; c.mu.Unlock() }

func TestApp_ScheduleThenRemind(t *testing.T) {
	jakarta, _ := time.LoadLocation("Asia/Jakarta")
	clk := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, jakarta)}
	box := &outbox{}
	a, err := New(testConfig(), newAppDB(t), zerolog.Nop(),
		WithSender(box.sender()), WithReflector(calendar.Nop{}), WithClock(clk.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	msg := chat.InboundMessage{
		MessageID:  "wamid.1",
		SenderID:   "6281",
		SenderName: "Alice",
		GroupID:    "120363@g.us",
		Type:       chat.TypeText,
		Text:       "/set-meeting 5 januari 19:00 Diskusi Project",
	}
	res := a.Inbound.Process(ctx, msg)
	if !res.Success || res.Meeting == nil {
		t.Fatalf("schedule result = %+v", res)
	}
	out := box.take()
	if len(out) != 1 || out[0].to != "120363@g.us" || !strings.Contains(out[0].body, "Diskusi Project") {
		t.Fatalf("confirmation = %+v", out)
	}

	if res := a.Inbound.Process(ctx, msg); res.Success || res.Message != "" {
		t.Fatalf("redelivery should be ignored, got %+v", res)
	}
	if out := box.take(); len(out) != 0 {
		t.Fatalf("redelivery sent %+v", out)
	}

	// Nothing is due four days early.
	if st := a.Engine.Tick(ctx, clk.now()); st.Sent != 0 {
		t.Fatalf("early tick sent %+v", st)
	}

	clk.set(time.Date(2026, 1, 5, 18, 30, 0, 0, jakarta))
	st := a.Engine.Tick(ctx, clk.now())
	if st.Sent != 1 || st.Failed != 0 {
		t.Fatalf("tick stats = %+v", st)
	}
	out = box.take()
	if len(out) != 1 || out[0].to != "120363@g.us" || !strings.Contains(out[0].body, "Diskusi Project") {
		t.Fatalf("reminder = %+v", out)
	}

	// A meeting fires once.
	if st := a.Engine.Tick(ctx, clk.now().Add(30*time.Second)); st.Sent != 0 {
		t.Fatalf("second tick sent %+v", st)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups/120363@g.us/meetings", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"reminder_sent":true`) {
		t.Fatalf("meetings: %d %s", w.Code, w.Body.String())
	}
}

func TestApp_WhatsAppRoutes(t *testing.T) {
	a, err := New(testConfig(), newAppDB(t), zerolog.Nop(), WithSender((&outbox{}).sender()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=vt&hub.challenge=42", nil))
	if w.Code != http.StatusOK || w.Body.String() != "42" {
		t.Fatalf("verify: %d %q", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{}`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("telegram route should be disabled: %d", w.Code)
	}
}

func TestApp_TelegramTransport(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.Transport = config.TransportTelegram
	cfg.Chat.Telegram.WebhookSecret = "tg-secret"
	a, err := New(cfg, newAppDB(t), zerolog.Nop(), WithSender((&outbox{}).sender()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(chat.TelegramSecretHeader, "wrong")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad secret: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(chat.TelegramSecretHeader, "tg-secret")
	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ignored") {
		t.Fatalf("empty update: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("whatsapp route should be disabled: %d", w.Code)
	}
}

func TestApp_GoogleConsentWiring(t *testing.T) {
	cfg := testConfig()
	cfg.Google = config.GoogleConfig{ClientID: "cid", ClientSecret: "sec", RedirectURI: "http://localhost/auth/google/callback"}
	db := newAppDB(t)
	a, err := New(cfg, db, zerolog.Nop(), WithSender((&outbox{}).sender()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	status := func() handlers.AuthStatusResponse {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/status", nil))
		var st handlers.AuthStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			t.Fatalf("status json: %v (%s)", err, w.Body.String())
		}
		return st
	}
	if st := status(); !st.Configured || st.Authorized {
		t.Fatalf("before consent: %+v", st)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	if w.Code != http.StatusFound || !strings.Contains(w.Header().Get("Location"), "accounts.google.com") {
		t.Fatalf("consent redirect: %d %q", w.Code, w.Header().Get("Location"))
	}

	if err := (tokenStore{db: db}).SaveCalendarToken(context.Background(), &domain.CalendarToken{RefreshToken: "r1"}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if st := status(); !st.Authorized || st.Source != "stored" {
		t.Fatalf("after consent: %+v", st)
	}
}

func TestTokenStore_LoadMissing(t *testing.T) {
	tok, err := (tokenStore{db: newAppDB(t)}).LoadCalendarToken(context.Background())
	if err != nil || tok != nil {
		t.Fatalf("missing token = %v, %v", tok, err)
	}
}
