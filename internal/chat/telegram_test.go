package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func newFakeBotAPI(t *testing.T, sent *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Pengingat","username":"pengingat_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			*sent = append(*sent, r.Form.Get("chat_id")+"|"+r.Form.Get("text"))
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"date":1,"chat":{"id":-100,"type":"group"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegram_SendText(t *testing.T) {
	var sent []string
	srv := newFakeBotAPI(t, &sent)

	tg, err := NewTelegram("TOKEN", "s3cret", srv.URL+"/bot%s/%s", 5*time.Second)
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if tg.Mention() != "@pengingat_bot" {
		t.Fatalf("Mention = %q", tg.Mention())
	}

	id, err := tg.SendText(context.Background(), "-100", "halo grup")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "42" {
		t.Fatalf("delivery id = %q", id)
	}
	if len(sent) != 1 || sent[0] != "-100|halo grup" {
		t.Fatalf("sent = %v", sent)
	}

	if _, err := tg.SendText(context.Background(), "not-a-number", "x"); err == nil {
		t.Fatalf("non-numeric recipient must fail")
	}
}

func TestTelegram_VerifySecret(t *testing.T) {
	tg := &Telegram{Secret: "abc"}
	if !tg.VerifySecret("abc") || tg.VerifySecret("abd") || tg.VerifySecret("") {
		t.Fatalf("secret comparison broken")
	}
	open := &Telegram{}
	if !open.VerifySecret("anything") {
		t.Fatalf("no secret configured should accept")
	}
}

func TestFromTelegramUpdate(t *testing.T) {
	group := tgbotapi.Update{
		UpdateID: 900,
		Message: &tgbotapi.Message{
			MessageID: 5,
			Date:      1767600000,
			Text:      "/list-meetings",
			From:      &tgbotapi.User{ID: 11, FirstName: "Ana", LastName: "S"},
			Chat:      &tgbotapi.Chat{ID: -100200, Type: "supergroup"},
		},
	}
	in, ok := FromTelegramUpdate(group)
	if !ok {
		t.Fatalf("message update not recognized")
	}
	if in.SenderID != "11" || in.SenderName != "Ana S" || in.GroupID != "-100200" || in.MessageID != "tg:900" || in.Type != TypeText {
		t.Fatalf("unexpected %+v", in)
	}

	private := tgbotapi.Update{
		UpdateID: 901,
		Message:  &tgbotapi.Message{Text: "/help", From: &tgbotapi.User{ID: 12}, Chat: &tgbotapi.Chat{ID: 12, Type: "private"}},
	}
	in, _ = FromTelegramUpdate(private)
	if in.GroupID != "" || in.ReplyTo() != "12" {
		t.Fatalf("private chat should reply to sender, got %+v", in)
	}

	button := tgbotapi.Update{
		UpdateID: 902,
		CallbackQuery: &tgbotapi.CallbackQuery{
			Data:    "/list-meetings",
			From:    &tgbotapi.User{ID: 13},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -5, Type: "group"}},
		},
	}
	in, _ = FromTelegramUpdate(button)
	if in.Type != TypeInteractive || in.Text != "/list-meetings" || in.GroupID != "-5" || !in.Forwardable() {
		t.Fatalf("unexpected %+v", in)
	}

	if _, ok := FromTelegramUpdate(tgbotapi.Update{UpdateID: 1}); ok {
		t.Fatalf("empty update should be ignored")
	}
}
