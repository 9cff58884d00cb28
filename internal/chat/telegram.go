package chat

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSecretHeader carries the webhook secret set via setWebhook.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Telegram sends through the Telegram Bot API.
type Telegram struct {
	Bot    *tgbotapi.BotAPI
	Secret string
}

// NewTelegram authenticates the bot token (getMe). endpoint is the Bot API
// endpoint format, tgbotapi.APIEndpoint when empty.
func NewTelegram(token, secret, endpoint string, timeout time.Duration) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{Bot: bot, Secret: secret}, nil
}

// Mention is the bot's @username, used to address it in groups.
func (t *Telegram) Mention() string {
	if t.Bot == nil || t.Bot.Self.UserName == "" {
		return ""
	}
	return "@" + t.Bot.Self.UserName
}

// SendText implements Sender. recipient is the numeric chat id.
func (t *Telegram) SendText(ctx context.Context, recipient, body string) (string, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram recipient %q: %w", recipient, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	sent, err := t.Bot.Send(msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

// VerifySecret checks the webhook secret header. With no secret configured
// every request passes.
func (t *Telegram) VerifySecret(header string) bool {
	if t.Secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(t.Secret)) == 1
}

// FromTelegramUpdate converts an update. Only messages and callback queries
// (inline button presses) are understood.
func FromTelegramUpdate(u tgbotapi.Update) (*InboundMessage, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		in := &InboundMessage{
			MessageID: "tg:" + strconv.Itoa(u.UpdateID),
			Timestamp: time.Unix(int64(m.Date), 0).UTC(),
			Text:      m.Text,
			Type:      TypeText,
		}
		if m.From != nil {
			in.SenderID = strconv.FormatInt(m.From.ID, 10)
			in.SenderName = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
		}
		if m.Chat != nil {
			if m.Chat.IsGroup() || m.Chat.IsSuperGroup() {
				in.GroupID = strconv.FormatInt(m.Chat.ID, 10)
			} else if in.SenderID == "" {
				in.SenderID = strconv.FormatInt(m.Chat.ID, 10)
			}
		}
		return in, true
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		in := &InboundMessage{
			MessageID: "tg:" + strconv.Itoa(u.UpdateID),
			Timestamp: time.Now().UTC(),
			Text:      q.Data,
			Type:      TypeInteractive,
		}
		if q.From != nil {
			in.SenderID = strconv.FormatInt(q.From.ID, 10)
			in.SenderName = strings.TrimSpace(q.From.FirstName + " " + q.From.LastName)
		}
		if q.Message != nil && q.Message.Chat != nil && (q.Message.Chat.IsGroup() || q.Message.Chat.IsSuperGroup()) {
			in.GroupID = strconv.FormatInt(q.Message.Chat.ID, 10)
		}
		return in, true
	}
	return nil, false
}
