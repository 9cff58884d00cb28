package chat

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-meeting-bot/internal/config"
)

// WhatsAppObject is the webhook "object" value for Cloud API events.
const WhatsAppObject = "whatsapp_business_account"

// WhatsApp talks to the WhatsApp Cloud API.
type WhatsApp struct {
	APIURL        string
	PhoneNumberID string
	Token         string
	VerifyToken   string
	HTTP          *http.Client
}

// NewWhatsApp builds a client with an instrumented transport and a per-call
// timeout.
func NewWhatsApp(cfg config.WhatsAppConfig, timeout time.Duration) *WhatsApp {
	return &WhatsApp{
		APIURL:        strings.TrimRight(cfg.APIURL, "/"),
		PhoneNumberID: cfg.PhoneNumberID,
		Token:         cfg.APIToken,
		VerifyToken:   cfg.VerifyToken,
		HTTP: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// SendError is a non-2xx answer from the Cloud API.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send failed: status=%d body=%s", e.Status, e.Body)
}

type waTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText implements Sender.
func (w *WhatsApp) SendText(ctx context.Context, recipient, body string) (string, error) {
	p := waTextPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
	}
	p.Text.Body = body
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", w.APIURL, w.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.Token)
	req.Header.Set("Content-Type", "application/json")

	client := w.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{Status: resp.StatusCode, Body: string(raw)}
	}
	var out waSendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode whatsapp response: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}

// VerifyWebhook answers the subscription handshake: it returns the challenge
// when mode is "subscribe" and token matches the configured verify token.
func (w *WhatsApp) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || w.VerifyToken == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(w.VerifyToken)) != 1 {
		return "", false
	}
	return challenge, true
}

type waWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
					GroupID       string `json:"group_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts the first message of a Cloud API event. It returns
// (nil, nil) for events that carry no message (status updates, other
// objects).
func ParseWebhook(body []byte) (*InboundMessage, error) {
	var hook waWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if hook.Object != WhatsAppObject || len(hook.Entry) == 0 || len(hook.Entry[0].Changes) == 0 {
		return nil, nil
	}
	val := hook.Entry[0].Changes[0].Value
	if len(val.Messages) == 0 {
		return nil, nil
	}
	msg := val.Messages[0]

	in := &InboundMessage{
		SenderID:  msg.From,
		MessageID: msg.ID,
		Type:      msg.Type,
		GroupID:   val.Metadata.GroupID,
	}
	if sec, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
		in.Timestamp = time.Unix(sec, 0).UTC()
	}
	for _, c := range val.Contacts {
		if c.WaID == msg.From {
			in.SenderName = c.Profile.Name
			break
		}
	}
	switch msg.Type {
	case TypeText:
		in.Text = msg.Text.Body
	case TypeInteractive:
		if msg.Interactive.Type == "button_reply" {
			in.Text = msg.Interactive.ButtonReply.Title
		}
	}
	return in, nil
}
