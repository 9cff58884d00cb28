// Webhook HTTP handlers.
//
// This file exposes the chat transport endpoints:
//   - GET  /webhook            (WhatsApp subscription handshake)
//   - POST /webhook            (WhatsApp Cloud API events)
//   - POST /webhook/telegram   (Telegram Bot API updates)
//
// Events are acknowledged with 200 right away and processed on their own
// goroutine with a context detached from the request, so slow calendar or
// chat calls never make the transport time out and redeliver.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-meeting-bot/internal/chat"
)

var webhookEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook events by transport and outcome.",
	},
	[]string{"transport", "outcome"},
)

func init() {
	prometheus.MustRegister(webhookEvents)
}

// VerifyWhatsApp answers GET /webhook with hub.challenge when the verify
// token matches.
func (h *Handlers) VerifyWhatsApp(c *gin.Context) {
	if h.WhatsApp == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "whatsapp transport disabled")
		return
	}
	challenge, valid := h.WhatsApp.VerifyWebhook(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if !valid {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWhatsApp accepts POST /webhook. Events without a message (delivery
// statuses, read receipts) are acknowledged and dropped.
func (h *Handlers) ReceiveWhatsApp(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadPayload, "unreadable body")
		return
	}
	msg, err := chat.ParseWebhook(body)
	if err != nil {
		webhookEvents.WithLabelValues("whatsapp", "invalid").Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadPayload, "invalid webhook payload")
		return
	}
	if msg == nil {
		webhookEvents.WithLabelValues("whatsapp", "ignored").Inc()
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	h.dispatch(c, "whatsapp", *msg)
}

// ReceiveTelegram accepts POST /webhook/telegram after checking the secret
// header.
func (h *Handlers) ReceiveTelegram(c *gin.Context) {
	if h.Telegram == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "telegram transport disabled")
		return
	}
	if !h.Telegram.VerifySecret(c.GetHeader(chat.TelegramSecretHeader)) {
		webhookEvents.WithLabelValues("telegram", "rejected").Inc()
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}
	var u tgbotapi.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		webhookEvents.WithLabelValues("telegram", "invalid").Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadPayload, "invalid update payload")
		return
	}
	msg, understood := chat.FromTelegramUpdate(u)
	if !understood {
		webhookEvents.WithLabelValues("telegram", "ignored").Inc()
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	h.dispatch(c, "telegram", *msg)
}

func (h *Handlers) dispatch(c *gin.Context, transport string, msg chat.InboundMessage) {
	webhookEvents.WithLabelValues(transport, "received").Inc()
	ctx := context.WithoutCancel(c.Request.Context())
	rid := c.Writer.Header().Get("X-Request-ID")
	h.runAsync(func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("request_id", rid).
					Str("message_id", msg.MessageID).Msg("inbound processing panicked")
			}
		}()
		h.Inbound.Process(ctx, msg)
	})
	ok(c, http.StatusOK, gin.H{"status": "received"})
}
