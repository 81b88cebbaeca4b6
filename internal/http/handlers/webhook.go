// Package handlers provides HTTP handler implementations for the service.
//
// This file implements the webhook ingestion endpoint. The raw request is
// verified against the channel secret and parsed by the platform SDK; every
// message event in the batch is converted to the router's event shape and
// routed. The endpoint acknowledges with 200 as soon as the batch has been
// routed so the platform does not redeliver; per-event failures never bubble
// up to the HTTP status.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/tbourn/go-line-uploader/internal/domain"
	"github.com/tbourn/go-line-uploader/internal/http/middleware"
)

// EventRouter is the routing core consumed by the webhook endpoint.
type EventRouter interface {
	Route(ctx context.Context, ev domain.InboundEvent)
}

// WebhookHandler ingests platform webhook callbacks.
type WebhookHandler struct {
	channelSecret string
	router        EventRouter
}

// NewWebhook constructs a WebhookHandler verifying against channelSecret.
func NewWebhook(channelSecret string, r EventRouter) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, router: r}
}

// Handle is the POST /webhook endpoint.
//
// Responses:
//   - 200 {"status":"ok"} once the verified batch has been routed
//   - 400 invalid_signature when the signature check fails
//   - 400 bad_request when the body cannot be parsed
func (h *WebhookHandler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "webhook signature verification failed")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}

	lg := middleware.LoggerFrom(c)
	for _, event := range cb.Events {
		me, ok := event.(webhook.MessageEvent)
		if !ok {
			// Follow/unfollow/join and friends carry nothing to route.
			continue
		}
		ev := toInboundEvent(me)
		lg.Debug().Str("kind", ev.Kind.String()).Str("message_id", ev.MessageID).
			Msg("webhook event received")
		h.router.Route(c.Request.Context(), ev)
	}

	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// toInboundEvent maps an SDK message event onto the router's event shape.
// Unsupported message content (video, audio, stickers, ...) maps to the
// other-kind so the router skips it without consuming an idempotency slot.
func toInboundEvent(me webhook.MessageEvent) domain.InboundEvent {
	ev := domain.InboundEvent{
		Kind:       domain.EventOther,
		SenderID:   senderOf(me.Source),
		ReplyToken: me.ReplyToken,
	}
	switch msg := me.Message.(type) {
	case webhook.TextMessageContent:
		ev.Kind = domain.EventText
		ev.MessageID = msg.Id
		ev.Text = msg.Text
	case webhook.ImageMessageContent:
		ev.Kind = domain.EventImage
		ev.MessageID = msg.Id
	}
	return ev
}

// senderOf extracts the acting user id from any source shape. Group and
// room sources attribute the event to the posting user, not the container.
func senderOf(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
