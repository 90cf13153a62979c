package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hrchat/internal/auth"
	"hrchat/internal/events"
	"hrchat/internal/middleware"
	"hrchat/internal/services"
	"hrchat/internal/transport/httpdto"
	hrchat_errors "hrchat/pkg/errors"
	"hrchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Socket-only error codes.
const (
	codeNotJoined        = "NOT_JOINED"
	codeUnsupportedEvent = "UNSUPPORTED_EVENT"
)

type Handler struct {
	tokens       *auth.TokenService
	hub          *Hub
	service      *services.ChatService
	authorizer   *ChannelAuthorizer
	eventsPerSec int
	upgrader     websocket.Upgrader
	log          *logger.Logger
}

func NewHandler(tokens *auth.TokenService, hub *Hub, service *services.ChatService, eventsPerSec int, l *logger.Logger) *Handler {
	return &Handler{
		tokens:       tokens,
		hub:          hub,
		service:      service,
		authorizer:   NewChannelAuthorizer(service),
		eventsPerSec: eventsPerSec,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.OrNop(l).Named("ws"),
	}
}

func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.tokens.Parse(middleware.ExtractToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	self := claims.Member()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = context.WithValue(ctx, logger.UserIdKey, self.ID)

	if err := h.service.Identify(ctx, self); err != nil {
		h.log.WithContext(ctx).Warn("identify failed", zap.Error(err))
	}

	client := NewClient(conn, self, h.eventsPerSec)
	h.hub.Register(client)
	go client.WriteLoop(ctx)
	h.log.WithContext(ctx).Info("socket connected", zap.String("client_id", client.ID))

	client.ReadLoop(func(env events.Envelope) {
		h.handle(ctx, client, env)
	})

	h.hub.Unregister(client)
	h.log.WithContext(ctx).Info("socket closed", zap.String("client_id", client.ID))
}

func (h *Handler) handle(ctx context.Context, client *Client, env events.Envelope) {
	switch env.Event {
	case events.EventJoinThread:
		h.join(ctx, client, env)

	case events.EventTyping:
		if !client.Allow() {
			return
		}
		var p events.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			sendError(client, env.Event, "invalid payload", httpdto.CodeInvalidRequest)
			return
		}
		p.UserID = client.UserID
		p.Name = client.Name
		if !client.IsSubscribed(events.ChannelThread(p.ThreadID)) {
			sendError(client, env.Event, "join the thread first", codeNotJoined)
			return
		}
		if err := h.service.RelayTyping(ctx, client.ID, p); err != nil {
			h.reject(ctx, client, env.Event, err)
		}

	case events.EventSeen:
		if !client.Allow() {
			return
		}
		var p events.SeenPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			sendError(client, env.Event, "invalid payload", httpdto.CodeInvalidRequest)
			return
		}
		p.ReaderID = client.UserID
		if !client.IsSubscribed(events.ChannelThread(p.ThreadID)) {
			sendError(client, env.Event, "join the thread first", codeNotJoined)
			return
		}
		if err := h.service.MarkSeen(ctx, client.ID, p); err != nil {
			h.reject(ctx, client, env.Event, err)
		}

	default:
		sendError(client, env.Event, "unsupported event", codeUnsupportedEvent)
	}
}

// join subscribes the client to a thread room after checking membership.
// The payload is the bare thread id; {"threadId": ...} is accepted too.
func (h *Handler) join(ctx context.Context, client *Client, env events.Envelope) {
	threadID := decodeThreadID(env.Data)
	if threadID == "" {
		sendError(client, env.Event, "thread id is required", httpdto.CodeInvalidRequest)
		return
	}

	channel := events.ChannelThread(threadID)
	ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, channel)
	if err != nil {
		h.reject(ctx, client, env.Event, err)
		return
	}
	if !ok {
		sendError(client, env.Event, "not a member of this thread", httpdto.CodeForbidden)
		return
	}

	h.hub.Subscribe(client, channel)
	client.SendEvent(events.EventThreadJoined, events.ThreadJoinedPayload{ThreadID: threadID})
}

func (h *Handler) reject(ctx context.Context, client *Client, event string, err error) {
	var vf *hrchat_errors.ValidationFailure
	switch {
	case errors.As(err, &vf):
		sendError(client, event, vf.Message, httpdto.CodeValidationFailed)
	case errors.Is(err, hrchat_errors.ErrForbidden):
		sendError(client, event, "not a member of this thread", httpdto.CodeForbidden)
	case errors.Is(err, hrchat_errors.ErrNotFound):
		sendError(client, event, "thread not found", httpdto.CodeNotFound)
	default:
		h.log.WithContext(ctx).Error("socket event failed", zap.String("event", event), zap.Error(err))
		sendError(client, event, "internal error", httpdto.CodeInternal)
	}
}

func sendError(client *Client, event, msg, code string) {
	client.SendEvent(events.EventError, events.ErrorPayload{Event: event, Message: msg, Code: code})
}

func decodeThreadID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ThreadID string `json:"threadId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.ThreadID)
	}
	return ""
}
