package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"okeanchat/internal/authz"
	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
	obsmw "okeanchat/internal/observability/middleware"
	"okeanchat/internal/service"
)

const actionTimeout = 10 * time.Second

// Handler upgrades authenticated requests and routes client actions to the
// chat service. It must sit behind authz.Middleware.
type Handler struct {
	presence *hub.Presence
	chat     *service.Chat
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(presence *hub.Presence, chat *service.Chat, opts Options, checkOrigin func(*http.Request) bool) *Handler {
	return &Handler{
		presence: presence,
		chat:     chat,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := authz.SubjectFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		obsmw.Logger(r.Context()).Debug("ws upgrade failed", "error", err)
		return
	}

	// request-scoped values stay, cancellation does not
	base := context.WithoutCancel(r.Context())
	c := newClient(conn, user, h.opts)
	c.log.Info("channel opened")

	h.presence.Connect(base, c)
	go c.writePump()

	c.readPump(func(raw []byte) {
		ctx, cancel := context.WithTimeout(base, actionTimeout)
		defer cancel()
		h.handleFrame(ctx, c, raw)
	})

	c.Close()
	ctx, cancel := context.WithTimeout(base, actionTimeout)
	defer cancel()
	h.presence.Disconnect(ctx, c)
	c.log.Info("channel closed")
}

func (h *Handler) handleFrame(ctx context.Context, c *Client, raw []byte) {
	in, err := events.DecodeInbound(raw)
	if err == nil {
		err = h.route(ctx, c, in)
	}
	if err == nil {
		return
	}

	reason := domain.Reason(err)
	if errors.Is(err, events.ErrMalformed) {
		reason = domain.ReasonInvalidRequest
	}
	detail := err.Error()
	if reason == domain.ReasonInternal || reason == domain.ReasonPersistence {
		c.log.ErrorContext(ctx, "action failed", "action", in.Action, "error", err)
		detail = ""
	} else {
		c.log.DebugContext(ctx, "action rejected", "action", in.Action, "reason", reason, "error", err)
	}
	_ = c.Send(events.NewError(reason, in.Ref, detail))
}

func (h *Handler) route(ctx context.Context, c *Client, in events.Inbound) error {
	switch in.Action {
	case events.ActionSendDirectMessage:
		var req events.SendDirectMessage
		if err := in.Bind(&req); err != nil {
			return err
		}
		_, err := h.chat.SendDirect(ctx, c.UserID(), service.SendDirectInput{
			ReceiverID:  req.ReceiverID,
			Content:     req.Content,
			Type:        domain.MessageType(req.Type),
			MediaURL:    req.MediaURL,
			ClientMsgID: req.ClientMsgID,
		})
		return err

	case events.ActionSendGroupMessage:
		var req events.SendGroupMessage
		if err := in.Bind(&req); err != nil {
			return err
		}
		_, err := h.chat.SendGroup(ctx, c.UserID(), service.SendGroupInput{
			GroupID:     req.GroupID,
			Content:     req.Content,
			Type:        domain.MessageType(req.Type),
			MediaURL:    req.MediaURL,
			ClientMsgID: req.ClientMsgID,
		})
		return err

	case events.ActionJoinGroupChannel, events.ActionLeaveGroupChannel:
		var req events.GroupChannel
		if err := in.Bind(&req); err != nil {
			return err
		}
		if in.Action == events.ActionJoinGroupChannel {
			return h.chat.JoinGroupChannel(ctx, c, req.GroupID)
		}
		return h.chat.LeaveGroupChannel(ctx, c, req.GroupID)

	case events.ActionStartTyping, events.ActionStopTyping:
		var req events.TypingTarget
		if err := in.Bind(&req); err != nil {
			return err
		}
		if in.Action == events.ActionStartTyping {
			return h.chat.StartTyping(ctx, c.UserID(), req.TargetID)
		}
		return h.chat.StopTyping(ctx, c.UserID(), req.TargetID)

	case events.ActionMarkMessageRead:
		var req events.MarkMessageRead
		if err := in.Bind(&req); err != nil {
			return err
		}
		return h.chat.MarkRead(ctx, c.UserID(), req.MessageID)

	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidRequest, in.Action)
	}
}
