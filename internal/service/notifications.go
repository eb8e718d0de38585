package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
	"okeanchat/internal/observability/metrics"
	"okeanchat/internal/store"
)

// Notifications persists notifications and pushes them to live channels.
// The push is best effort; unread notifications surface through the pull path.
type Notifications struct {
	st   *store.Store
	disp *hub.Dispatcher
	now  func() time.Time
	log  *slog.Logger
}

func NewNotifications(st *store.Store, disp *hub.Dispatcher) *Notifications {
	return &Notifications{
		st:   st,
		disp: disp,
		now:  func() time.Time { return time.Now().UTC() },
		log:  slog.Default().With("component", "notifications"),
	}
}

// Emit stores the notification first and only then tries to push it.
func (n *Notifications) Emit(ctx context.Context, userID domain.UserID, text string, typ domain.NotificationType, rel domain.Related) (*domain.Notification, error) {
	if userID == "" || strings.TrimSpace(text) == "" {
		return nil, invalid("notification needs a target and text")
	}
	if typ == "" {
		typ = domain.NotifyInfo
	}
	note := &domain.Notification{
		UserID:           userID,
		Message:          text,
		Type:             typ,
		RelatedUserID:    rel.UserID,
		RelatedPostID:    rel.PostID,
		RelatedMessageID: rel.MessageID,
		RelatedGroupID:   rel.GroupID,
		CreatedAt:        n.now(),
	}
	if err := n.st.Notifications().Create(ctx, note); err != nil {
		return nil, translateErr(err, "notification")
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(typ)).Inc()

	pushed := n.disp.Push(userID, events.Envelope{
		Event: events.NotificationReceived,
		Data: events.NotificationPayload{
			ID:        note.ID,
			Message:   note.Message,
			Type:      string(note.Type),
			CreatedAt: note.CreatedAt,
		},
	})
	if pushed == 0 {
		n.log.DebugContext(ctx, "notification stored for offline user", "user_id", userID, "notification_id", note.ID)
	}
	return note, nil
}

// emitQuietly is used for side-effect notifications whose failure must not
// fail the originating action.
func (n *Notifications) emitQuietly(ctx context.Context, userID domain.UserID, text string, typ domain.NotificationType, rel domain.Related) {
	if _, err := n.Emit(ctx, userID, text, typ, rel); err != nil {
		n.log.WarnContext(ctx, "notification emit failed", "user_id", userID, "type", typ, "error", err)
	}
}

func (n *Notifications) List(ctx context.Context, userID domain.UserID, page, size int) ([]domain.Notification, error) {
	notes, err := n.st.Notifications().List(ctx, userID, page, size)
	return notes, translateErr(err, "notifications")
}

func (n *Notifications) Unread(ctx context.Context, userID domain.UserID) ([]domain.Notification, error) {
	notes, err := n.st.Notifications().Unread(ctx, userID)
	return notes, translateErr(err, "notifications")
}

func (n *Notifications) UnreadCount(ctx context.Context, userID domain.UserID) (int64, error) {
	count, err := n.st.Notifications().UnreadCount(ctx, userID)
	return count, translateErr(err, "notifications")
}

func (n *Notifications) MarkRead(ctx context.Context, userID domain.UserID, id int64) error {
	return translateErr(n.st.Notifications().MarkRead(ctx, userID, id, n.now()), "notification")
}

func (n *Notifications) MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error) {
	count, err := n.st.Notifications().MarkAllRead(ctx, userID, n.now())
	return count, translateErr(err, "notifications")
}

func (n *Notifications) Delete(ctx context.Context, userID domain.UserID, id int64) error {
	return translateErr(n.st.Notifications().Delete(ctx, userID, id), "notification")
}
