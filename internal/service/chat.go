package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
	"okeanchat/internal/observability/metrics"
	"okeanchat/internal/store"
)

type SendDirectInput struct {
	ReceiverID  domain.UserID
	Content     string
	Type        domain.MessageType
	MediaURL    string
	ClientMsgID string
}

type SendGroupInput struct {
	GroupID     int64
	Content     string
	Type        domain.MessageType
	MediaURL    string
	ClientMsgID string
}

type SendResult struct {
	Message  *domain.Message
	Delivery hub.DeliveryResult
	// Duplicate is set when ClientMsgID matched an already stored message.
	// Only the sender's channels were echoed in that case.
	Duplicate bool
}

// Conversation summarizes one direct chat for the chat list.
type Conversation struct {
	Peer        domain.User     `json:"peer"`
	Online      bool            `json:"online"`
	LastMessage *domain.Message `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

// GroupConversation summarizes one group chat for the chat list.
type GroupConversation struct {
	Group       domain.Group    `json:"group"`
	Members     []domain.UserID `json:"members"`
	LastMessage *domain.Message `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

// Chat handles every message action. A per-sender lock spans persist and
// dispatch, so one sender's messages reach each channel in persisted order
// no matter which of the sender's devices issued them.
type Chat struct {
	st      *store.Store
	gate    *Gate
	disp    *hub.Dispatcher
	typing  *hub.Typing
	notes   *Notifications
	senders *hub.KeyedMutex
	now     func() time.Time
	log     *slog.Logger
}

func NewChat(st *store.Store, gate *Gate, disp *hub.Dispatcher, notes *Notifications) *Chat {
	return &Chat{
		st:      st,
		gate:    gate,
		disp:    disp,
		typing:  hub.NewTyping(disp),
		notes:   notes,
		senders: hub.NewKeyedMutex(0),
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default().With("component", "chat"),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (c *Chat) sender(ctx context.Context, id domain.UserID) hub.Sender {
	u, err := c.st.Users().Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			c.log.WarnContext(ctx, "sender lookup failed", "user_id", id, "error", err)
		}
		return hub.Sender{ID: id, Name: id}
	}
	return hub.Sender{ID: id, Name: u.UserName, Avatar: u.Avatar}
}

// persist stores msg unless its client token was already used, in which case
// the stored message is returned with duplicate set.
func (c *Chat) persist(ctx context.Context, msg *domain.Message) (stored *domain.Message, duplicate bool, err error) {
	if msg.ClientMsgID != nil {
		existing, err := c.st.Messages().GetByClientID(ctx, msg.SenderID, *msg.ClientMsgID)
		if err == nil {
			return replay(existing, msg)
		}
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, false, translateErr(err, "message")
		}
	}

	err = c.st.Messages().Create(ctx, msg)
	if errors.Is(err, store.ErrDuplicate) && msg.ClientMsgID != nil {
		existing, lookupErr := c.st.Messages().GetByClientID(ctx, msg.SenderID, *msg.ClientMsgID)
		if lookupErr != nil {
			return nil, false, translateErr(lookupErr, "message")
		}
		return replay(existing, msg)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: store message: %v", domain.ErrPersistence, err)
	}
	return msg, false, nil
}

// replay accepts a resend only when it targets the conversation the client
// token was first used for.
func replay(existing, msg *domain.Message) (*domain.Message, bool, error) {
	if !sameUser(existing.ReceiverID, msg.ReceiverID) || !sameGroup(existing.GroupID, msg.GroupID) {
		return nil, false, fmt.Errorf("%w: client message id %q already used for another conversation",
			domain.ErrConflict, *msg.ClientMsgID)
	}
	return existing, true, nil
}

func sameUser(a, b *domain.UserID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameGroup(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SendDirect gates, persists and fans out a direct message. A denied send
// leaves the store untouched.
func (c *Chat) SendDirect(ctx context.Context, senderID domain.UserID, in SendDirectInput) (SendResult, error) {
	receiver := strings.TrimSpace(in.ReceiverID)
	msg := &domain.Message{
		SenderID:    senderID,
		ReceiverID:  &receiver,
		Content:     in.Content,
		Type:        in.Type,
		MediaURL:    in.MediaURL,
		ClientMsgID: optional(in.ClientMsgID),
		SentAt:      c.now(),
	}
	if err := msg.Validate(); err != nil {
		return SendResult{}, err
	}

	ok, err := c.gate.CanDirectMessage(ctx, senderID, receiver)
	if err != nil {
		return SendResult{}, err
	}
	if !ok {
		return SendResult{}, forbidden("cannot message %s", receiver)
	}

	sender := c.sender(ctx, senderID)

	res, err := c.persistAndDispatch(ctx, msg, sender, func(stored *domain.Message) (hub.DeliveryResult, error) {
		return c.disp.DeliverDirect(ctx, stored, sender), nil
	})
	if err != nil || res.Duplicate {
		return res, err
	}

	id := res.Message.ID
	c.notes.emitQuietly(ctx, receiver,
		fmt.Sprintf("%s sent you a message", sender.Name),
		domain.NotifyMessage,
		domain.Related{UserID: &senderID, MessageID: &id})
	return res, nil
}

// SendGroup gates on active membership, persists and fans out to every
// other active member.
func (c *Chat) SendGroup(ctx context.Context, senderID domain.UserID, in SendGroupInput) (SendResult, error) {
	groupID := in.GroupID
	msg := &domain.Message{
		SenderID:    senderID,
		GroupID:     &groupID,
		Content:     in.Content,
		Type:        in.Type,
		MediaURL:    in.MediaURL,
		ClientMsgID: optional(in.ClientMsgID),
		SentAt:      c.now(),
	}
	if err := msg.Validate(); err != nil {
		return SendResult{}, err
	}

	member, err := c.gate.IsActiveMember(ctx, senderID, groupID)
	if err != nil {
		return SendResult{}, err
	}
	if !member {
		return SendResult{}, forbidden("not a member of group %d", groupID)
	}
	group, err := c.st.Groups().Get(ctx, groupID)
	if err != nil {
		return SendResult{}, translateErr(err, "group")
	}
	if !group.IsActive {
		return SendResult{}, fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
	}

	sender := c.sender(ctx, senderID)

	res, err := c.persistAndDispatch(ctx, msg, sender, func(stored *domain.Message) (hub.DeliveryResult, error) {
		return c.disp.DeliverGroup(ctx, stored, sender)
	})
	if err != nil || res.Duplicate {
		return res, err
	}

	members, err := c.st.Groups().ActiveMemberIDs(ctx, groupID)
	if err != nil {
		c.log.WarnContext(ctx, "group notification lookup failed", "group_id", groupID, "error", err)
		return res, nil
	}
	id := res.Message.ID
	text := fmt.Sprintf("%s sent a message in %s", sender.Name, group.Name)
	for _, m := range members {
		if m == senderID {
			continue
		}
		c.notes.emitQuietly(ctx, m, text, domain.NotifyGroupMessage,
			domain.Related{UserID: &senderID, MessageID: &id, GroupID: &groupID})
	}
	return res, nil
}

func (c *Chat) persistAndDispatch(
	ctx context.Context,
	msg *domain.Message,
	sender hub.Sender,
	deliver func(*domain.Message) (hub.DeliveryResult, error),
) (SendResult, error) {
	unlock := c.senders.Lock(msg.SenderID)
	defer unlock()

	stored, dup, err := c.persist(ctx, msg)
	if err != nil {
		return SendResult{}, err
	}
	if dup {
		return SendResult{
			Message:   stored,
			Delivery:  hub.DeliveryResult{Persisted: true, EchoChannels: c.disp.Echo(stored, sender)},
			Duplicate: true,
		}, nil
	}

	chatType := "direct"
	if stored.GroupID != nil {
		chatType = "group"
	}
	metrics.MessagesStoredTotal.WithLabelValues(chatType).Inc()

	delivery, err := deliver(stored)
	if err != nil {
		// already persisted; the pull path will surface it
		c.log.WarnContext(ctx, "fan-out failed", "message_id", stored.ID, "error", err)
	}
	return SendResult{Message: stored, Delivery: delivery}, nil
}

// JoinGroupChannel subscribes ch to a group's live events and announces the
// member to the rest of the group.
func (c *Chat) JoinGroupChannel(ctx context.Context, ch hub.GroupSubscriber, groupID int64) error {
	member, err := c.gate.IsActiveMember(ctx, ch.UserID(), groupID)
	if err != nil {
		return err
	}
	if !member {
		return forbidden("not a member of group %d", groupID)
	}
	ch.JoinGroup(groupID)
	c.announce(ctx, events.UserJoined, ch.UserID(), groupID)
	return nil
}

// LeaveGroupChannel stops live group events on ch. Membership is unchanged.
func (c *Chat) LeaveGroupChannel(ctx context.Context, ch hub.GroupSubscriber, groupID int64) error {
	if groupID <= 0 {
		return invalid("invalid group")
	}
	ch.LeaveGroup(groupID)
	member, err := c.gate.IsActiveMember(ctx, ch.UserID(), groupID)
	if err != nil || !member {
		return err
	}
	c.announce(ctx, events.UserLeft, ch.UserID(), groupID)
	return nil
}

func (c *Chat) announce(ctx context.Context, event string, user domain.UserID, groupID int64) {
	env := events.Envelope{Event: event, Data: events.GroupPresence{UserID: user, GroupID: groupID}}
	if _, err := c.disp.PushGroup(ctx, groupID, env, user); err != nil {
		c.log.WarnContext(ctx, "group announce failed", "event", event, "group_id", groupID, "error", err)
	}
}

func (c *Chat) StartTyping(_ context.Context, from, to domain.UserID) error {
	if to == "" || to == from {
		return invalid("invalid typing target")
	}
	c.typing.Start(from, to)
	return nil
}

func (c *Chat) StopTyping(_ context.Context, from, to domain.UserID) error {
	if to == "" || to == from {
		return invalid("invalid typing target")
	}
	c.typing.Stop(from, to)
	return nil
}

// MarkRead flags a direct message as read by its receiver and tells the
// sender. Reading an already read message is a no-op.
func (c *Chat) MarkRead(ctx context.Context, userID domain.UserID, messageID int64) error {
	msg, err := c.st.Messages().Get(ctx, messageID)
	if err != nil {
		return translateErr(err, "message")
	}
	if msg.ReceiverID == nil || *msg.ReceiverID != userID {
		return forbidden("only the receiver can mark message %d read", messageID)
	}
	if msg.IsRead {
		return nil
	}
	at := c.now()
	changed, err := c.st.Messages().MarkRead(ctx, messageID, at)
	if err != nil {
		return translateErr(err, "message")
	}
	if changed {
		c.disp.Push(msg.SenderID, events.Envelope{
			Event: events.MessageReadEvent,
			Data:  events.MessageRead{MessageID: messageID, ReaderID: userID, ReadAt: at},
		})
	}
	return nil
}

// MarkConversationRead flags every unread message from peer to user.
func (c *Chat) MarkConversationRead(ctx context.Context, userID, peer domain.UserID) (int64, error) {
	n, err := c.st.Messages().MarkConversationRead(ctx, userID, peer, c.now())
	return n, translateErr(err, "messages")
}

func (c *Chat) UnreadCount(ctx context.Context, userID domain.UserID) (int64, error) {
	n, err := c.st.Messages().UnreadDirect(ctx, userID, nil)
	return n, translateErr(err, "messages")
}

// Message returns one message visible to userID.
func (c *Chat) Message(ctx context.Context, userID domain.UserID, messageID int64) (*domain.Message, error) {
	msg, err := c.st.Messages().Get(ctx, messageID)
	if err != nil {
		return nil, translateErr(err, "message")
	}
	if err := c.canSee(ctx, userID, msg); err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, fmt.Errorf("%w: message %d", domain.ErrNotFound, messageID)
	}
	return msg, nil
}

func (c *Chat) canSee(ctx context.Context, userID domain.UserID, msg *domain.Message) error {
	if msg.SenderID == userID {
		return nil
	}
	if msg.ReceiverID != nil {
		if *msg.ReceiverID == userID {
			return nil
		}
		return fmt.Errorf("%w: message %d", domain.ErrNotFound, msg.ID)
	}
	member, err := c.gate.IsActiveMember(ctx, userID, *msg.GroupID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: message %d", domain.ErrNotFound, msg.ID)
	}
	return nil
}

// Recall replaces the content of the sender's own message with the recall
// placeholder. It cannot be undone.
func (c *Chat) Recall(ctx context.Context, userID domain.UserID, messageID int64) (*domain.Message, error) {
	msg, err := c.st.Messages().Get(ctx, messageID)
	if err != nil {
		return nil, translateErr(err, "message")
	}
	if msg.SenderID != userID {
		return nil, forbidden("only the sender can recall message %d", messageID)
	}
	if msg.IsRecalled {
		return msg, nil
	}
	changed, err := c.st.Messages().Recall(ctx, msg.ID)
	if err != nil {
		return nil, translateErr(err, "message")
	}
	if msg, err = c.st.Messages().Get(ctx, messageID); err != nil {
		return nil, translateErr(err, "message")
	}
	if !changed {
		// a concurrent recall already announced it
		return msg, nil
	}

	notice := events.MessageRecalled{MessageID: msg.ID, Content: msg.Content}
	if msg.GroupID != nil {
		notice.GroupID = *msg.GroupID
		env := events.Envelope{Event: events.MessageRecalledEvent, Data: notice}
		if _, err := c.disp.PushGroup(ctx, *msg.GroupID, env, ""); err != nil {
			c.log.WarnContext(ctx, "recall fan-out failed", "message_id", msg.ID, "error", err)
		}
		return msg, nil
	}
	env := events.Envelope{Event: events.MessageRecalledEvent, Data: notice}
	c.disp.Push(*msg.ReceiverID, env)
	c.disp.Push(msg.SenderID, env)
	return msg, nil
}

// Delete soft-deletes a direct message for either participant, or a group
// message for its sender.
func (c *Chat) Delete(ctx context.Context, userID domain.UserID, messageID int64) error {
	msg, err := c.st.Messages().Get(ctx, messageID)
	if err != nil {
		return translateErr(err, "message")
	}
	isReceiver := msg.ReceiverID != nil && *msg.ReceiverID == userID
	if msg.SenderID != userID && !isReceiver {
		return forbidden("not a participant of message %d", messageID)
	}
	if msg.IsDeleted {
		return nil
	}
	return translateErr(c.st.Messages().SoftDelete(ctx, msg.ID), "message")
}

func (c *Chat) DirectHistory(ctx context.Context, userID, peer domain.UserID, page, size int) ([]domain.Message, error) {
	if peer == "" || peer == userID {
		return nil, invalid("invalid peer")
	}
	msgs, err := c.st.Messages().Direct(ctx, userID, peer, page, size)
	return msgs, translateErr(err, "messages")
}

func (c *Chat) GroupHistory(ctx context.Context, userID domain.UserID, groupID int64, page, size int) ([]domain.Message, error) {
	if err := c.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	msgs, err := c.st.Messages().Group(ctx, groupID, page, size)
	return msgs, translateErr(err, "messages")
}

// Conversations lists the user's accepted friends with the newest message and
// unread count of each chat, most recent first.
func (c *Chat) Conversations(ctx context.Context, userID domain.UserID) ([]Conversation, error) {
	friendIDs, err := c.st.Friends().AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, translateErr(err, "friends")
	}
	users, err := c.st.Users().GetMany(ctx, friendIDs)
	if err != nil {
		return nil, translateErr(err, "users")
	}

	out := make([]Conversation, 0, len(friendIDs))
	for _, id := range friendIDs {
		peer, ok := users[id]
		if !ok {
			peer = domain.User{ID: id, UserName: id, Status: domain.StatusOffline}
		}
		conv := Conversation{Peer: peer, Online: c.disp.Registry().IsOnline(id)}

		last, err := c.st.Messages().LastDirect(ctx, userID, id)
		switch {
		case err == nil:
			conv.LastMessage = last
		case !errors.Is(err, store.ErrRecordNotFound):
			return nil, translateErr(err, "messages")
		}

		from := id
		if conv.UnreadCount, err = c.st.Messages().UnreadDirect(ctx, userID, &from); err != nil {
			return nil, translateErr(err, "messages")
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.ID > b.ID
		}
	})
	return out, nil
}

// GroupConversations lists the user's active groups with their members, the
// newest message and the unread count, most recent first.
func (c *Chat) GroupConversations(ctx context.Context, userID domain.UserID) ([]GroupConversation, error) {
	groups, err := c.st.Groups().ForUser(ctx, userID)
	if err != nil {
		return nil, translateErr(err, "groups")
	}

	out := make([]GroupConversation, 0, len(groups))
	for _, g := range groups {
		conv := GroupConversation{Group: g}
		if conv.Members, err = c.st.Groups().ActiveMemberIDs(ctx, g.ID); err != nil {
			return nil, translateErr(err, "members")
		}

		last, err := c.st.Messages().LastGroup(ctx, g.ID)
		switch {
		case err == nil:
			conv.LastMessage = last
		case !errors.Is(err, store.ErrRecordNotFound):
			return nil, translateErr(err, "messages")
		}

		if conv.UnreadCount, err = c.groupUnread(ctx, c.st, userID, g.ID); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.ID > b.ID
		}
	})
	return out, nil
}

func (c *Chat) groupUnread(ctx context.Context, st *store.Store, userID domain.UserID, groupID int64) (int64, error) {
	m, err := st.Groups().Member(ctx, groupID, userID)
	if err != nil {
		return 0, translateErr(err, "membership")
	}
	n, err := st.Messages().UnreadGroup(ctx, groupID, userID, m.LastReadMessageID)
	return n, translateErr(err, "messages")
}

func (c *Chat) requireMember(ctx context.Context, userID domain.UserID, groupID int64) error {
	member, err := c.gate.IsActiveMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !member {
		return forbidden("not a member of group %d", groupID)
	}
	return nil
}

// GroupUnreadCount counts group messages from other members that userID has
// not read yet.
func (c *Chat) GroupUnreadCount(ctx context.Context, userID domain.UserID, groupID int64) (int64, error) {
	if err := c.requireMember(ctx, userID, groupID); err != nil {
		return 0, err
	}
	return c.groupUnread(ctx, c.st, userID, groupID)
}

// MarkGroupRead moves the caller's read marker to the newest group message
// and returns how many messages became read.
func (c *Chat) MarkGroupRead(ctx context.Context, userID domain.UserID, groupID int64) (int64, error) {
	if err := c.requireMember(ctx, userID, groupID); err != nil {
		return 0, err
	}
	var marked int64
	err := c.st.WithTx(ctx, func(tx *store.Store) error {
		n, err := c.groupUnread(ctx, tx, userID, groupID)
		if err != nil {
			return err
		}
		top, err := tx.Messages().MaxGroupID(ctx, groupID)
		if err != nil {
			return err
		}
		moved, err := tx.Groups().AdvanceReadMarker(ctx, groupID, userID, top)
		if err != nil {
			return err
		}
		if moved {
			marked = n
		}
		return nil
	})
	return marked, translateErr(err, "messages")
}
