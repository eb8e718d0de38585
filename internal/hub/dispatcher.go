package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/observability/metrics"
)

// MemberLister resolves the active members of a group at call time.
type MemberLister interface {
	ActiveMemberIDs(ctx context.Context, groupID int64) ([]domain.UserID, error)
}

// Sender is the display identity attached to message events.
type Sender struct {
	ID     domain.UserID
	Name   string
	Avatar string
}

type DeliveryResult struct {
	Persisted     bool
	LiveDelivered bool
	// Group deliveries only.
	RecipientsNotified int
	RecipientsOffline  int
	// EchoChannels counts sender devices that accepted the echo.
	EchoChannels int
}

// Dispatcher pushes events to the live channels held by a Registry. Pushes
// are best effort: a channel that refuses a frame is logged and counted,
// never reported to the caller as a failure.
type Dispatcher struct {
	reg     *Registry
	members MemberLister
	log     *slog.Logger
}

func NewDispatcher(reg *Registry, members MemberLister) *Dispatcher {
	return &Dispatcher{reg: reg, members: members, log: slog.Default().With("component", "dispatcher")}
}

func (d *Dispatcher) Registry() *Registry { return d.reg }

// MessagePayload renders msg as the wire payload seen by one recipient.
func MessagePayload(msg *domain.Message, sender Sender, ownEcho bool) events.MessagePayload {
	p := events.MessagePayload{
		ID:           msg.ID,
		SenderID:     msg.SenderID,
		SenderName:   sender.Name,
		SenderAvatar: sender.Avatar,
		Content:      msg.Content,
		Type:         string(msg.Type),
		MediaURL:     msg.MediaURL,
		SentAt:       msg.SentAt,
		IsRecalled:   msg.IsRecalled,
		IsOwnEcho:    ownEcho,
	}
	if msg.ReceiverID != nil {
		p.ReceiverID = *msg.ReceiverID
	}
	if msg.GroupID != nil {
		p.GroupID = *msg.GroupID
	}
	if msg.ClientMsgID != nil {
		p.ClientMsgID = *msg.ClientMsgID
	}
	return p
}

// DeliverDirect pushes a persisted direct message to every receiver channel
// and echoes it to every sender channel.
func (d *Dispatcher) DeliverDirect(ctx context.Context, msg *domain.Message, sender Sender) DeliveryResult {
	res := DeliveryResult{Persisted: true}
	if msg.ReceiverID == nil {
		return res
	}

	recv := events.Envelope{Event: events.MessageReceived, Data: MessagePayload(msg, sender, false)}
	if d.Push(*msg.ReceiverID, recv) > 0 {
		res.LiveDelivered = true
	} else {
		metrics.DeliveryGapsTotal.WithLabelValues("direct").Inc()
		d.log.DebugContext(ctx, "direct message persisted, receiver offline",
			"message_id", msg.ID, "receiver_id", *msg.ReceiverID)
	}

	res.EchoChannels = d.Echo(msg, sender)
	return res
}

// Echo sends msg back to every channel of its sender.
func (d *Dispatcher) Echo(msg *domain.Message, sender Sender) int {
	event := events.MessageReceived
	if msg.GroupID != nil {
		event = events.GroupMessageReceived
	}
	return d.Push(msg.SenderID, events.Envelope{Event: event, Data: MessagePayload(msg, sender, true)})
}

// DeliverGroup pushes a persisted group message to every other active member
// with a live channel subscribed to the group, and echoes it to the sender.
func (d *Dispatcher) DeliverGroup(ctx context.Context, msg *domain.Message, sender Sender) (DeliveryResult, error) {
	res := DeliveryResult{Persisted: true}
	if msg.GroupID == nil {
		return res, errors.New("dispatcher: group delivery of a direct message")
	}
	groupID := *msg.GroupID

	members, err := d.members.ActiveMemberIDs(ctx, groupID)
	if err != nil {
		return res, fmt.Errorf("resolve members of group %d: %w", groupID, err)
	}

	env := events.Envelope{Event: events.GroupMessageReceived, Data: MessagePayload(msg, sender, false)}
	for _, member := range members {
		if member == msg.SenderID {
			continue
		}
		if d.pushGroup(member, groupID, env) > 0 {
			res.RecipientsNotified++
		} else {
			res.RecipientsOffline++
		}
	}
	if res.RecipientsOffline > 0 {
		metrics.DeliveryGapsTotal.WithLabelValues("group").Add(float64(res.RecipientsOffline))
	}
	res.LiveDelivered = res.RecipientsNotified > 0

	res.EchoChannels = d.Echo(msg, sender)
	return res, nil
}

// PushGroup sends env to every active member except the excluded identity.
// It returns the number of members reached.
func (d *Dispatcher) PushGroup(ctx context.Context, groupID int64, env events.Envelope, except domain.UserID) (int, error) {
	members, err := d.members.ActiveMemberIDs(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("resolve members of group %d: %w", groupID, err)
	}
	reached := 0
	for _, member := range members {
		if member == except {
			continue
		}
		if d.pushGroup(member, groupID, env) > 0 {
			reached++
		}
	}
	return reached, nil
}

// Push sends env to every channel of id and returns how many accepted it.
func (d *Dispatcher) Push(id domain.UserID, env events.Envelope) int {
	accepted := 0
	for _, ch := range d.reg.ChannelsFor(id) {
		if d.send(ch, env) {
			accepted++
		}
	}
	return accepted
}

func (d *Dispatcher) pushGroup(id domain.UserID, groupID int64, env events.Envelope) int {
	accepted := 0
	for _, ch := range d.reg.ChannelsFor(id) {
		if !wantsGroup(ch, groupID) {
			continue
		}
		if d.send(ch, env) {
			accepted++
		}
	}
	return accepted
}

func (d *Dispatcher) send(ch Channel, env events.Envelope) bool {
	if err := ch.Send(env); err != nil {
		metrics.PushEventsTotal.WithLabelValues(env.Event, "dropped").Inc()
		d.log.Debug("push dropped",
			"event", env.Event,
			"user_id", ch.UserID(),
			"channel_id", ch.ID(),
			"error", err,
		)
		return false
	}
	metrics.PushEventsTotal.WithLabelValues(env.Event, "sent").Inc()
	return true
}
