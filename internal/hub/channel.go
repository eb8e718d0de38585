package hub

import (
	"errors"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
)

var (
	ErrChannelClosed  = errors.New("channel closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Channel is one live push connection of one device.
type Channel interface {
	ID() string
	UserID() domain.UserID
	// Send enqueues env without blocking. Frames accepted by one channel are
	// written in the order Send was called.
	Send(env events.Envelope) error
}

// GroupFilter is implemented by channels that can opt out of a group's events.
type GroupFilter interface {
	WantsGroup(groupID int64) bool
}

func wantsGroup(ch Channel, groupID int64) bool {
	if f, ok := ch.(GroupFilter); ok {
		return f.WantsGroup(groupID)
	}
	return true
}

// GroupSubscriber is a channel whose group subscriptions can be toggled.
// Channels start subscribed to every group.
type GroupSubscriber interface {
	Channel
	GroupFilter
	JoinGroup(groupID int64)
	LeaveGroup(groupID int64)
}
