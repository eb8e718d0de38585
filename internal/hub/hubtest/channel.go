// Package hubtest provides in-memory push channels for tests.
package hubtest

import (
	"sync"

	"github.com/google/uuid"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
)

// Channel records every envelope it accepts.
type Channel struct {
	id   string
	user domain.UserID

	mu     sync.Mutex
	frames []events.Envelope
	closed bool
	muted  map[int64]bool
}

var (
	_ hub.Channel         = (*Channel)(nil)
	_ hub.GroupSubscriber = (*Channel)(nil)
)

func NewChannel(user domain.UserID) *Channel {
	return &Channel{id: uuid.NewString(), user: user, muted: make(map[int64]bool)}
}

func (c *Channel) ID() string { return c.id }
func (c *Channel) UserID() domain.UserID { return c.user }

func (c *Channel) Send(env events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hub.ErrChannelClosed
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *Channel) WantsGroup(groupID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.muted[groupID]
}

// LeaveGroup stops group events for groupID reaching this channel.
func (c *Channel) LeaveGroup(groupID int64) {
	c.mu.Lock()
	c.muted[groupID] = true
	c.mu.Unlock()
}

func (c *Channel) JoinGroup(groupID int64) {
	c.mu.Lock()
	delete(c.muted, groupID)
	c.mu.Unlock()
}

// Close makes every later Send fail.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Frames returns a copy of the accepted envelopes in arrival order.
func (c *Channel) Frames() []events.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Envelope(nil), c.frames...)
}

// Events returns the accepted envelopes with the given event name.
func (c *Channel) Events(name string) []events.Envelope {
	var out []events.Envelope
	for _, f := range c.Frames() {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (c *Channel) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
