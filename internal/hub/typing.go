package hub

import (
	"okeanchat/internal/domain"
	"okeanchat/internal/events"
)

// Typing relays typing indicators. Nothing is stored; a disconnect does not
// synthesize a stop.
type Typing struct {
	disp *Dispatcher
}

func NewTyping(disp *Dispatcher) *Typing { return &Typing{disp: disp} }

func (t *Typing) Start(from, to domain.UserID) int {
	return t.disp.Push(to, events.Envelope{Event: events.TypingStarted, Data: events.Typing{UserID: from}})
}

func (t *Typing) Stop(from, to domain.UserID) int {
	return t.disp.Push(to, events.Envelope{Event: events.TypingStopped, Data: events.Typing{UserID: from}})
}
