package events

import "encoding/json"

// Outbound event names.
const (
	MessageReceived      = "message-received"
	GroupMessageReceived = "group-message-received"
	MessageRecalledEvent = "message-recalled"
	StatusChangedEvent   = "status-changed"
	TypingStarted        = "typing-started"
	TypingStopped        = "typing-stopped"
	MessageReadEvent     = "message-read"
	NotificationReceived = "notification-received"
	UserJoined           = "user-joined"
	UserLeft             = "user-left"
	Error                = "error"
)

// Envelope is the frame written to a push channel.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

func NewError(reason, ref, detail string) Envelope {
	return Envelope{Event: Error, Data: ErrorPayload{Reason: reason, Ref: ref, Detail: detail}}
}
