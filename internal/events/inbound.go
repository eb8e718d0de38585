package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound action names.
const (
	ActionSendDirectMessage = "sendDirectMessage"
	ActionSendGroupMessage  = "sendGroupMessage"
	ActionJoinGroupChannel  = "joinGroupChannel"
	ActionLeaveGroupChannel = "leaveGroupChannel"
	ActionStartTyping       = "startTyping"
	ActionStopTyping        = "stopTyping"
	ActionMarkMessageRead   = "markMessageRead"
)

var ErrMalformed = errors.New("malformed frame")

// Inbound is one client frame. Ref is echoed back on error events.
type Inbound struct {
	Action string          `json:"action"`
	Ref    string          `json:"ref,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type SendDirectMessage struct {
	ReceiverID  string `json:"receiverId"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	MediaURL    string `json:"mediaUrl,omitempty"`
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

type SendGroupMessage struct {
	GroupID     int64  `json:"groupId"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	MediaURL    string `json:"mediaUrl,omitempty"`
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

type GroupChannel struct {
	GroupID int64 `json:"groupId"`
}

type TypingTarget struct {
	TargetID string `json:"targetId"`
}

type MarkMessageRead struct {
	MessageID int64 `json:"messageId"`
}

func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Action == "" {
		return in, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	return in, nil
}

// Bind decodes the action payload into v.
func (in Inbound) Bind(v any) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: missing data for %s", ErrMalformed, in.Action)
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
