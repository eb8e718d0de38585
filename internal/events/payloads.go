package events

import "time"

type MessagePayload struct {
	ID           int64     `json:"id"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar,omitempty"`
	ReceiverID   string    `json:"receiverId,omitempty"`
	GroupID      int64     `json:"groupId,omitempty"`
	Content      string    `json:"content"`
	Type         string    `json:"type"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	ClientMsgID  string    `json:"clientMsgId,omitempty"`
	SentAt       time.Time `json:"sentAt"`
	IsRecalled   bool      `json:"isRecalled,omitempty"`
	IsOwnEcho    bool      `json:"isOwnEcho"`
}

type MessageRecalled struct {
	MessageID int64  `json:"messageId"`
	GroupID   int64  `json:"groupId,omitempty"`
	Content   string `json:"content"`
}

type StatusChanged struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type Typing struct {
	UserID string `json:"userId"`
}

type MessageRead struct {
	MessageID int64     `json:"messageId"`
	ReaderID  string    `json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

type NotificationPayload struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type GroupPresence struct {
	UserID  string `json:"userId"`
	GroupID int64  `json:"groupId"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
	Ref    string `json:"ref,omitempty"`
	Detail string `json:"detail,omitempty"`
}
