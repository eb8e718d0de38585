package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecalledContent replaces the body of a recalled message.
const RecalledContent = "This message was recalled"

const MaxContentLength = 4000

type Message struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    UserID      `gorm:"type:varchar(64);not null;index;uniqueIndex:ux_messages_client_msg" json:"senderId"`
	ReceiverID  *UserID     `gorm:"type:varchar(64);index" json:"receiverId,omitempty"`
	GroupID     *int64      `gorm:"index" json:"groupId,omitempty"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	Type        MessageType `gorm:"type:varchar(16);not null" json:"type"`
	MediaURL    string      `gorm:"type:text" json:"mediaUrl,omitempty"`
	FileName    string      `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ClientMsgID *string     `gorm:"type:varchar(64);uniqueIndex:ux_messages_client_msg" json:"clientMsgId,omitempty"`
	SentAt      time.Time   `gorm:"not null;index" json:"sentAt"`
	IsRead      bool        `gorm:"not null" json:"isRead"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
	IsDeleted   bool        `gorm:"not null" json:"isDeleted"`
	IsRecalled  bool        `gorm:"not null" json:"isRecalled"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) IsDirect() bool { return m.ReceiverID != nil }

// Validate enforces the addressing and content rules shared by every send path.
func (m *Message) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidRequest)
	}
	if (m.ReceiverID == nil) == (m.GroupID == nil) {
		return fmt.Errorf("%w: exactly one of receiverId or groupId must be set", ErrInvalidRequest)
	}
	if m.ReceiverID != nil && (*m.ReceiverID == "" || *m.ReceiverID == m.SenderID) {
		return fmt.Errorf("%w: invalid receiver", ErrInvalidRequest)
	}
	if m.GroupID != nil && *m.GroupID <= 0 {
		return fmt.Errorf("%w: invalid group", ErrInvalidRequest)
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidRequest, m.Type)
	}
	if strings.TrimSpace(m.Content) == "" && m.MediaURL == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}
	if len(m.Content) > MaxContentLength {
		return fmt.Errorf("%w: content too long", ErrInvalidRequest)
	}
	return nil
}
