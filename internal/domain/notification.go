package domain

import "time"

type Notification struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           UserID           `gorm:"type:varchar(64);not null;index" json:"userId"`
	Message          string           `gorm:"type:text;not null" json:"message"`
	Type             NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	RelatedUserID    *UserID          `gorm:"type:varchar(64)" json:"relatedUserId,omitempty"`
	RelatedPostID    *int64           `json:"relatedPostId,omitempty"`
	RelatedMessageID *int64           `json:"relatedMessageId,omitempty"`
	RelatedGroupID   *int64           `json:"relatedGroupId,omitempty"`
	IsRead           bool             `gorm:"not null;index" json:"isRead"`
	CreatedAt        time.Time        `gorm:"not null;index" json:"createdAt"`
	ReadAt           *time.Time       `json:"readAt,omitempty"`
}

func (Notification) TableName() string { return "notifications" }

// Related carries the optional back-references of a notification.
type Related struct {
	UserID    *UserID
	PostID    *int64
	MessageID *int64
	GroupID   *int64
}
