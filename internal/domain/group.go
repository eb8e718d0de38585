package domain

import "time"

type Group struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Avatar      string    `gorm:"type:text" json:"avatar,omitempty"`
	OwnerID     UserID    `gorm:"type:varchar(64);not null;index" json:"ownerId"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

func (Group) TableName() string { return "chat_groups" }

// GroupMember rows are never deleted; leaving or removal flips IsActive.
type GroupMember struct {
	ID       int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID  int64      `gorm:"not null;uniqueIndex:ux_group_members_pair" json:"groupId"`
	UserID   UserID     `gorm:"type:varchar(64);not null;uniqueIndex:ux_group_members_pair;index" json:"userId"`
	Role     GroupRole  `gorm:"type:varchar(16);not null" json:"role"`
	IsActive bool       `gorm:"not null" json:"isActive"`
	JoinedAt time.Time  `gorm:"not null" json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
	// LastReadMessageID marks the newest group message the member has read.
	LastReadMessageID int64 `gorm:"not null;default:0" json:"lastReadMessageId"`
}

func (GroupMember) TableName() string { return "group_members" }
