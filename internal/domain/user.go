package domain

import "time"

type User struct {
	ID        UserID     `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserName  string     `gorm:"type:varchar(100);not null" json:"userName"`
	Avatar    string     `gorm:"type:text" json:"avatar,omitempty"`
	Status    UserStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
