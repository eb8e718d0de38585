package domain

import "time"

// FriendEdge is stored directionally (UserID requested, FriendID received)
// but PairKey makes the pair unique regardless of direction.
type FriendEdge struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    UserID       `gorm:"type:varchar(64);not null;index" json:"userId"`
	FriendID  UserID       `gorm:"type:varchar(64);not null;index" json:"friendId"`
	Status    FriendStatus `gorm:"type:varchar(16);not null" json:"status"`
	PairKey   string       `gorm:"type:varchar(140);not null;uniqueIndex:ux_friend_edges_pair" json:"-"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null" json:"updatedAt"`
}

func (FriendEdge) TableName() string { return "friend_edges" }

// PairKey normalizes an unordered pair of identities.
func PairKey(a, b UserID) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Other returns the identity on the far side of the edge from id.
func (e *FriendEdge) Other(id UserID) UserID {
	if e.UserID == id {
		return e.FriendID
	}
	return e.UserID
}
