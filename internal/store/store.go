package store

import (
	"context"

	"gorm.io/gorm"

	"okeanchat/internal/domain"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

// WithTx runs fn inside one transaction. fn must only use the tx store it
// receives, never the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.FriendEdge{},
		&domain.Group{},
		&domain.GroupMember{},
		&domain.Message{},
		&domain.Notification{},
	)
}

// Page converts 1-based page/size into offset/limit with sane bounds.
func Page(page, size int) (offset, limit int) {
	if size <= 0 {
		size = 50
	}
	if size > 200 {
		size = 200
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * size, size
}
