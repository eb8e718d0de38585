package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"okeanchat/internal/domain"
)

type NotificationStore struct{ db *gorm.DB }

func (s *Store) Notifications() *NotificationStore { return &NotificationStore{db: s.DB} }

func (n *NotificationStore) Create(ctx context.Context, note *domain.Notification) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	return translate(n.db.WithContext(ctx).Create(note).Error)
}

// List returns one page for the owner, newest first.
func (n *NotificationStore) List(ctx context.Context, user domain.UserID, page, size int) ([]domain.Notification, error) {
	offset, limit := Page(page, size)
	var notes []domain.Notification
	err := n.db.WithContext(ctx).
		Where("user_id = ?", user).
		Order("id desc").
		Offset(offset).Limit(limit).
		Find(&notes).Error
	return notes, err
}

func (n *NotificationStore) Unread(ctx context.Context, user domain.UserID) ([]domain.Notification, error) {
	var notes []domain.Notification
	err := n.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", user, false).
		Order("id desc").
		Find(&notes).Error
	return notes, err
}

func (n *NotificationStore) UnreadCount(ctx context.Context, user domain.UserID) (int64, error) {
	var count int64
	err := n.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", user, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags one notification of the owner. ErrRecordNotFound covers
// both unknown ids and notifications owned by someone else.
func (n *NotificationStore) MarkRead(ctx context.Context, user domain.UserID, id int64, at time.Time) error {
	var note domain.Notification
	if err := n.db.WithContext(ctx).First(&note, "id = ? AND user_id = ?", id, user).Error; err != nil {
		return translate(err)
	}
	if note.IsRead {
		return nil
	}
	return n.db.WithContext(ctx).Model(&note).
		Updates(map[string]any{"is_read": true, "read_at": at}).Error
}

func (n *NotificationStore) MarkAllRead(ctx context.Context, user domain.UserID, at time.Time) (int64, error) {
	res := n.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", user, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (n *NotificationStore) Delete(ctx context.Context, user domain.UserID, id int64) error {
	res := n.db.WithContext(ctx).Where("user_id = ?", user).Delete(&domain.Notification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
