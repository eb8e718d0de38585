package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"okeanchat/internal/domain"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

// Create persists msg and fills in its canonical id and timestamp.
func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	return translate(m.db.WithContext(ctx).Create(msg).Error)
}

func (m *MessageStore) Get(ctx context.Context, id int64) (*domain.Message, error) {
	var msg domain.Message
	if err := m.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (m *MessageStore) GetByClientID(ctx context.Context, sender domain.UserID, clientMsgID string) (*domain.Message, error) {
	var msg domain.Message
	err := m.db.WithContext(ctx).
		First(&msg, "sender_id = ? AND client_msg_id = ?", sender, clientMsgID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// Recall swaps the body of a message for the recall placeholder. Only the
// recall columns are written, so concurrent read or delete flags survive. It
// reports false when the message was already recalled.
func (m *MessageStore) Recall(ctx context.Context, id int64) (bool, error) {
	res := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND is_recalled = ?", id, false).
		Updates(map[string]any{
			"content":     domain.RecalledContent,
			"media_url":   "",
			"file_name":   "",
			"file_size":   0,
			"is_recalled": true,
		})
	return res.RowsAffected > 0, translate(res.Error)
}

func (m *MessageStore) SoftDelete(ctx context.Context, id int64) error {
	return translate(m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		UpdateColumn("is_deleted", true).Error)
}

// Direct returns one page of the a<->b conversation, oldest first. Page 1 is
// the most recent window.
func (m *MessageStore) Direct(ctx context.Context, a, b domain.UserID, page, size int) ([]domain.Message, error) {
	offset, limit := Page(page, size)
	var msgs []domain.Message
	err := m.db.WithContext(ctx).
		Where("is_deleted = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			false, a, b, b, a).
		Order("id desc").
		Offset(offset).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (m *MessageStore) Group(ctx context.Context, groupID int64, page, size int) ([]domain.Message, error) {
	offset, limit := Page(page, size)
	var msgs []domain.Message
	err := m.db.WithContext(ctx).
		Where("is_deleted = ? AND group_id = ?", false, groupID).
		Order("id desc").
		Offset(offset).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// LastDirect returns the newest visible message between a and b.
func (m *MessageStore) LastDirect(ctx context.Context, a, b domain.UserID) (*domain.Message, error) {
	var msg domain.Message
	err := m.db.WithContext(ctx).
		Where("is_deleted = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			false, a, b, b, a).
		Order("id desc").
		First(&msg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// LastGroup returns the newest visible message of a group.
func (m *MessageStore) LastGroup(ctx context.Context, groupID int64) (*domain.Message, error) {
	var msg domain.Message
	err := m.db.WithContext(ctx).
		Where("is_deleted = ? AND group_id = ?", false, groupID).
		Order("id desc").
		First(&msg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// UnreadGroup counts visible group messages from other members newer than
// the reader's marker.
func (m *MessageStore) UnreadGroup(ctx context.Context, groupID int64, reader domain.UserID, after int64) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("group_id = ? AND id > ? AND sender_id <> ? AND is_deleted = ?", groupID, after, reader, false).
		Count(&n).Error
	return n, err
}

// MaxGroupID returns the id of the newest message in a group, deleted or not,
// or 0 for an empty group.
func (m *MessageStore) MaxGroupID(ctx context.Context, groupID int64) (int64, error) {
	var top int64
	err := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&top).Error
	return top, err
}

// MarkRead flags a direct message as read. It reports false when the message
// was already read.
func (m *MessageStore) MarkRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected > 0, res.Error
}

// MarkConversationRead flags every unread message from peer to reader.
func (m *MessageStore) MarkConversationRead(ctx context.Context, reader, peer domain.UserID, at time.Time) (int64, error) {
	res := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peer, reader, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// UnreadDirect counts unread direct messages addressed to user, optionally
// restricted to one sender.
func (m *MessageStore) UnreadDirect(ctx context.Context, user domain.UserID, from *domain.UserID) (int64, error) {
	q := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ? AND is_deleted = ?", user, false, false)
	if from != nil {
		q = q.Where("sender_id = ?", *from)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
