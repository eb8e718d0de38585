package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"okeanchat/internal/domain"
)

type GroupStore struct{ db *gorm.DB }

func (s *Store) Groups() *GroupStore { return &GroupStore{db: s.DB} }

func (g *GroupStore) Create(ctx context.Context, group *domain.Group) error {
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	return translate(g.db.WithContext(ctx).Create(group).Error)
}

func (g *GroupStore) Get(ctx context.Context, id int64) (*domain.Group, error) {
	var group domain.Group
	if err := g.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

// GetForUpdate locks the group row for the rest of the transaction.
func (g *GroupStore) GetForUpdate(ctx context.Context, id int64) (*domain.Group, error) {
	var group domain.Group
	q := g.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&group, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

func (g *GroupStore) Save(ctx context.Context, group *domain.Group) error {
	group.UpdatedAt = time.Now().UTC()
	return translate(g.db.WithContext(ctx).Save(group).Error)
}

func (g *GroupStore) Member(ctx context.Context, groupID int64, userID domain.UserID) (*domain.GroupMember, error) {
	var m domain.GroupMember
	if err := g.db.WithContext(ctx).First(&m, "group_id = ? AND user_id = ?", groupID, userID).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (g *GroupStore) AddMember(ctx context.Context, m *domain.GroupMember) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return translate(g.db.WithContext(ctx).Create(m).Error)
}

// SaveMember writes the membership state of m. The read marker is owned by
// AdvanceReadMarker and is left alone.
func (g *GroupStore) SaveMember(ctx context.Context, m *domain.GroupMember) error {
	return translate(g.db.WithContext(ctx).Model(m).
		Select("role", "is_active", "joined_at", "left_at").
		Updates(m).Error)
}

// AdvanceReadMarker moves the member's read marker forward to upTo. It never
// moves it back and reports whether it moved.
func (g *GroupStore) AdvanceReadMarker(ctx context.Context, groupID int64, userID domain.UserID, upTo int64) (bool, error) {
	res := g.db.WithContext(ctx).Model(&domain.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND last_read_message_id < ?", groupID, userID, upTo).
		UpdateColumn("last_read_message_id", upTo)
	return res.RowsAffected > 0, translate(res.Error)
}

// ActiveMembers lists active memberships ordered by join time.
func (g *GroupStore) ActiveMembers(ctx context.Context, groupID int64) ([]domain.GroupMember, error) {
	var members []domain.GroupMember
	err := g.db.WithContext(ctx).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Order("joined_at asc, id asc").
		Find(&members).Error
	return members, err
}

func (g *GroupStore) ActiveMemberIDs(ctx context.Context, groupID int64) ([]domain.UserID, error) {
	var ids []domain.UserID
	err := g.db.WithContext(ctx).Model(&domain.GroupMember{}).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Order("id asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

// DeactivateMembers flips every active membership of the group to inactive.
func (g *GroupStore) DeactivateMembers(ctx context.Context, groupID int64, at time.Time) error {
	return g.db.WithContext(ctx).Model(&domain.GroupMember{}).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Updates(map[string]any{"is_active": false, "left_at": at}).Error
}

// ForUser lists active groups in which user holds an active membership.
func (g *GroupStore) ForUser(ctx context.Context, userID domain.UserID) ([]domain.Group, error) {
	var groups []domain.Group
	err := g.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = chat_groups.id").
		Where("group_members.user_id = ? AND group_members.is_active = ? AND chat_groups.is_active = ?", userID, true, true).
		Order("chat_groups.id asc").
		Find(&groups).Error
	return groups, err
}
