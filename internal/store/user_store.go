package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"okeanchat/internal/domain"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Get(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetMany returns the users that exist among ids, keyed by id.
func (u *UserStore) GetMany(ctx context.Context, ids []domain.UserID) (map[domain.UserID]domain.User, error) {
	out := make(map[domain.UserID]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := u.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, usr := range users {
		out[usr.ID] = usr
	}
	return out, nil
}

// Ensure inserts the user if the id is unknown and leaves existing rows untouched.
func (u *UserStore) Ensure(ctx context.Context, usr *domain.User) error {
	now := time.Now().UTC()
	if usr.Status == "" {
		usr.Status = domain.StatusOffline
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	return u.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(usr).Error
}

// SetStatus updates presence. lastSeen is only written when non-nil.
func (u *UserStore) SetStatus(ctx context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if lastSeen != nil {
		updates["last_seen"] = *lastSeen
	}
	res := u.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ResetOnline marks every user that is not Offline as Offline.
func (u *UserStore) ResetOnline(ctx context.Context, at time.Time) (int64, error) {
	res := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("status <> ?", domain.StatusOffline).
		Updates(map[string]any{
			"status":     domain.StatusOffline,
			"last_seen":  at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
