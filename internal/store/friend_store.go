package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"okeanchat/internal/domain"
)

type FriendStore struct{ db *gorm.DB }

func (s *Store) Friends() *FriendStore { return &FriendStore{db: s.DB} }

// Create inserts a new edge. A second edge for the same unordered pair
// yields ErrDuplicate.
func (f *FriendStore) Create(ctx context.Context, edge *domain.FriendEdge) error {
	now := time.Now().UTC()
	edge.PairKey = domain.PairKey(edge.UserID, edge.FriendID)
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = now
	}
	edge.UpdatedAt = now
	return translate(f.db.WithContext(ctx).Create(edge).Error)
}

// Between returns every edge stored for the unordered pair, in either direction.
func (f *FriendStore) Between(ctx context.Context, a, b domain.UserID) ([]domain.FriendEdge, error) {
	var edges []domain.FriendEdge
	err := f.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Order("id asc").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// Get returns the edge for the unordered pair.
func (f *FriendStore) Get(ctx context.Context, a, b domain.UserID) (*domain.FriendEdge, error) {
	var edge domain.FriendEdge
	if err := f.db.WithContext(ctx).First(&edge, "pair_key = ?", domain.PairKey(a, b)).Error; err != nil {
		return nil, translate(err)
	}
	return &edge, nil
}

func (f *FriendStore) Save(ctx context.Context, edge *domain.FriendEdge) error {
	edge.UpdatedAt = time.Now().UTC()
	return translate(f.db.WithContext(ctx).Save(edge).Error)
}

func (f *FriendStore) Delete(ctx context.Context, id int64) error {
	res := f.db.WithContext(ctx).Delete(&domain.FriendEdge{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AcceptedFriendIDs lists peers with an Accepted edge and no Blocked edge
// in either direction.
func (f *FriendStore) AcceptedFriendIDs(ctx context.Context, user domain.UserID) ([]domain.UserID, error) {
	var edges []domain.FriendEdge
	err := f.db.WithContext(ctx).
		Where("(user_id = ? OR friend_id = ?) AND status IN ?", user, user,
			[]domain.FriendStatus{domain.FriendAccepted, domain.FriendBlocked}).
		Order("id asc").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}

	blocked := make(map[domain.UserID]struct{})
	for _, e := range edges {
		if e.Status == domain.FriendBlocked {
			blocked[e.Other(user)] = struct{}{}
		}
	}
	seen := make(map[domain.UserID]struct{})
	out := make([]domain.UserID, 0, len(edges))
	for _, e := range edges {
		peer := e.Other(user)
		if e.Status != domain.FriendAccepted {
			continue
		}
		if _, ok := blocked[peer]; ok {
			continue
		}
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		out = append(out, peer)
	}
	return out, nil
}

// Incoming lists edges addressed to user with the given status.
func (f *FriendStore) Incoming(ctx context.Context, user domain.UserID, status domain.FriendStatus) ([]domain.FriendEdge, error) {
	var edges []domain.FriendEdge
	err := f.db.WithContext(ctx).
		Where("friend_id = ? AND status = ?", user, status).
		Order("created_at desc").
		Find(&edges).Error
	return edges, err
}

// Outgoing lists edges created by user with the given status.
func (f *FriendStore) Outgoing(ctx context.Context, user domain.UserID, status domain.FriendStatus) ([]domain.FriendEdge, error) {
	var edges []domain.FriendEdge
	err := f.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", user, status).
		Order("created_at desc").
		Find(&edges).Error
	return edges, err
}
