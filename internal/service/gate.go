package service

import (
	"context"
	"errors"
	"fmt"

	"okeanchat/internal/domain"
	"okeanchat/internal/store"
)

type EdgeReader interface {
	Between(ctx context.Context, a, b domain.UserID) ([]domain.FriendEdge, error)
}

type MemberReader interface {
	Member(ctx context.Context, groupID int64, userID domain.UserID) (*domain.GroupMember, error)
}

// Gate answers relationship and membership questions with point-in-time
// reads. Nothing is cached.
type Gate struct {
	edges   EdgeReader
	members MemberReader
}

func NewGate(edges EdgeReader, members MemberReader) *Gate {
	return &Gate{edges: edges, members: members}
}

// CanDirectMessage is true iff an Accepted edge exists between a and b and no
// edge in either direction is Blocked.
func (g *Gate) CanDirectMessage(ctx context.Context, a, b domain.UserID) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	edges, err := g.edges.Between(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("%w: friend lookup: %v", domain.ErrPersistence, err)
	}
	accepted := false
	for _, e := range edges {
		switch e.Status {
		case domain.FriendBlocked:
			return false, nil
		case domain.FriendAccepted:
			accepted = true
		}
	}
	return accepted, nil
}

// Role returns the active role of user in group, or "" when not an active member.
func (g *Gate) Role(ctx context.Context, user domain.UserID, groupID int64) (domain.GroupRole, error) {
	m, err := g.members.Member(ctx, groupID, user)
	if errors.Is(err, store.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: membership lookup: %v", domain.ErrPersistence, err)
	}
	if !m.IsActive {
		return "", nil
	}
	return m.Role, nil
}

func (g *Gate) IsActiveMember(ctx context.Context, user domain.UserID, groupID int64) (bool, error) {
	role, err := g.Role(ctx, user, groupID)
	return role != "", err
}

// IsAdmin is true for Admin and Owner.
func (g *Gate) IsAdmin(ctx context.Context, user domain.UserID, groupID int64) (bool, error) {
	role, err := g.Role(ctx, user, groupID)
	return role.AtLeast(domain.RoleAdmin), err
}

func (g *Gate) IsOwner(ctx context.Context, user domain.UserID, groupID int64) (bool, error) {
	role, err := g.Role(ctx, user, groupID)
	return role == domain.RoleOwner, err
}
