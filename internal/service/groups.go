package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/store"
)

type GroupInput struct {
	Name        string
	Description string
	Avatar      string
}

type MemberView struct {
	User     domain.User      `json:"user"`
	Role     domain.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joinedAt"`
	Online   bool             `json:"online"`
}

// Groups administers groups and memberships. Memberships are never deleted;
// leaving and removal flip IsActive, and the owner's row stays active until
// the group itself is deleted.
type Groups struct {
	st       *store.Store
	gate     *Gate
	notes    *Notifications
	presence PresenceView
	now      func() time.Time
	log      *slog.Logger
}

func NewGroups(st *store.Store, gate *Gate, notes *Notifications, presence PresenceView) *Groups {
	return &Groups{
		st:       st,
		gate:     gate,
		notes:    notes,
		presence: presence,
		now:      func() time.Time { return time.Now().UTC() },
		log:      slog.Default().With("component", "groups"),
	}
}

func (in GroupInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalid("group name is required")
	}
	if len(name) > 100 {
		return invalid("group name too long")
	}
	return nil
}

// Create stores the group and its owner membership together.
func (g *Groups) Create(ctx context.Context, owner domain.UserID, in GroupInput) (*domain.Group, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := g.now()
	group := &domain.Group{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Avatar:      in.Avatar,
		OwnerID:     owner,
		IsActive:    true,
		CreatedAt:   now,
	}
	err := g.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Groups().Create(ctx, group); err != nil {
			return err
		}
		return tx.Groups().AddMember(ctx, &domain.GroupMember{
			GroupID:  group.ID,
			UserID:   owner,
			Role:     domain.RoleOwner,
			IsActive: true,
			JoinedAt: now,
		})
	})
	if err != nil {
		return nil, translateErr(err, "group")
	}
	return group, nil
}

func (g *Groups) activeGroup(ctx context.Context, st *store.Store, groupID int64) (*domain.Group, error) {
	group, err := st.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
	}
	return group, nil
}

func (g *Groups) Get(ctx context.Context, user domain.UserID, groupID int64) (*domain.Group, error) {
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return nil, translateErr(err, "group")
	}
	member, err := g.gate.IsActiveMember(ctx, user, groupID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, forbidden("not a member of group %d", groupID)
	}
	return group, nil
}

func (g *Groups) requireAdmin(ctx context.Context, user domain.UserID, groupID int64) error {
	ok, err := g.gate.IsAdmin(ctx, user, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden("admin role required in group %d", groupID)
	}
	return nil
}

// Update edits name and description. Admins and the owner may update.
func (g *Groups) Update(ctx context.Context, user domain.UserID, groupID int64, in GroupInput) (*domain.Group, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return nil, translateErr(err, "group")
	}
	if err := g.requireAdmin(ctx, user, groupID); err != nil {
		return nil, err
	}
	group.Name = strings.TrimSpace(in.Name)
	group.Description = in.Description
	if in.Avatar != "" {
		group.Avatar = in.Avatar
	}
	if err := g.st.Groups().Save(ctx, group); err != nil {
		return nil, translateErr(err, "group")
	}
	return group, nil
}

// Delete deactivates the group and every membership. Owner only.
func (g *Groups) Delete(ctx context.Context, user domain.UserID, groupID int64) error {
	err := g.st.WithTx(ctx, func(tx *store.Store) error {
		group, err := tx.Groups().GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if !group.IsActive {
			return fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
		}
		if group.OwnerID != user {
			return forbidden("only the owner can delete group %d", groupID)
		}
		group.IsActive = false
		if err := tx.Groups().Save(ctx, group); err != nil {
			return err
		}
		return tx.Groups().DeactivateMembers(ctx, groupID, g.now())
	})
	return translateErr(err, "group")
}

// AddMember adds or reactivates newMember as a plain member. Admin only.
func (g *Groups) AddMember(ctx context.Context, user domain.UserID, groupID int64, newMember domain.UserID) error {
	if newMember == "" {
		return invalid("member id is required")
	}
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return translateErr(err, "group")
	}
	if err := g.requireAdmin(ctx, user, groupID); err != nil {
		return err
	}
	if _, err := g.st.Users().Get(ctx, newMember); err != nil {
		return translateErr(err, "user")
	}

	err = g.st.WithTx(ctx, func(tx *store.Store) error {
		// history from before the join does not count as unread
		seen, err := tx.Messages().MaxGroupID(ctx, groupID)
		if err != nil {
			return err
		}
		m, err := tx.Groups().Member(ctx, groupID, newMember)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return tx.Groups().AddMember(ctx, &domain.GroupMember{
				GroupID:           groupID,
				UserID:            newMember,
				Role:              domain.RoleMember,
				IsActive:          true,
				JoinedAt:          g.now(),
				LastReadMessageID: seen,
			})
		case err != nil:
			return err
		case m.IsActive:
			return fmt.Errorf("%w: %s is already a member", domain.ErrConflict, newMember)
		}
		m.IsActive = true
		m.Role = domain.RoleMember
		m.JoinedAt = g.now()
		m.LeftAt = nil
		if err := tx.Groups().SaveMember(ctx, m); err != nil {
			return err
		}
		_, err = tx.Groups().AdvanceReadMarker(ctx, groupID, newMember, seen)
		return err
	})
	if err != nil {
		return translateErr(err, "membership")
	}

	g.notes.emitQuietly(ctx, newMember,
		fmt.Sprintf("You were added to %s", group.Name),
		domain.NotifyGroupInvite,
		domain.Related{UserID: &user, GroupID: &groupID})
	return nil
}

func (g *Groups) deactivate(ctx context.Context, groupID int64, member domain.UserID) error {
	return g.st.WithTx(ctx, func(tx *store.Store) error {
		m, err := tx.Groups().Member(ctx, groupID, member)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return fmt.Errorf("%w: %s is not a member", domain.ErrNotFound, member)
		}
		at := g.now()
		m.IsActive = false
		m.LeftAt = &at
		return tx.Groups().SaveMember(ctx, m)
	})
}

// RemoveMember deactivates a member. Admin only; the owner cannot be removed.
func (g *Groups) RemoveMember(ctx context.Context, user domain.UserID, groupID int64, member domain.UserID) error {
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return translateErr(err, "group")
	}
	if err := g.requireAdmin(ctx, user, groupID); err != nil {
		return err
	}
	if member == group.OwnerID {
		return forbidden("the owner cannot be removed")
	}
	return translateErr(g.deactivate(ctx, groupID, member), "membership")
}

// Leave deactivates the caller's membership. The owner must delete the group instead.
func (g *Groups) Leave(ctx context.Context, user domain.UserID, groupID int64) error {
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return translateErr(err, "group")
	}
	if user == group.OwnerID {
		return forbidden("the owner cannot leave; delete the group instead")
	}
	return translateErr(g.deactivate(ctx, groupID, user), "membership")
}

// UpdateMemberRole switches a member between Member and Admin. Owner only.
func (g *Groups) UpdateMemberRole(ctx context.Context, user domain.UserID, groupID int64, member domain.UserID, role domain.GroupRole) error {
	if role != domain.RoleMember && role != domain.RoleAdmin {
		return invalid("role must be Member or Admin")
	}
	group, err := g.activeGroup(ctx, g.st, groupID)
	if err != nil {
		return translateErr(err, "group")
	}
	if group.OwnerID != user {
		return forbidden("only the owner can change roles")
	}
	if member == group.OwnerID {
		return forbidden("the owner's role cannot change")
	}
	err = g.st.WithTx(ctx, func(tx *store.Store) error {
		m, err := tx.Groups().Member(ctx, groupID, member)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return fmt.Errorf("%w: %s is not a member", domain.ErrNotFound, member)
		}
		m.Role = role
		return tx.Groups().SaveMember(ctx, m)
	})
	return translateErr(err, "membership")
}

// Members lists active members. Only members may look.
func (g *Groups) Members(ctx context.Context, user domain.UserID, groupID int64) ([]MemberView, error) {
	if _, err := g.Get(ctx, user, groupID); err != nil {
		return nil, err
	}
	members, err := g.st.Groups().ActiveMembers(ctx, groupID)
	if err != nil {
		return nil, translateErr(err, "members")
	}
	ids := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := g.st.Users().GetMany(ctx, ids)
	if err != nil {
		return nil, translateErr(err, "users")
	}
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		u, ok := users[m.UserID]
		if !ok {
			u = domain.User{ID: m.UserID, UserName: m.UserID, Status: domain.StatusOffline}
		}
		online := g.presence != nil && g.presence.Status(m.UserID) != domain.StatusOffline
		out = append(out, MemberView{User: u, Role: m.Role, JoinedAt: m.JoinedAt, Online: online})
	}
	return out, nil
}

// ForUser lists the active groups the user belongs to.
func (g *Groups) ForUser(ctx context.Context, user domain.UserID) ([]domain.Group, error) {
	groups, err := g.st.Groups().ForUser(ctx, user)
	return groups, translateErr(err, "groups")
}
