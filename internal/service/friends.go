package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"okeanchat/internal/domain"
	"okeanchat/internal/store"
)

// FriendView is a peer together with the relationship state.
type FriendView struct {
	User   domain.User         `json:"user"`
	Status domain.FriendStatus `json:"status"`
	Online bool                `json:"online"`
}

// Friends implements the friend request state machine:
//
//	none -> Pending -> Accepted | Declined
//	any  -> Blocked (by the blocker) -> none (unblock)
//	Accepted | Pending | Declined -> none (remove)
type Friends struct {
	st       *store.Store
	notes    *Notifications
	presence PresenceView
	log      *slog.Logger
}

// PresenceView is the slice of hub.Presence the friend flows need.
type PresenceView interface {
	Status(id domain.UserID) domain.UserStatus
	Announce(about, to domain.UserID) bool
}

func NewFriends(st *store.Store, notes *Notifications, presence PresenceView) *Friends {
	return &Friends{
		st:       st,
		notes:    notes,
		presence: presence,
		log:      slog.Default().With("component", "friends"),
	}
}

func (f *Friends) online(id domain.UserID) bool {
	return f.presence != nil && f.presence.Status(id) != domain.StatusOffline
}

func (f *Friends) displayName(ctx context.Context, id domain.UserID) string {
	if u, err := f.st.Users().Get(ctx, id); err == nil && u.UserName != "" {
		return u.UserName
	}
	return id
}

// SendRequest opens a Pending edge from -> to. Any live relationship is a
// conflict; a previously declined request may be sent again.
func (f *Friends) SendRequest(ctx context.Context, from, to domain.UserID) (*domain.FriendEdge, error) {
	if to == "" || to == from {
		return nil, invalid("cannot befriend yourself")
	}
	if _, err := f.st.Users().Get(ctx, to); err != nil {
		return nil, translateErr(err, "user")
	}

	var edge *domain.FriendEdge
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		existing, err := tx.Friends().Get(ctx, from, to)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			edge = &domain.FriendEdge{UserID: from, FriendID: to, Status: domain.FriendPending}
			return tx.Friends().Create(ctx, edge)
		case err != nil:
			return err
		case existing.Status == domain.FriendDeclined:
			existing.UserID, existing.FriendID = from, to
			existing.Status = domain.FriendPending
			edge = existing
			return tx.Friends().Save(ctx, edge)
		default:
			return fmt.Errorf("%w: relationship already %s", domain.ErrConflict, existing.Status)
		}
	})
	if err != nil {
		return nil, translateErr(err, "friend request")
	}

	f.notes.emitQuietly(ctx, to,
		fmt.Sprintf("%s sent you a friend request", f.displayName(ctx, from)),
		domain.NotifyFriendRequest,
		domain.Related{UserID: &from})
	return edge, nil
}

// pending returns the Pending edge requester -> recipient.
func (f *Friends) pending(ctx context.Context, tx *store.Store, recipient, requester domain.UserID) (*domain.FriendEdge, error) {
	edge, err := tx.Friends().Get(ctx, recipient, requester)
	if err != nil {
		return nil, err
	}
	if edge.Status != domain.FriendPending || edge.UserID != requester || edge.FriendID != recipient {
		return nil, fmt.Errorf("%w: no pending request from %s", domain.ErrNotFound, requester)
	}
	return edge, nil
}

// Accept turns the Pending request requester -> user into an Accepted edge.
func (f *Friends) Accept(ctx context.Context, user, requester domain.UserID) (*domain.FriendEdge, error) {
	var edge *domain.FriendEdge
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		var err error
		if edge, err = f.pending(ctx, tx, user, requester); err != nil {
			return err
		}
		edge.Status = domain.FriendAccepted
		return tx.Friends().Save(ctx, edge)
	})
	if err != nil {
		return nil, translateErr(err, "friend request")
	}

	f.notes.emitQuietly(ctx, requester,
		fmt.Sprintf("%s accepted your friend request", f.displayName(ctx, user)),
		domain.NotifyFriendRequest,
		domain.Related{UserID: &user})
	if f.presence != nil {
		// new friends learn each other's current status
		f.presence.Announce(user, requester)
		f.presence.Announce(requester, user)
	}
	return edge, nil
}

func (f *Friends) Decline(ctx context.Context, user, requester domain.UserID) error {
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		edge, err := f.pending(ctx, tx, user, requester)
		if err != nil {
			return err
		}
		edge.Status = domain.FriendDeclined
		return tx.Friends().Save(ctx, edge)
	})
	return translateErr(err, "friend request")
}

// Block records user as blocking target, replacing any existing edge.
func (f *Friends) Block(ctx context.Context, user, target domain.UserID) error {
	if target == "" || target == user {
		return invalid("cannot block yourself")
	}
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		edge, err := tx.Friends().Get(ctx, user, target)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return tx.Friends().Create(ctx, &domain.FriendEdge{UserID: user, FriendID: target, Status: domain.FriendBlocked})
		case err != nil:
			return err
		case edge.Status == domain.FriendBlocked && edge.UserID == target:
			// the other side already blocked; keep their row so they stay in control
			return nil
		}
		edge.UserID, edge.FriendID = user, target
		edge.Status = domain.FriendBlocked
		return tx.Friends().Save(ctx, edge)
	})
	return translateErr(err, "friend edge")
}

// Unblock deletes the block row. Only the blocker can lift it.
func (f *Friends) Unblock(ctx context.Context, user, target domain.UserID) error {
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		edge, err := tx.Friends().Get(ctx, user, target)
		if err != nil {
			return err
		}
		if edge.Status != domain.FriendBlocked || edge.UserID != user {
			return fmt.Errorf("%w: %s is not blocked", domain.ErrNotFound, target)
		}
		return tx.Friends().Delete(ctx, edge.ID)
	})
	return translateErr(err, "block")
}

// Remove deletes a friendship or request. Blocks are lifted with Unblock.
func (f *Friends) Remove(ctx context.Context, user, peer domain.UserID) error {
	err := f.st.WithTx(ctx, func(tx *store.Store) error {
		edge, err := tx.Friends().Get(ctx, user, peer)
		if err != nil {
			return err
		}
		if edge.Status == domain.FriendBlocked {
			return fmt.Errorf("%w: relationship is blocked", domain.ErrForbidden)
		}
		return tx.Friends().Delete(ctx, edge.ID)
	})
	return translateErr(err, "friend edge")
}

// Status returns the stored relationship state, or "" when there is none.
func (f *Friends) Status(ctx context.Context, user, peer domain.UserID) (domain.FriendStatus, error) {
	edge, err := f.st.Friends().Get(ctx, user, peer)
	if errors.Is(err, store.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", translateErr(err, "friend edge")
	}
	return edge.Status, nil
}

func (f *Friends) List(ctx context.Context, user domain.UserID) ([]FriendView, error) {
	ids, err := f.st.Friends().AcceptedFriendIDs(ctx, user)
	if err != nil {
		return nil, translateErr(err, "friends")
	}
	return f.views(ctx, ids, domain.FriendAccepted)
}

// Online lists the accepted friends that currently hold a live connection.
func (f *Friends) Online(ctx context.Context, user domain.UserID) ([]FriendView, error) {
	ids, err := f.st.Friends().AcceptedFriendIDs(ctx, user)
	if err != nil {
		return nil, translateErr(err, "friends")
	}
	live := ids[:0]
	for _, id := range ids {
		if f.online(id) {
			live = append(live, id)
		}
	}
	return f.views(ctx, live, domain.FriendAccepted)
}

// Requests lists users with a pending request addressed to user.
func (f *Friends) Requests(ctx context.Context, user domain.UserID) ([]FriendView, error) {
	edges, err := f.st.Friends().Incoming(ctx, user, domain.FriendPending)
	if err != nil {
		return nil, translateErr(err, "friend requests")
	}
	ids := make([]domain.UserID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	return f.views(ctx, ids, domain.FriendPending)
}

// Blocked lists users that user has blocked.
func (f *Friends) Blocked(ctx context.Context, user domain.UserID) ([]FriendView, error) {
	edges, err := f.st.Friends().Outgoing(ctx, user, domain.FriendBlocked)
	if err != nil {
		return nil, translateErr(err, "blocked users")
	}
	ids := make([]domain.UserID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FriendID)
	}
	return f.views(ctx, ids, domain.FriendBlocked)
}

func (f *Friends) views(ctx context.Context, ids []domain.UserID, status domain.FriendStatus) ([]FriendView, error) {
	users, err := f.st.Users().GetMany(ctx, ids)
	if err != nil {
		return nil, translateErr(err, "users")
	}
	out := make([]FriendView, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			u = domain.User{ID: id, UserName: id, Status: domain.StatusOffline}
		}
		out = append(out, FriendView{User: u, Status: status, Online: f.online(id)})
	}
	return out, nil
}
