package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/observability/metrics"
)

type StatusStore interface {
	SetStatus(ctx context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) error
	ResetOnline(ctx context.Context, at time.Time) (int64, error)
}

type FriendLister interface {
	AcceptedFriendIDs(ctx context.Context, id domain.UserID) ([]domain.UserID, error)
}

// Presence turns channel lifecycle into Online/Offline transitions. All work
// for one identity (registry change, status write, friend notification) runs
// under that identity's lock, so transitions are applied in order.
type Presence struct {
	reg     *Registry
	disp    *Dispatcher
	users   StatusStore
	friends FriendLister
	locks   *KeyedMutex
	now     func() time.Time
	log     *slog.Logger

	mu sync.RWMutex
	// chosen holds Away or Busy for connected users who picked one.
	chosen map[domain.UserID]domain.UserStatus
}

func NewPresence(disp *Dispatcher, users StatusStore, friends FriendLister) *Presence {
	return &Presence{
		reg:     disp.Registry(),
		disp:    disp,
		users:   users,
		friends: friends,
		locks:   NewKeyedMutex(0),
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default().With("component", "presence"),
		chosen:  make(map[domain.UserID]domain.UserStatus),
	}
}

// Connect registers ch. On the identity's first channel it marks the user
// Online and tells accepted friends.
func (p *Presence) Connect(ctx context.Context, ch Channel) (first bool) {
	unlock := p.locks.Lock(ch.UserID())
	defer unlock()

	if !p.reg.Register(ch) {
		return false
	}
	p.transition(ctx, ch.UserID(), domain.StatusOnline, nil)
	return true
}

// Disconnect unregisters ch. When it was the identity's last channel the
// user goes Offline, LastSeen is stamped and accepted friends are told.
func (p *Presence) Disconnect(ctx context.Context, ch Channel) (last bool) {
	unlock := p.locks.Lock(ch.UserID())
	defer unlock()

	if !p.reg.Unregister(ch) {
		return false
	}
	p.mu.Lock()
	delete(p.chosen, ch.UserID())
	p.mu.Unlock()

	seen := p.now()
	p.transition(ctx, ch.UserID(), domain.StatusOffline, &seen)
	return true
}

// SetStatus switches a connected user between Online, Away and Busy. Offline
// is only reached by closing the last channel.
func (p *Presence) SetStatus(ctx context.Context, id domain.UserID, status domain.UserStatus) error {
	switch status {
	case domain.StatusOnline, domain.StatusAway, domain.StatusBusy:
	default:
		return fmt.Errorf("%w: status must be Online, Away or Busy", domain.ErrInvalidRequest)
	}

	unlock := p.locks.Lock(id)
	defer unlock()

	if !p.reg.IsOnline(id) {
		return fmt.Errorf("%w: %s has no live connection", domain.ErrConflict, id)
	}
	if p.Status(id) == status {
		return nil
	}
	p.mu.Lock()
	if status == domain.StatusOnline {
		delete(p.chosen, id)
	} else {
		p.chosen[id] = status
	}
	p.mu.Unlock()

	p.transition(ctx, id, status, nil)
	return nil
}

func (p *Presence) transition(ctx context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) {
	metrics.PresenceTransitionsTotal.WithLabelValues(string(status)).Inc()

	if err := p.users.SetStatus(ctx, id, status, lastSeen); err != nil {
		p.log.WarnContext(ctx, "presence: status write failed", "user_id", id, "status", status, "error", err)
	}

	notified, err := p.NotifyFriends(ctx, id, status)
	if err != nil {
		p.log.WarnContext(ctx, "presence: friend lookup failed", "user_id", id, "error", err)
		return
	}
	p.log.DebugContext(ctx, "presence transition", "user_id", id, "status", status, "friends_notified", notified)
}

// NotifyFriends pushes status-changed for id to every accepted friend with a
// live channel and returns how many were reached.
func (p *Presence) NotifyFriends(ctx context.Context, id domain.UserID, status domain.UserStatus) (int, error) {
	friends, err := p.friends.AcceptedFriendIDs(ctx, id)
	if err != nil {
		return 0, err
	}
	env := events.Envelope{Event: events.StatusChangedEvent, Data: events.StatusChanged{UserID: id, Status: string(status)}}
	reached := 0
	for _, f := range friends {
		if p.disp.Push(f, env) > 0 {
			reached++
		}
	}
	return reached, nil
}

// Status reports Offline iff the identity has no live channel in this
// process. A connected user is Online unless they chose Away or Busy.
func (p *Presence) Status(id domain.UserID) domain.UserStatus {
	if !p.reg.IsOnline(id) {
		return domain.StatusOffline
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.chosen[id]; ok {
		return s
	}
	return domain.StatusOnline
}

// ResetAll clears stale Online rows left by a previous process.
func (p *Presence) ResetAll(ctx context.Context) (int64, error) {
	return p.users.ResetOnline(ctx, p.now())
}

// Announce pushes the current status of about to the channels of to.
func (p *Presence) Announce(about, to domain.UserID) bool {
	env := events.Envelope{Event: events.StatusChangedEvent, Data: events.StatusChanged{UserID: about, Status: string(p.Status(about))}}
	return p.disp.Push(to, env) > 0
}
