package service_test

import (
	"context"
	"testing"

	"okeanchat/internal/domain"
	"okeanchat/internal/hub"
	"okeanchat/internal/hub/hubtest"
	"okeanchat/internal/service"
	"okeanchat/internal/store"
	"okeanchat/internal/store/storetest"
)

type env struct {
	st       *store.Store
	reg      *hub.Registry
	disp     *hub.Dispatcher
	presence *hub.Presence
	gate     *service.Gate
	notes    *service.Notifications
	chat     *service.Chat
	friends  *service.Friends
	groups   *service.Groups
}

func setupService(t *testing.T, users ...domain.UserID) *env {
	t.Helper()
	st := storetest.New(t)
	storetest.SeedUsers(t, st, users...)

	reg := hub.NewRegistry()
	disp := hub.NewDispatcher(reg, st.Groups())
	presence := hub.NewPresence(disp, st.Users(), st.Friends())
	gate := service.NewGate(st.Friends(), st.Groups())
	notes := service.NewNotifications(st, disp)

	return &env{
		st:       st,
		reg:      reg,
		disp:     disp,
		presence: presence,
		gate:     gate,
		notes:    notes,
		chat:     service.NewChat(st, gate, disp, notes),
		friends:  service.NewFriends(st, notes, presence),
		groups:   service.NewGroups(st, gate, notes, presence),
	}
}

// connect opens a recording channel for user through the presence tracker.
func (e *env) connect(t *testing.T, user domain.UserID) *hubtest.Channel {
	t.Helper()
	ch := hubtest.NewChannel(user)
	e.presence.Connect(context.Background(), ch)
	return ch
}

func (e *env) countMessages(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.st.DB.Model(&domain.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}
