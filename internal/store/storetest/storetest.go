// Package storetest opens throwaway sqlite-backed stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"okeanchat/internal/domain"
	"okeanchat/internal/store"
	"okeanchat/pkg/db"
)

// New returns a migrated store over a private in-memory database.
func New(t testing.TB) *store.Store {
	t.Helper()
	gdb, err := db.OpenGorm(db.Config{
		Driver: db.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		// one connection keeps the shared in-memory db free of table lock errors
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

// SeedUsers inserts Offline users with the given ids.
func SeedUsers(t testing.TB, st *store.Store, ids ...domain.UserID) {
	t.Helper()
	for _, id := range ids {
		if err := st.Users().Ensure(context.Background(), &domain.User{ID: id, UserName: "user-" + id}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

// Befriend stores an Accepted edge from a to b.
func Befriend(t testing.TB, st *store.Store, a, b domain.UserID) {
	t.Helper()
	Edge(t, st, a, b, domain.FriendAccepted)
}

func Edge(t testing.TB, st *store.Store, a, b domain.UserID, status domain.FriendStatus) {
	t.Helper()
	if err := st.Friends().Create(context.Background(), &domain.FriendEdge{UserID: a, FriendID: b, Status: status}); err != nil {
		t.Fatalf("create edge %s->%s: %v", a, b, err)
	}
}

// Group creates an active group owned by owner with the given extra members.
func Group(t testing.TB, st *store.Store, owner domain.UserID, members ...domain.UserID) *domain.Group {
	t.Helper()
	ctx := context.Background()
	g := &domain.Group{Name: "group", OwnerID: owner, IsActive: true}
	if err := st.Groups().Create(ctx, g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := st.Groups().AddMember(ctx, &domain.GroupMember{GroupID: g.ID, UserID: owner, Role: domain.RoleOwner, IsActive: true}); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	for _, m := range members {
		if err := st.Groups().AddMember(ctx, &domain.GroupMember{GroupID: g.ID, UserID: m, Role: domain.RoleMember, IsActive: true}); err != nil {
			t.Fatalf("add member %s: %v", m, err)
		}
	}
	return g
}
