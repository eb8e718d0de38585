package service_test

import (
	"context"
	"errors"
	"testing"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/service"
)

func TestGroupAdministration(t *testing.T) {
	e := setupService(t, "owner", "admin", "m", "late")
	ctx := context.Background()

	g, err := e.groups.Create(ctx, "owner", service.GroupInput{Name: " Climbers "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Name != "Climbers" {
		t.Fatalf("name not trimmed: %q", g.Name)
	}
	if ok, _ := e.gate.IsOwner(ctx, "owner", g.ID); !ok {
		t.Fatalf("creator should own the group")
	}

	for _, id := range []string{"admin", "m"} {
		if err := e.groups.AddMember(ctx, "owner", g.ID, id); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := e.groups.AddMember(ctx, "owner", g.ID, "m"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("double add: expected ErrConflict, got %v", err)
	}
	if err := e.groups.AddMember(ctx, "m", g.ID, "late"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member add: expected ErrForbidden, got %v", err)
	}

	if err := e.groups.UpdateMemberRole(ctx, "admin", g.ID, "m", domain.RoleAdmin); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-owner role change: %v", err)
	}
	if err := e.groups.UpdateMemberRole(ctx, "owner", g.ID, "admin", domain.RoleOwner); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("granting owner: %v", err)
	}
	if err := e.groups.UpdateMemberRole(ctx, "owner", g.ID, "admin", domain.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}

	late := e.connect(t, "late")
	if err := e.groups.AddMember(ctx, "admin", g.ID, "late"); err != nil {
		t.Fatalf("admin add: %v", err)
	}
	if len(late.Events(events.NotificationReceived)) != 1 {
		t.Fatalf("added member should get an invite notification")
	}

	if _, err := e.groups.Update(ctx, "m", g.ID, service.GroupInput{Name: "Hijacked"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member update: %v", err)
	}
	if _, err := e.groups.Update(ctx, "admin", g.ID, service.GroupInput{Name: "Boulderers", Description: "v2"}); err != nil {
		t.Fatalf("admin update: %v", err)
	}

	if err := e.groups.RemoveMember(ctx, "admin", g.ID, "owner"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("removing owner: %v", err)
	}
	if err := e.groups.Leave(ctx, "owner", g.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("owner leave: %v", err)
	}
	if err := e.groups.RemoveMember(ctx, "admin", g.ID, "m"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := e.groups.Leave(ctx, "late", g.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := e.groups.Leave(ctx, "late", g.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second leave: %v", err)
	}

	members, err := e.groups.Members(ctx, "owner", g.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner and admin, got %+v", members)
	}
	if _, err := e.groups.Members(ctx, "m", g.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("removed member listing: %v", err)
	}

	// removal keeps history; re-adding reactivates the same row as a plain member
	if err := e.groups.AddMember(ctx, "owner", g.ID, "m"); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	row, _ := e.st.Groups().Member(ctx, g.ID, "m")
	if !row.IsActive || row.LeftAt != nil || row.Role != domain.RoleMember {
		t.Fatalf("reactivated row %+v", row)
	}
}

func TestDeleteGroupDeactivatesMemberships(t *testing.T) {
	e := setupService(t, "owner", "m")
	ctx := context.Background()
	g, err := e.groups.Create(ctx, "owner", service.GroupInput{Name: "Temp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.groups.AddMember(ctx, "owner", g.ID, "m"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := e.groups.Delete(ctx, "m", g.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member delete: %v", err)
	}
	if err := e.groups.Delete(ctx, "owner", g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, id := range []string{"owner", "m"} {
		if ok, _ := e.gate.IsActiveMember(ctx, id, g.ID); ok {
			t.Fatalf("%s still active after delete", id)
		}
	}
	if _, err := e.chat.SendGroup(ctx, "owner", service.SendGroupInput{GroupID: g.ID, Content: "anyone?"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("send to deleted group: %v", err)
	}
	if groups, _ := e.groups.ForUser(ctx, "m"); len(groups) != 0 {
		t.Fatalf("deleted group still listed: %+v", groups)
	}
	if err := e.groups.Delete(ctx, "owner", g.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
