package service_test

import (
	"context"
	"errors"
	"testing"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
)

func TestEmitPersistsThenPushes(t *testing.T) {
	e := setupService(t, "a")
	ctx := context.Background()
	ch := e.connect(t, "a")

	groupID := int64(4)
	note, err := e.notes.Emit(ctx, "a", "welcome", domain.NotifySystem, domain.Related{GroupID: &groupID})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if note.ID == 0 || note.IsRead || note.RelatedGroupID == nil || *note.RelatedGroupID != 4 {
		t.Fatalf("unexpected notification %+v", note)
	}
	got := ch.Events(events.NotificationReceived)
	if len(got) != 1 {
		t.Fatalf("pushed = %d", len(got))
	}
	if p := got[0].Data.(events.NotificationPayload); p.ID != note.ID || p.Message != "welcome" || p.Type != "System" {
		t.Fatalf("payload %+v", p)
	}
}

func TestEmitOfflineSurfacesThroughPull(t *testing.T) {
	e := setupService(t, "a")
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := e.notes.Emit(ctx, "a", text, "", domain.Related{}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if n, _ := e.notes.UnreadCount(ctx, "a"); n != 3 {
		t.Fatalf("unread = %d", n)
	}
	list, err := e.notes.List(ctx, "a", 1, 2)
	if err != nil || len(list) != 2 || list[0].Message != "three" || list[0].Type != domain.NotifyInfo {
		t.Fatalf("list: %+v %v", list, err)
	}

	if err := e.notes.MarkRead(ctx, "a", list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ := e.notes.Unread(ctx, "a")
	if len(unread) != 2 {
		t.Fatalf("unread list = %d", len(unread))
	}
	if n, err := e.notes.MarkAllRead(ctx, "a"); err != nil || n != 2 {
		t.Fatalf("mark all: %d %v", n, err)
	}
	if err := e.notes.Delete(ctx, "b", list[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := e.notes.Delete(ctx, "a", list[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestEmitValidation(t *testing.T) {
	e := setupService(t)
	if _, err := e.notes.Emit(context.Background(), "", "x", domain.NotifyInfo, domain.Related{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
