package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/store"
	"okeanchat/internal/store/storetest"
)

func TestFriendEdgeUniquePerUnorderedPair(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	storetest.SeedUsers(t, st, "a", "b")

	if err := st.Friends().Create(ctx, &domain.FriendEdge{UserID: "a", FriendID: "b", Status: domain.FriendPending}); err != nil {
		t.Fatalf("first edge: %v", err)
	}
	err := st.Friends().Create(ctx, &domain.FriendEdge{UserID: "b", FriendID: "a", Status: domain.FriendPending})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reversed pair, got %v", err)
	}

	edge, err := st.Friends().Get(ctx, "b", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if edge.UserID != "a" || edge.FriendID != "b" {
		t.Fatalf("direction lost: %+v", edge)
	}
}

func TestAcceptedFriendIDsSkipsPendingAndBlocked(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	storetest.SeedUsers(t, st, "a", "b", "c", "d")
	storetest.Befriend(t, st, "a", "b")
	storetest.Befriend(t, st, "c", "a")
	storetest.Edge(t, st, "a", "d", domain.FriendPending)

	ids, err := st.Friends().AcceptedFriendIDs(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("unexpected friends: %v", ids)
	}
}

func TestUserStatusAndReset(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	storetest.SeedUsers(t, st, "a", "b")

	if err := st.Users().SetStatus(ctx, "a", domain.StatusOnline, nil); err != nil {
		t.Fatalf("set status: %v", err)
	}
	u, _ := st.Users().Get(ctx, "a")
	if u.Status != domain.StatusOnline || u.LastSeen != nil {
		t.Fatalf("unexpected user after online: %+v", u)
	}

	n, err := st.Users().ResetOnline(ctx, time.Now().UTC())
	if err != nil || n != 1 {
		t.Fatalf("reset: n=%d err=%v", n, err)
	}
	u, _ = st.Users().Get(ctx, "a")
	if u.Status != domain.StatusOffline || u.LastSeen == nil {
		t.Fatalf("unexpected user after reset: %+v", u)
	}

	if err := st.Users().SetStatus(ctx, "ghost", domain.StatusOnline, nil); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMessageHistoryPagingOldestFirst(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	storetest.SeedUsers(t, st, "a", "b")

	b := "b"
	for _, body := range []string{"1", "2", "3", "4", "5"} {
		msg := &domain.Message{SenderID: "a", ReceiverID: &b, Content: body, Type: domain.MessageText}
		if err := st.Messages().Create(ctx, msg); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page1, err := st.Messages().Direct(ctx, "b", "a", 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 2 || page1[0].Content != "4" || page1[1].Content != "5" {
		t.Fatalf("unexpected page 1: %+v", page1)
	}
	page3, _ := st.Messages().Direct(ctx, "a", "b", 3, 2)
	if len(page3) != 1 || page3[0].Content != "1" {
		t.Fatalf("unexpected page 3: %+v", page3)
	}
}

func TestClientMsgIDUniquePerSender(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	b := "b"
	token := "tok-1"

	first := &domain.Message{SenderID: "a", ReceiverID: &b, Content: "x", Type: domain.MessageText, ClientMsgID: &token}
	if err := st.Messages().Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.Message{SenderID: "a", ReceiverID: &b, Content: "x", Type: domain.MessageText, ClientMsgID: &token}
	if err := st.Messages().Create(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	other := &domain.Message{SenderID: "b", ReceiverID: strPtr("a"), Content: "x", Type: domain.MessageText, ClientMsgID: &token}
	if err := st.Messages().Create(ctx, other); err != nil {
		t.Fatalf("same token from another sender should be accepted: %v", err)
	}

	got, err := st.Messages().GetByClientID(ctx, "a", token)
	if err != nil || got.ID != first.ID {
		t.Fatalf("lookup by client id: %+v %v", got, err)
	}
}

func TestNotificationOwnership(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	note := &domain.Notification{UserID: "a", Message: "hi", Type: domain.NotifyInfo}
	if err := st.Notifications().Create(ctx, note); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Notifications().MarkRead(ctx, "b", note.ID, time.Now()); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("foreign mark read should be not found, got %v", err)
	}
	if err := st.Notifications().Delete(ctx, "b", note.ID); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("foreign delete should be not found, got %v", err)
	}
	if err := st.Notifications().MarkRead(ctx, "a", note.ID, time.Now()); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n, _ := st.Notifications().UnreadCount(ctx, "a"); n != 0 {
		t.Fatalf("unread = %d", n)
	}
}

func TestGroupMembershipQueries(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	g := storetest.Group(t, st, "owner", "m1", "m2")

	m2, err := st.Groups().Member(ctx, g.ID, "m2")
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	m2.IsActive = false
	if err := st.Groups().SaveMember(ctx, m2); err != nil {
		t.Fatalf("save member: %v", err)
	}

	ids, err := st.Groups().ActiveMemberIDs(ctx, g.ID)
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected owner and m1, got %v", ids)
	}

	groups, err := st.Groups().ForUser(ctx, "m1")
	if err != nil || len(groups) != 1 {
		t.Fatalf("for user: %v %v", groups, err)
	}
	if groups, _ := st.Groups().ForUser(ctx, "m2"); len(groups) != 0 {
		t.Fatalf("inactive member should see no groups: %v", groups)
	}
}

func TestRecallAndDeleteInterleaved(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	storetest.SeedUsers(t, st, "a", "b")

	msg := &domain.Message{SenderID: "a", ReceiverID: strPtr("b"), Content: "secret", Type: domain.MessageFile,
		MediaURL: "http://files/1", FileName: "plan.txt", FileSize: 42}
	if err := st.Messages().Create(ctx, msg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Messages().MarkRead(ctx, msg.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	// the deleting request loaded its copy before the recall landed
	stale, err := st.Messages().Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	changed, err := st.Messages().Recall(ctx, msg.ID)
	if err != nil || !changed {
		t.Fatalf("recall: changed=%v err=%v", changed, err)
	}
	if err := st.Messages().SoftDelete(ctx, stale.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := st.Messages().Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Content != domain.RecalledContent || !got.IsRecalled || got.MediaURL != "" || got.FileName != "" || got.FileSize != 0 {
		t.Fatalf("recall undone by delete: %+v", got)
	}
	if !got.IsDeleted || !got.IsRead || got.ReadAt == nil {
		t.Fatalf("flags lost: %+v", got)
	}

	if changed, err := st.Messages().Recall(ctx, msg.ID); err != nil || changed {
		t.Fatalf("second recall: changed=%v err=%v", changed, err)
	}
}

func TestGroupReadMarker(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	g := storetest.Group(t, st, "owner", "m1")

	if top, err := st.Messages().MaxGroupID(ctx, g.ID); err != nil || top != 0 {
		t.Fatalf("empty group top: %d %v", top, err)
	}
	for _, from := range []string{"owner", "owner", "m1", "owner"} {
		msg := &domain.Message{SenderID: from, GroupID: &g.ID, Content: "hi", Type: domain.MessageText}
		if err := st.Messages().Create(ctx, msg); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stale, err := st.Groups().Member(ctx, g.ID, "m1")
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	n, err := st.Messages().UnreadGroup(ctx, g.ID, "m1", stale.LastReadMessageID)
	if err != nil || n != 3 {
		t.Fatalf("unread before read: %d %v", n, err)
	}

	top, err := st.Messages().MaxGroupID(ctx, g.ID)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if moved, err := st.Groups().AdvanceReadMarker(ctx, g.ID, "m1", top); err != nil || !moved {
		t.Fatalf("advance: moved=%v err=%v", moved, err)
	}
	if moved, _ := st.Groups().AdvanceReadMarker(ctx, g.ID, "m1", top-1); moved {
		t.Fatalf("marker moved backwards")
	}

	// a membership save from an older copy keeps the marker
	stale.Role = domain.RoleAdmin
	if err := st.Groups().SaveMember(ctx, stale); err != nil {
		t.Fatalf("save member: %v", err)
	}
	m1, _ := st.Groups().Member(ctx, g.ID, "m1")
	if m1.LastReadMessageID != top || m1.Role != domain.RoleAdmin {
		t.Fatalf("unexpected member %+v", m1)
	}
	if n, _ := st.Messages().UnreadGroup(ctx, g.ID, "m1", m1.LastReadMessageID); n != 0 {
		t.Fatalf("unread after read = %d", n)
	}

	last, err := st.Messages().LastGroup(ctx, g.ID)
	if err != nil || last.ID != top {
		t.Fatalf("last group message: %+v %v", last, err)
	}
}

func strPtr(s string) *string { return &s }
