package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"direct ok", Message{SenderID: "a", ReceiverID: strPtr("b"), Content: "hi"}, false},
		{"group ok", Message{SenderID: "a", GroupID: i64Ptr(1), Content: "hi", Type: MessageEmoji}, false},
		{"both targets", Message{SenderID: "a", ReceiverID: strPtr("b"), GroupID: i64Ptr(1), Content: "hi"}, true},
		{"no target", Message{SenderID: "a", Content: "hi"}, true},
		{"self", Message{SenderID: "a", ReceiverID: strPtr("a"), Content: "hi"}, true},
		{"empty", Message{SenderID: "a", ReceiverID: strPtr("b"), Content: "  "}, true},
		{"media only", Message{SenderID: "a", ReceiverID: strPtr("b"), Type: MessageImage, MediaURL: "http://x/y.png"}, false},
		{"bad type", Message{SenderID: "a", ReceiverID: strPtr("b"), Content: "x", Type: "Sticker"}, true},
		{"too long", Message{SenderID: "a", ReceiverID: strPtr("b"), Content: strings.Repeat("x", MaxContentLength+1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Fatalf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("a", "b") != PairKey("b", "a") {
		t.Fatalf("pair key depends on order")
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleOwner.AtLeast(RoleAdmin) || !RoleAdmin.AtLeast(RoleAdmin) || RoleMember.AtLeast(RoleAdmin) {
		t.Fatalf("role ordering broken")
	}
}

func TestReason(t *testing.T) {
	if got := Reason(fmt.Errorf("%w: blocked", ErrForbidden)); got != ReasonForbidden {
		t.Fatalf("got %q", got)
	}
	if got := Reason(errors.New("boom")); got != ReasonInternal {
		t.Fatalf("got %q", got)
	}
	if Reason(nil) != "" {
		t.Fatalf("nil error should have no reason")
	}
}
