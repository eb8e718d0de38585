package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"okeanchat/internal/authz"
	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
	"okeanchat/internal/jwtsigner"
	"okeanchat/internal/service"
	"okeanchat/internal/store"
	"okeanchat/internal/store/storetest"
	"okeanchat/internal/transport/ws"
)

const secret = "ws-test-secret"

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type harness struct {
	st     *store.Store
	reg    *hub.Registry
	srv    *httptest.Server
	signer *jwtsigner.Signer
}

func newHarness(t *testing.T, users ...domain.UserID) *harness {
	t.Helper()
	st := storetest.New(t)
	storetest.SeedUsers(t, st, users...)

	reg := hub.NewRegistry()
	disp := hub.NewDispatcher(reg, st.Groups())
	presence := hub.NewPresence(disp, st.Users(), st.Friends())
	gate := service.NewGate(st.Friends(), st.Groups())
	notes := service.NewNotifications(st, disp)
	chat := service.NewChat(st, gate, disp, notes)

	h := ws.NewHandler(presence, chat, ws.Options{PingInterval: time.Second, SendBuffer: 64}, func(*http.Request) bool { return true })
	srv := httptest.NewServer(authz.Middleware(authz.NewHMACValidator(secret, ""))(h))
	t.Cleanup(srv.Close)

	signer, err := jwtsigner.New(secret, "")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return &harness{st: st, reg: reg, srv: srv, signer: signer}
}

func (h *harness) dial(t *testing.T, user domain.UserID) *websocket.Conn {
	t.Helper()
	tok, err := h.signer.Sign(user, time.Hour, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?access_token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) waitOnline(t *testing.T, user domain.UserID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.reg.IsOnline(user) {
		if time.Now().After(deadline) {
			t.Fatalf("%s never registered", user)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// await reads frames until one with the given event arrives.
func await(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, action, ref string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(events.Inbound{Action: action, Ref: ref, Data: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestUpgradeRequiresToken(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestDirectMessageRoundTrip(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	storetest.Befriend(t, h.st, "alice", "bob")

	alice := h.dial(t, "alice")
	h.waitOnline(t, "alice")
	bob := h.dial(t, "bob")

	// bob is registered once alice hears about it
	online := await(t, alice, events.StatusChangedEvent)
	var st events.StatusChanged
	_ = json.Unmarshal(online.Data, &st)
	if st.UserID != "bob" || st.Status != string(domain.StatusOnline) {
		t.Fatalf("status = %+v", st)
	}

	send(t, alice, events.ActionSendDirectMessage, "r1", events.SendDirectMessage{ReceiverID: "bob", Content: "hi", Type: "Text"})

	var got events.MessagePayload
	_ = json.Unmarshal(await(t, bob, events.MessageReceived).Data, &got)
	if got.Content != "hi" || got.SenderID != "alice" || got.IsOwnEcho {
		t.Fatalf("bob got %+v", got)
	}

	var echo events.MessagePayload
	_ = json.Unmarshal(await(t, alice, events.MessageReceived).Data, &echo)
	if echo.ID != got.ID || !echo.IsOwnEcho {
		t.Fatalf("echo %+v", echo)
	}

	send(t, bob, events.ActionMarkMessageRead, "", events.MarkMessageRead{MessageID: got.ID})
	var read events.MessageRead
	_ = json.Unmarshal(await(t, alice, events.MessageReadEvent).Data, &read)
	if read.MessageID != got.ID || read.ReaderID != "bob" {
		t.Fatalf("read receipt %+v", read)
	}
}

func TestRejectedActionsReturnErrorEvent(t *testing.T) {
	h := newHarness(t, "alice", "mallory")
	alice := h.dial(t, "alice")

	cases := []struct {
		name   string
		action string
		data   any
		reason string
	}{
		{"unknown action", "fly", map[string]string{}, domain.ReasonInvalidRequest},
		{"not friends", events.ActionSendDirectMessage, events.SendDirectMessage{ReceiverID: "mallory", Content: "x", Type: "Text"}, domain.ReasonForbidden},
		{"empty content", events.ActionSendDirectMessage, events.SendDirectMessage{ReceiverID: "mallory", Type: "Text"}, domain.ReasonInvalidRequest},
		{"not a member", events.ActionJoinGroupChannel, events.GroupChannel{GroupID: 42}, domain.ReasonForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send(t, alice, tc.action, tc.name, tc.data)
			var p events.ErrorPayload
			_ = json.Unmarshal(await(t, alice, events.Error).Data, &p)
			if p.Reason != tc.reason || p.Ref != tc.name {
				t.Fatalf("error payload %+v, want reason %s", p, tc.reason)
			}
		})
	}

	if err := alice.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var p events.ErrorPayload
	_ = json.Unmarshal(await(t, alice, events.Error).Data, &p)
	if p.Reason != domain.ReasonInvalidRequest {
		t.Fatalf("malformed frame reason %q", p.Reason)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := newHarness(t, "alice")
	conn := h.dial(t, "alice")
	h.waitOnline(t, "alice")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.reg.IsOnline("alice") {
		if time.Now().After(deadline) {
			t.Fatal("alice still registered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// the status write follows the registry change under the same lock
	for {
		u, err := h.st.Users().Get(context.Background(), "alice")
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if u.Status == domain.StatusOffline && u.LastSeen != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("user after disconnect: %+v", u)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
