package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okeanchat/internal/domain"
	"okeanchat/internal/dto"
	"okeanchat/internal/events"
	"okeanchat/internal/hub/hubtest"
	"okeanchat/internal/service"
	"okeanchat/internal/store/storetest"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// dialRouter upgrades through the full middleware stack of the router.
func (a *api) dialRouter(srv *httptest.Server, user domain.UserID) *websocket.Conn {
	a.t.Helper()
	tok, err := a.signer.Sign(user, time.Hour, map[string]any{"name": "Name " + user})
	require.NoError(a.t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=" + tok
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(a.t, err)
	assert.Equal(a.t, http.StatusSwitchingProtocols, resp.StatusCode)
	a.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestWebSocketUpgradeThroughRouter(t *testing.T) {
	a := newAPI(t, "alice", "bob")
	storetest.Befriend(t, a.st, "alice", "bob")
	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)

	alice := a.dialRouter(srv, "alice")
	require.Eventually(t, func() bool { return a.reg.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)
	a.dialRouter(srv, "bob")

	var changed events.StatusChanged
	require.NoError(t, json.Unmarshal(readEvent(t, alice, events.StatusChangedEvent).Data, &changed))
	assert.Equal(t, "bob", changed.UserID)
	assert.Equal(t, string(domain.StatusOnline), changed.Status)

	raw, err := json.Marshal(events.SendDirectMessage{ReceiverID: "bob", Content: "over the stack", Type: "Text"})
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(events.Inbound{Action: events.ActionSendDirectMessage, Ref: "r1", Data: raw}))

	var echo events.MessagePayload
	require.NoError(t, json.Unmarshal(readEvent(t, alice, events.MessageReceived).Data, &echo))
	assert.True(t, echo.IsOwnEcho)
	assert.Equal(t, "over the stack", echo.Content)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPresenceStatusUpdate(t *testing.T) {
	a := newAPI(t, "alice", "bob")
	storetest.Befriend(t, a.st, "alice", "bob")

	rec := a.do("alice", http.MethodPut, "/api/presence/status", `{"status":"Away"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	ctx := context.Background()
	bob := hubtest.NewChannel("bob")
	a.presence.Connect(ctx, bob)
	a.presence.Connect(ctx, hubtest.NewChannel("alice"))

	rec = a.do("alice", http.MethodPut, "/api/presence/status", `{"status":"Offline"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("alice", http.MethodPut, "/api/presence/status", `{"status":"Away"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(domain.StatusAway), decode[dto.StatusResponse](t, rec).Status)

	rec = a.do("bob", http.MethodGet, "/api/presence/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.StatusAway), decode[dto.StatusResponse](t, rec).Status)

	frames := bob.Events(events.StatusChangedEvent)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1].Data.(events.StatusChanged)
	assert.Equal(t, "alice", last.UserID)
	assert.Equal(t, string(domain.StatusAway), last.Status)

	rec = a.do("bob", http.MethodGet, "/api/friends/online", "")
	require.Equal(t, http.StatusOK, rec.Code)
	online := decode[[]service.FriendView](t, rec)
	require.Len(t, online, 1)
	assert.Equal(t, "alice", online[0].User.ID)
}
