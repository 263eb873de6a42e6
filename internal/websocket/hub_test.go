package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gator-chat/internal/engine"
	"gator-chat/internal/models"
	"gator-chat/internal/notify"
	"gator-chat/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceCall struct {
	user   string
	online bool
}

type fakePresence struct {
	mu    sync.Mutex
	calls []presenceCall
}

func (f *fakePresence) SetPresence(identityID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, presenceCall{identityID, online})
	return nil
}

func (f *fakePresence) snapshot() []presenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenceCall(nil), f.calls...)
}

type fakeSubs struct {
	mu      sync.Mutex
	dropped []string
}

func (f *fakeSubs) Subscribe(connID, subID string, identity *models.Identity, q engine.Query, push func(notify.Update)) error {
	if err := q.Validate(); err != nil {
		return err
	}
	push(notify.Update{SubscriptionID: subID, Data: json.RawMessage(`{"kind":"` + string(q.Kind) + `"}`)})
	return nil
}

func (f *fakeSubs) Unsubscribe(connID, subID string) {}

func (f *fakeSubs) Drop(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, connID)
}

func startHub(t *testing.T) (*Hub, *fakePresence, *httptest.Server) {
	t.Helper()
	presence := &fakePresence{}
	hub := NewHub(presence, &fakeSubs{}, nil, utils.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var identity *models.Identity
		if user := r.URL.Query().Get("user"); user != "" {
			identity = &models.Identity{Subject: user}
		}
		client := NewClient(hub, conn, identity)
		if !hub.Join(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, presence, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestPresenceFollowsConnections(t *testing.T) {
	hub, presence, srv := startHub(t)

	first := dial(t, srv, "alice")
	second := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return hub.Connections("alice") == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []presenceCall{{"alice", true}}, presence.snapshot())

	first.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []presenceCall{{"alice", true}}, presence.snapshot(), "still online with one connection left")

	second.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []presenceCall{{"alice", true}, {"alice", false}}, presence.snapshot())
}

func TestAnonymousConnectionSkipsPresence(t *testing.T) {
	hub, presence, srv := startHub(t)

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Total() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Total() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, presence.snapshot())
}

func TestSubscribeFrames(t *testing.T) {
	_, _, srv := startHub(t)
	conn := dial(t, srv, "alice")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: FrameSubscribe, ID: "s1", Query: &engine.Query{Kind: engine.QueryUsers}}))
	var frame ServerFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameResult, frame.Type)
	assert.Equal(t, "s1", frame.ID)
	assert.JSONEq(t, `{"kind":"users"}`, string(frame.Data))

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: FrameSubscribe, ID: "s2", Query: &engine.Query{Kind: engine.QueryMessages}}))
	frame = ServerFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, "s2", frame.ID)
	assert.Equal(t, utils.ErrValidation, frame.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame = ServerFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Empty(t, frame.ID)
}
