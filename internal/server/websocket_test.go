package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type wsMessage struct {
	Type   string     `json:"type"`
	RunID  api.RunID  `json:"run_id"`
	NodeID api.NodeID `json:"node_id"`
	Data   any        `json:"data"`
}

func TestWebSocketSubscribe(t *testing.T) {
	env := testServer(t)
	env.install(t, linearDoc())

	conn := dialWebSocket(t, env)

	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
		Data: api.ClientSubscription{
			EventTypes: []api.EventType{api.EventNodeCompleted},
		},
	}))

	var ack wsMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Contains(t, ack.Data.(map[string]any), "nodes")

	id, err := env.Engine.StartCurrent(nil, api.TriggerManual)
	require.NoError(t, err)

	var seen []api.NodeID
	for len(seen) < 2 {
		var ev wsMessage
		readJSON(t, conn, &ev)
		assert.Equal(t, string(api.EventNodeCompleted), ev.Type)
		assert.Equal(t, id, ev.RunID)
		seen = append(seen, ev.NodeID)
	}
	assert.Equal(t, []api.NodeID{"start", "double"}, seen)
}

func TestWebSocketSubscribeToRun(t *testing.T) {
	env := testServer(t)
	env.install(t, linearDoc())

	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{Wait: true})
	var st api.RunState
	decode(t, w, &st)

	conn := dialWebSocket(t, env)
	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
		Data: api.ClientSubscription{RunID: st.ID},
	}))

	var ack wsMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, st.ID, ack.RunID)
	data, ok := ack.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(api.RunSuccess), data["status"])
}

func TestWebSocketIgnoresUnknownMessages(t *testing.T) {
	env := testServer(t)
	conn := dialWebSocket(t, env)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("?")))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "other"}))
	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
	}))

	var ack wsMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
}

func dialWebSocket(t *testing.T, env *testServerEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.Router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/engine/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, dst any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(dst))
}
