package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/davidpro08/web15-ipconfig/internal/server"
	"github.com/davidpro08/web15-ipconfig/pkg/config"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	cfg := &config.Config{
		Server:    config.ServerConfig{Address: ":0"},
		Transport: config.TransportConfig{ReadTimeout: 30 * time.Second},
		Log:       config.LogConfig{Level: "error"},
	}
	app := server.NewApp(logger, context.Background(), cfg)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/workspace"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

// readUntil reads frames, discarding everything before the wanted event.
func readUntil(t *testing.T, conn *websocket.Conn, event string) envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var env envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == event {
			return env
		}
	}
}

func joinMsg(roomID, userID string) string {
	return fmt.Sprintf(`{"event":"user:join","payload":{"workspaceId":%q,"user":{"id":%q,"nickname":"n-%s","color":"#000"}}}`, roomID, userID, userID)
}

func TestHealthz(t *testing.T) {
	srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWorkspaceEndToEnd(t *testing.T) {
	srv := newTestApp(t)
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	// u1 joins and receives its own roster
	send(t, c1, joinMsg("w1", "u1"))
	joined := readUntil(t, c1, "user:joined")
	assert.Equal(t, int64(1), gjson.GetBytes(joined.Payload, "allUsers.#").Int())

	// u2 joins; both see the two-user roster
	send(t, c2, joinMsg("w1", "u2"))
	joined = readUntil(t, c2, "user:joined")
	assert.Equal(t, int64(2), gjson.GetBytes(joined.Payload, "allUsers.#").Int())
	joined = readUntil(t, c1, "user:joined")
	assert.Equal(t, int64(2), gjson.GetBytes(joined.Payload, "allUsers.#").Int())

	// u1 creates a widget; both receive the broadcast, sender included
	send(t, c1, `{"event":"widget:create","payload":{"widgetId":"a","type":"TECH_STACK","data":{"x":0,"y":0,"width":10,"height":10,"zIndex":1,"content":{"widgetType":"TECH_STACK","selectedItems":["React"]}}}}`)
	for _, conn := range []*websocket.Conn{c1, c2} {
		created := readUntil(t, conn, "widget:created")
		assert.Equal(t, "a", gjson.GetBytes(created.Payload, "widgetId").String())
		assert.Equal(t, "React", gjson.GetBytes(created.Payload, "data.content.selectedItems.0").String())
	}

	// u2 moves x only; the merge keeps everything else
	send(t, c2, `{"event":"widget:update","payload":{"widgetId":"a","data":{"x":50}}}`)
	for _, conn := range []*websocket.Conn{c1, c2} {
		updated := readUntil(t, conn, "widget:updated")
		assert.Equal(t, float64(50), gjson.GetBytes(updated.Payload, "data.x").Float())
		assert.Equal(t, float64(0), gjson.GetBytes(updated.Payload, "data.y").Float())
		assert.Equal(t, "React", gjson.GetBytes(updated.Payload, "data.content.selectedItems.0").String())
	}

	// u2 asks for the snapshot; the reply is point-to-point
	send(t, c2, `{"event":"widget:load_all","payload":{}}`)
	list := readUntil(t, c2, "widget:list")
	assert.Equal(t, int64(1), gjson.GetBytes(list.Payload, "widgets.#").Int())

	// cursor move echoes to the sender too
	send(t, c1, `{"event":"cursor:move","payload":{"userId":"u1","x":12,"y":34}}`)
	moved := readUntil(t, c1, "cursor:moved")
	assert.Equal(t, "u1", gjson.GetBytes(moved.Payload, "userId").String())
	assert.Equal(t, float64(12), gjson.GetBytes(moved.Payload, "x").Float())
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	srv := newTestApp(t)
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	send(t, c1, joinMsg("w1", "u1"))
	readUntil(t, c1, "user:joined")
	send(t, c2, joinMsg("w1", "u2"))
	readUntil(t, c1, "user:joined")

	// u2 drops the transport; u1 hears OFFLINE then left
	require.NoError(t, c2.Close())

	status := readUntil(t, c1, "user:status")
	for gjson.GetBytes(status.Payload, "status").String() != "OFFLINE" {
		status = readUntil(t, c1, "user:status")
	}
	assert.Equal(t, "u2", gjson.GetBytes(status.Payload, "userId").String())

	left := readUntil(t, c1, "user:left")
	assert.Equal(t, "u2", gjson.GetBytes(left.Payload, "userId").String())
}

func TestNotJoinedWidgetOpGetsErrorReply(t *testing.T) {
	srv := newTestApp(t)
	c1 := dial(t, srv)

	send(t, c1, `{"event":"widget:load_all","payload":{}}`)
	errEnv := readUntil(t, c1, "error")
	assert.Equal(t, "NOT_JOINED", gjson.GetBytes(errEnv.Payload, "code").String())
}
