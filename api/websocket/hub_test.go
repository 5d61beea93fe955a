package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

func dial(t *testing.T) (*Hub, *gorilla.Conn) {
	hub := NewHub(nil, nil, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		srv.Close()
	})
	return hub, conn
}

func read(t *testing.T, conn *gorilla.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPoolChannelDelivery(t *testing.T) {
	hub, conn := dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Channel: PoolChannel("p1")}))
	msg := read(t, conn)
	require.Equal(t, "subscribed", msg.Type)
	require.Equal(t, "pool:p1", msg.Channel)
	require.Equal(t, 1, hub.GetClientCount())
	require.Equal(t, 1, hub.GetChannelClientCount("pool:p1"))

	hub.PublishEvent(PoolEvent{Type: "vault_deposited", PoolID: "p2"})
	hub.PublishEvent(PoolEvent{
		Type:       "vault_deposited",
		PoolID:     "p1",
		Attributes: map[string]string{"amount": "5"},
		Height:     7,
	})

	msg = read(t, conn)
	require.Equal(t, "event", msg.Type)
	require.Equal(t, "pool:p1", msg.Channel)

	var ev PoolEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	require.Equal(t, "p1", ev.PoolID)
	require.Equal(t, "5", ev.Attributes["amount"])
	require.Equal(t, int64(7), ev.Height)
}

func TestFirehoseAndUnsubscribe(t *testing.T) {
	hub, conn := dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Channel: ChannelEvents}))
	require.Equal(t, "subscribed", read(t, conn).Type)

	hub.PublishEvent(PoolEvent{Type: "strategy_executed"})
	msg := read(t, conn)
	require.Equal(t, ChannelEvents, msg.Channel)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "unsubscribe", Channel: ChannelEvents}))
	require.Equal(t, "unsubscribed", read(t, conn).Type)
	require.Equal(t, 0, hub.GetChannelClientCount(ChannelEvents))
}

func TestClientErrors(t *testing.T) {
	_, conn := dial(t)

	testCases := []struct {
		msg  ClientMessage
		code string
	}{
		{ClientMessage{Action: "subscribe", Channel: "ticker:BTC"}, "invalid_channel"},
		{ClientMessage{Action: "subscribe", Channel: "pool:"}, "invalid_channel"},
		{ClientMessage{Action: "auth"}, "unknown_action"},
	}
	for _, tc := range testCases {
		require.NoError(t, conn.WriteJSON(tc.msg))
		msg := read(t, conn)
		require.Equal(t, "error", msg.Type)

		var body map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		require.Equal(t, tc.code, body["code"])
	}

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "ping"}))
	require.Equal(t, "pong", read(t, conn).Type)
}
