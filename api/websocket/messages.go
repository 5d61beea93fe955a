package websocket

import (
	"encoding/json"
	"time"
)

// Channel names
const (
	ChannelEvents     = "events"
	PoolChannelPrefix = "pool:"
)

// PoolChannel returns the channel carrying events of one pool
func PoolChannel(poolID string) string {
	return PoolChannelPrefix + poolID
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ClientMessage represents a message from a client
type ClientMessage struct {
	Action  string          `json:"action"`  // "subscribe", "unsubscribe", "ping"
	Channel string          `json:"channel"` // Channel to subscribe/unsubscribe
	Data    json.RawMessage `json:"data,omitempty"`
}

// PoolEvent is a module event relayed to indexers
type PoolEvent struct {
	Type       string            `json:"type"`
	PoolID     string            `json:"pool_id,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Height     int64             `json:"height"`
	Time       time.Time         `json:"time"`
}
