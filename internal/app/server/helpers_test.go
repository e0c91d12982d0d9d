package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func testGameConfig() GameConfig {
	cfg := DefaultConfig().Game
	cfg.AfkTimeout = time.Hour
	cfg.ResultDelay = time.Hour
	return cfg
}

func newTestConn() *connection {
	return newConnection(nil, ConnConfig{SendBuffer: 256})
}

func newTestDispatcher(t *testing.T, cfg GameConfig) (*Dispatcher, *Registry) {
	t.Helper()
	registry := NewRegistry(cfg, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = registry.Close(ctx)
	})
	return NewDispatcher(registry, cfg), registry
}

func sendMsg(t *testing.T, d *Dispatcher, c *connection, msgType string, payload any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	require.NoError(t, err)
	d.Dispatch(c, data)
}

// next returns the next message queued for c.
func next(t *testing.T, c *connection) received {
	t.Helper()
	select {
	case data := <-c.send:
		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for a message on %s", c.id)
		return received{}
	}
}

// expect skips messages until one of msgType arrives and decodes its
// payload into dst when dst is not nil.
func expect(t *testing.T, c *connection, msgType string, dst any) received {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case data := <-c.send:
			var msg received
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type != msgType {
				continue
			}
			if dst != nil {
				require.NoError(t, json.Unmarshal(msg.Payload, dst))
			}
			return msg
		case <-deadline:
			t.Fatalf("timed out waiting for %s on %s", msgType, c.id)
			return received{}
		}
	}
}

// drain returns every message queued for c within wait.
func drain(c *connection, wait time.Duration) []received {
	var msgs []received
	timeout := time.After(wait)
	for {
		select {
		case data := <-c.send:
			var msg received
			if json.Unmarshal(data, &msg) == nil {
				msgs = append(msgs, msg)
			}
		case <-timeout:
			return msgs
		}
	}
}

func countType(msgs []received, msgType string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// startMatch creates a room as creator and joins it as joiner, consuming
// messages up to and including game_start on both connections.
func startMatch(t *testing.T, d *Dispatcher, creator, joiner string) (*connection, *connection, string) {
	t.Helper()
	a, b := newTestConn(), newTestConn()

	sendMsg(t, d, a, MsgCreateRoom, map[string]string{"name": creator, "avatar": "🙂"})
	var created roomCodeResponse
	expect(t, a, MsgRoomCreated, &created)
	require.NotEmpty(t, created.RoomCode)

	sendMsg(t, d, b, MsgJoinRoom, map[string]string{
		"name":      joiner,
		"avatar":    "😎",
		"room_code": created.RoomCode,
	})
	expect(t, a, MsgGameStart, nil)
	expect(t, b, MsgGameStart, nil)
	return a, b, created.RoomCode
}

func roomSnapshotOf(t *testing.T, reg *Registry, code string) roomSnapshot {
	t.Helper()
	room, ok := reg.Lookup(code)
	require.True(t, ok, "room %s not registered", code)
	snap, err := room.Snapshot()
	require.NoError(t, err)
	return snap
}

func playerByName(t *testing.T, snap roomSnapshot, name string) playerView {
	t.Helper()
	for _, p := range snap.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("player %s not in room %s", name, snap.RoomCode)
	return playerView{}
}
