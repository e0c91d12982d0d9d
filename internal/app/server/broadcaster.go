package server

import (
	"github.com/chess-vn/rpsarena/pkg/logging"
	"go.uber.org/zap"
)

// broadcaster delivers frames to the occupied slots of one room. A failed
// delivery never aborts the fan-out; the recipient is reported through
// failed so the room can run its disconnect transition.
type broadcaster struct {
	roomCode string
	failed   func(*player)
}

func (b broadcaster) Send(players []*player, msgType string, payload any) {
	b.SendExcept(players, msgType, payload, "")
}

// SendExcept skips the player named excludeName. An empty name excludes nobody.
func (b broadcaster) SendExcept(players []*player, msgType string, payload any, excludeName string) {
	data, err := encode(msgType, payload)
	if err != nil {
		logging.Error("failed to encode message",
			zap.String("room_code", b.roomCode),
			zap.String("type", msgType),
			zap.Error(err),
		)
		return
	}
	for _, p := range players {
		if p == nil || (excludeName != "" && p.Name == excludeName) {
			continue
		}
		b.deliver(p, msgType, data)
	}
}

// SendEach builds a separate payload for every recipient.
func (b broadcaster) SendEach(players []*player, msgType string, payloadFor func(*player) any) {
	for _, p := range players {
		if p == nil {
			continue
		}
		data, err := encode(msgType, payloadFor(p))
		if err != nil {
			logging.Error("failed to encode message",
				zap.String("room_code", b.roomCode),
				zap.String("type", msgType),
				zap.Error(err),
			)
			continue
		}
		b.deliver(p, msgType, data)
	}
}

func (b broadcaster) deliver(p *player, msgType string, data []byte) {
	if err := p.send(data); err != nil {
		logging.Info("couldn't notify player",
			zap.String("room_code", b.roomCode),
			zap.String("player_name", p.Name),
			zap.String("type", msgType),
			zap.Error(err),
		)
		if b.failed != nil {
			b.failed(p)
		}
	}
}
