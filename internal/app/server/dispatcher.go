package server

import (
	"errors"
	"fmt"

	"github.com/chess-vn/rpsarena/pkg/logging"
	"go.uber.org/zap"
)

// Dispatcher routes decoded client messages to the registry or to the
// lane of the room the connection is attached to. It keeps no state of its
// own: per-room ordering comes from the room lane, per-connection ordering
// from the read pump calling Dispatch sequentially.
type Dispatcher struct {
	registry *Registry
	cfg      GameConfig
}

func NewDispatcher(registry *Registry, cfg GameConfig) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
	}
}

// Dispatch handles one inbound frame from c. Rejections are reported to c
// as error messages; they never close the connection.
func (d *Dispatcher) Dispatch(c *connection, data []byte) {
	c.touch()
	env, err := decodeEnvelope(data)
	if err == nil {
		err = d.route(c, env)
	}
	if err != nil {
		logging.Info("request rejected",
			zap.String("conn_id", c.id),
			zap.String("type", env.Type),
			zap.Error(err),
		)
		c.sendError(err)
	}
}

// Disconnect runs the disconnect transition for c's room, if any.
func (d *Dispatcher) Disconnect(c *connection) {
	room := c.currentRoom()
	if room == nil {
		return
	}
	if err := room.post(disconnectEvent{conn: c}); err != nil {
		logging.Debug("room already closed on disconnect",
			zap.String("conn_id", c.id),
			zap.String("room_code", room.code),
		)
	}
}

func (d *Dispatcher) route(c *connection, env envelope) error {
	switch env.Type {
	case MsgCreateRoom:
		return d.createRoom(c, env)
	case MsgJoinRoom:
		return d.joinRoom(c, env)
	case MsgPlayerChoice:
		var payload choicePayload
		if err := decodePayload(env.Payload, &payload); err != nil {
			return err
		}
		choice, err := ParseChoice(payload.Choice)
		if err != nil {
			return err
		}
		return d.toRoom(c, choiceEvent{conn: c, choice: choice})
	case MsgChat:
		var payload chatPayload
		if err := decodePayload(env.Payload, &payload); err != nil {
			return err
		}
		return d.toRoom(c, chatEvent{conn: c, text: payload.Text})
	case MsgSetAvatar:
		var payload avatarPayload
		if err := decodePayload(env.Payload, &payload); err != nil {
			return err
		}
		return d.toRoom(c, avatarEvent{conn: c, avatar: payload.Avatar})
	case MsgSendSticker:
		var payload stickerPayload
		if err := decodePayload(env.Payload, &payload); err != nil {
			return err
		}
		return d.toRoom(c, stickerEvent{conn: c, sticker: payload.Sticker})
	case MsgLeaveRoom:
		return d.leaveRoom(c)
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrMalformedMessage, env.Type)
	}
}

func (d *Dispatcher) createRoom(c *connection, env envelope) error {
	if room := c.currentRoom(); room != nil {
		return fmt.Errorf("%w: already in room %s", ErrInvalidState, room.code)
	}
	var payload identityPayload
	if err := decodePayload(env.Payload, &payload); err != nil {
		return err
	}
	creator, err := newPlayer(c, payload.Name, payload.Avatar, d.cfg)
	if err != nil {
		return err
	}
	_, _, err = d.registry.CreateRoom(creator)
	return err
}

func (d *Dispatcher) joinRoom(c *connection, env envelope) error {
	if room := c.currentRoom(); room != nil {
		return fmt.Errorf("%w: already in room %s", ErrInvalidState, room.code)
	}
	var payload joinRoomPayload
	if err := decodePayload(env.Payload, &payload); err != nil {
		return err
	}
	if normalizeCode(payload.RoomCode) == "" {
		return fmt.Errorf("%w: missing room_code", ErrMalformedMessage)
	}
	joiner, err := newPlayer(c, payload.Name, payload.Avatar, d.cfg)
	if err != nil {
		return err
	}
	_, err = d.registry.JoinRoom(payload.RoomCode, joiner)
	return err
}

func (d *Dispatcher) leaveRoom(c *connection) error {
	room := c.currentRoom()
	if room == nil {
		return errNotInRoom
	}
	if err := room.leave(c); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			return errNotInRoom
		}
		return err
	}
	return nil
}

func (d *Dispatcher) toRoom(c *connection, ev any) error {
	room := c.currentRoom()
	if room == nil {
		return errNotInRoom
	}
	if err := room.post(ev); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			return errNotInRoom
		}
		return err
	}
	return nil
}
