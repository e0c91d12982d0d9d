package server

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Client -> server message types.
const (
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgPlayerChoice = "player_choice"
	MsgChat         = "chat_message"
	MsgSetAvatar    = "set_avatar"
	MsgSendSticker  = "send_sticker"
)

// Server -> client message types.
const (
	MsgRoomCreated      = "room_created"
	MsgJoinSuccess      = "join_success"
	MsgPlayerJoined     = "player_joined"
	MsgPlayerLeft       = "player_left"
	MsgLeftRoom         = "left_room"
	MsgGameStart        = "game_start"
	MsgGameUpdate       = "game_update"
	MsgRoundResult      = "round_result"
	MsgChatBroadcast    = "chat_broadcast"
	MsgAvatarUpdate     = "avatar_update"
	MsgStickerBroadcast = "sticker_broadcast"
	MsgError            = "error"
)

const (
	systemSenderName   = "System"
	systemSenderAvatar = "system"

	reasonMoves   = "moves"
	reasonTimeout = "timeout"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type identityPayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type joinRoomPayload struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	RoomCode string `json:"room_code"`
}

type choicePayload struct {
	Choice string `json:"choice"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type avatarPayload struct {
	Avatar string `json:"avatar"`
}

type stickerPayload struct {
	Sticker string `json:"sticker"`
}

type roomCodeResponse struct {
	RoomCode string `json:"room_code"`
}

type roundResultResponse struct {
	Round      int               `json:"round"`
	WinnerName *string           `json:"winner_name"`
	Choices    map[string]Choice `json:"choices"`
	Result     Outcome           `json:"result"`
	Reason     string            `json:"reason"`
	Players    []playerView      `json:"players"`
}

type chatResponse struct {
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar"`
	Text         string `json:"text"`
}

type avatarResponse struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type stickerResponse struct {
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar"`
	Sticker      string `json:"sticker"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// decodeEnvelope parses one inbound frame. The payload stays raw until the
// handler for its type decodes it.
func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return env, nil
}

// decodePayload unmarshals a payload into dst. An absent or null payload
// leaves dst at its zero value.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

func encode(msgType string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Type: msgType, Payload: payload})
}

func errorMessage(err error) []byte {
	data, _ := encode(MsgError, errorResponse{
		Message: err.Error(),
		Code:    statusOf(err),
	})
	return data
}
