package server

import "errors"

const (
	ErrStatusRoomNotFound     string = "ROOM_NOT_FOUND"
	ErrStatusRoomFull         string = "ROOM_FULL"
	ErrStatusDuplicateName    string = "DUPLICATE_NAME"
	ErrStatusInvalidState     string = "INVALID_STATE"
	ErrStatusCapacityExceeded string = "CAPACITY_EXCEEDED"
	ErrStatusMalformedMessage string = "MALFORMED_MESSAGE"
	ErrStatusInternal         string = "INTERNAL"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrDuplicateName    = errors.New("name already taken in this room")
	ErrInvalidState     = errors.New("invalid state")
	ErrCapacityExceeded = errors.New("server room capacity exceeded")
	ErrMalformedMessage = errors.New("malformed message")

	ErrConnectionClosed = errors.New("connection closed")
	ErrRoomClosed       = errors.New("room closed")
)

// statusOf maps err to the code sent to clients in error messages.
func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomClosed):
		return ErrStatusRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return ErrStatusRoomFull
	case errors.Is(err, ErrDuplicateName):
		return ErrStatusDuplicateName
	case errors.Is(err, ErrInvalidState):
		return ErrStatusInvalidState
	case errors.Is(err, ErrCapacityExceeded):
		return ErrStatusCapacityExceeded
	case errors.Is(err, ErrMalformedMessage):
		return ErrStatusMalformedMessage
	default:
		return ErrStatusInternal
	}
}
