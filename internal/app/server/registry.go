package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/chess-vn/rpsarena/pkg/logging"
	"go.uber.org/zap"
)

const (
	// Ambiguous characters (0/O, 1/I) are left out.
	codeChars       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeAttempts = 32
)

// Registry maps room codes to live rooms. Its lock only guards the map and
// is never held while waiting on a room lane.
type Registry struct {
	cfg      GameConfig
	recorder RoundRecorder

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewRegistry(cfg GameConfig, recorder RoundRecorder) *Registry {
	return &Registry{
		cfg:      cfg,
		recorder: recorder,
		rooms:    make(map[string]*Room),
	}
}

// CreateRoom seats creator in slot 0 of a fresh room and starts its lane.
func (reg *Registry) CreateRoom(creator *player) (string, *Room, error) {
	reg.mu.Lock()
	if reg.closed {
		reg.mu.Unlock()
		return "", nil, fmt.Errorf("%w: server shutting down", ErrCapacityExceeded)
	}
	if reg.cfg.MaxRooms > 0 && len(reg.rooms) >= reg.cfg.MaxRooms {
		reg.mu.Unlock()
		return "", nil, fmt.Errorf("%w: %d rooms open", ErrCapacityExceeded, len(reg.rooms))
	}
	code, err := reg.allocateCode()
	if err != nil {
		reg.mu.Unlock()
		return "", nil, err
	}
	room := newRoom(code, creator, reg.cfg, reg.recorder, reg.handleRoomClosed)
	reg.rooms[code] = room
	total := len(reg.rooms)
	reg.mu.Unlock()

	room.start()
	logging.Debug("room registered", zap.String("room_code", code), zap.Int("total_rooms", total))
	return code, room, nil
}

// JoinRoom seats joiner in the room registered under code.
func (reg *Registry) JoinRoom(code string, joiner *player) (*Room, error) {
	room, ok := reg.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, normalizeCode(code))
	}
	if err := room.join(joiner); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, room.code)
		}
		return nil, err
	}
	return room, nil
}

func (reg *Registry) Lookup(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[normalizeCode(code)]
	return room, ok
}

// RemoveRoom drops the entry for code and tears the room down. It is safe
// to call for unknown codes and for rooms that already closed themselves.
func (reg *Registry) RemoveRoom(code string) {
	reg.mu.Lock()
	room, ok := reg.rooms[normalizeCode(code)]
	if ok {
		delete(reg.rooms, room.code)
	}
	reg.mu.Unlock()
	if ok {
		room.Close()
	}
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Close refuses new rooms, tears down every open room and waits for their
// lanes to exit or ctx to expire.
func (reg *Registry) Close(ctx context.Context) error {
	reg.mu.Lock()
	reg.closed = true
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
	for _, room := range rooms {
		select {
		case <-room.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	logging.Info("registry closed", zap.Int("rooms_closed", len(rooms)))
	return nil
}

// handleRoomClosed runs on the closing room's lane.
func (reg *Registry) handleRoomClosed(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[room.code] == room {
		delete(reg.rooms, room.code)
	}
	logging.Info("room removed",
		zap.String("room_code", room.code),
		zap.Int("total_rooms", len(reg.rooms)),
	)
}

// allocateCode must be called with reg.mu held.
func (reg *Registry) allocateCode() (string, error) {
	for range maxCodeAttempts {
		code, err := generateRoomCode(reg.cfg.RoomCodeLength)
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free room code", ErrCapacityExceeded)
}

func generateRoomCode(length int) (string, error) {
	code := make([]byte, length)
	alphabet := big.NewInt(int64(len(codeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
