package server

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, cfg GameConfig) *Registry {
	t.Helper()
	reg := NewRegistry(cfg, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = reg.Close(ctx)
	})
	return reg
}

func newTestPlayer(t *testing.T, name string) *player {
	t.Helper()
	p, err := newPlayer(newTestConn(), name, "", testGameConfig())
	require.NoError(t, err)
	return p
}

func TestGenerateRoomCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{5}$`)
	for range 200 {
		code, err := generateRoomCode(5)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}

	code, err := generateRoomCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestCreateRoomCodesAreUnique(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())

	seen := make(map[string]bool)
	for range 100 {
		code, room, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
		require.NoError(t, err)
		require.NotNil(t, room)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Equal(t, 100, reg.Len())
}

func TestCreateRoomCapacity(t *testing.T) {
	cfg := testGameConfig()
	cfg.MaxRooms = 2
	reg := newTestRegistry(t, cfg)

	for range 2 {
		_, _, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
		require.NoError(t, err)
	}
	_, _, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, reg.Len())
}

func TestJoinRoomErrors(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())

	_, err := reg.JoinRoom("ZZZZZ", newTestPlayer(t, "Bob"))
	assert.ErrorIs(t, err, ErrRoomNotFound)

	code, _, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
	require.NoError(t, err)

	_, err = reg.JoinRoom(code, newTestPlayer(t, "Ann"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = reg.JoinRoom(code, newTestPlayer(t, "Bob"))
	require.NoError(t, err)

	_, err = reg.JoinRoom(code, newTestPlayer(t, "Cat"))
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())
	code, room, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
	require.NoError(t, err)

	found, ok := reg.Lookup(" " + strings.ToLower(code) + " ")
	require.True(t, ok)
	assert.Same(t, room, found)

	joined, err := reg.JoinRoom(strings.ToLower(code), newTestPlayer(t, "Bob"))
	require.NoError(t, err)
	assert.Same(t, room, joined)
}

func TestRemoveRoomIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())
	creator := newTestPlayer(t, "Ann")
	code, room, err := reg.CreateRoom(creator)
	require.NoError(t, err)

	reg.RemoveRoom(code)
	reg.RemoveRoom(code)
	reg.RemoveRoom("NOPE1")

	select {
	case <-room.Done():
	case <-time.After(waitTimeout):
		t.Fatal("room lane did not exit")
	}
	_, ok := reg.Lookup(code)
	assert.False(t, ok)
	assert.True(t, creator.conn.isClosed())
	assert.Nil(t, creator.conn.currentRoom())

	_, err = reg.JoinRoom(code, newTestPlayer(t, "Bob"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRemovedWhenLastPlayerDisconnects(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())
	d := NewDispatcher(reg, testGameConfig())
	creator := newTestPlayer(t, "Ann")
	code, room, err := reg.CreateRoom(creator)
	require.NoError(t, err)

	d.Disconnect(creator.conn)

	assert.Eventually(t, func() bool {
		_, ok := reg.Lookup(code)
		return !ok
	}, waitTimeout, 10*time.Millisecond)
	<-room.Done()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryCloseRefusesNewRooms(t *testing.T) {
	reg := NewRegistry(testGameConfig(), nil)
	_, room, err := reg.CreateRoom(newTestPlayer(t, "Ann"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, reg.Close(ctx))

	<-room.Done()
	assert.Equal(t, 0, reg.Len())
	_, _, err = reg.CreateRoom(newTestPlayer(t, "Bob"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestConcurrentCreateAndJoin(t *testing.T) {
	reg := newTestRegistry(t, testGameConfig())

	const rooms = 50
	creators := make([]*player, rooms)
	joiners := make([]*player, rooms)
	for i := range rooms {
		creators[i] = newTestPlayer(t, "Ann")
		joiners[i] = newTestPlayer(t, "Bob")
	}

	codes := make([]string, rooms)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, _, err := reg.CreateRoom(creators[i])
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, err := reg.JoinRoom(code, joiners[i])
			assert.NoError(t, err)
		}(i, code)
	}
	wg.Wait()
	assert.Equal(t, rooms, reg.Len())
}
