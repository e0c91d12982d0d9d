package server

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Game.AfkTimeout)
	assert.Equal(t, 3*time.Second, cfg.Game.ResultDelay)
	assert.Equal(t, 5, cfg.Game.RoomCodeLength)
	assert.Equal(t, 1000, cfg.Game.MaxRooms)
	assert.Equal(t, 64, cfg.Conn.SendBuffer)
	assert.Less(t, cfg.Conn.PingInterval, cfg.Conn.PongTimeout)
	assert.Empty(t, cfg.JwtSecret)
	assert.Empty(t, cfg.History.TableName)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RPS_SERVER_PORT", "9090")
	t.Setenv("RPS_GAME_AFKTIMEOUT", "5s")
	t.Setenv("RPS_HISTORY_TABLENAME", "RoundRecords")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Game.AfkTimeout)
	assert.Equal(t, "RoundRecords", cfg.History.TableName)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unparsable duration", "game.afkTimeout", "soon"},
		{"zero duration", "game.resultDelay", "0s"},
		{"ping not shorter than pong", "conn.pingInterval", "60s"},
		{"short room code", "game.roomCodeLength", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			v.Set(tt.key, tt.val)
			_, err := configFromViper(v)
			assert.Error(t, err)
		})
	}
}
