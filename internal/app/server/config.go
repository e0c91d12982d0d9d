package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JwtSecret      string

	Game    GameConfig
	Conn    ConnConfig
	History HistoryConfig
}

type GameConfig struct {
	AfkTimeout      time.Duration
	ResultDelay     time.Duration
	MaxRooms        int
	RoomCodeLength  int
	MaxNameLength   int
	MaxChatLength   int
	MaxAvatarLength int
}

type ConnConfig struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

type HistoryConfig struct {
	TableName string
	AwsRegion string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.jwtSecret", "")

	v.SetDefault("game.afkTimeout", "30s")
	v.SetDefault("game.resultDelay", "3s")
	v.SetDefault("game.maxRooms", 1000)
	v.SetDefault("game.roomCodeLength", 5)
	v.SetDefault("game.maxNameLength", 20)
	v.SetDefault("game.maxChatLength", 500)
	v.SetDefault("game.maxAvatarLength", 256*1024)

	v.SetDefault("conn.sendBuffer", 64)
	v.SetDefault("conn.writeTimeout", "10s")
	v.SetDefault("conn.pongTimeout", "60s")
	v.SetDefault("conn.pingInterval", "54s")
	v.SetDefault("conn.maxMessageSize", 512*1024)

	v.SetDefault("history.tableName", "")
	v.SetDefault("history.awsRegion", "")
}

// LoadConfig reads config.yaml from ./configs/server or the working
// directory. The file is optional; RPS_* environment variables override it.
func LoadConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs/server")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (Config, error) {
	var (
		cfg Config
		err error
	)
	cfg.Port = v.GetString("server.port")
	cfg.Environment = v.GetString("server.environment")
	cfg.AllowedOrigins = v.GetStringSlice("server.allowedOrigins")
	cfg.JwtSecret = v.GetString("server.jwtSecret")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"game.afkTimeout", &cfg.Game.AfkTimeout},
		{"game.resultDelay", &cfg.Game.ResultDelay},
		{"conn.writeTimeout", &cfg.Conn.WriteTimeout},
		{"conn.pongTimeout", &cfg.Conn.PongTimeout},
		{"conn.pingInterval", &cfg.Conn.PingInterval},
	}
	for _, d := range durations {
		*d.dst, err = time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if *d.dst <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", d.key)
		}
	}
	if cfg.Conn.PingInterval >= cfg.Conn.PongTimeout {
		return Config{}, fmt.Errorf("conn.pingInterval must be shorter than conn.pongTimeout")
	}

	cfg.Game.MaxRooms = v.GetInt("game.maxRooms")
	cfg.Game.RoomCodeLength = v.GetInt("game.roomCodeLength")
	cfg.Game.MaxNameLength = v.GetInt("game.maxNameLength")
	cfg.Game.MaxChatLength = v.GetInt("game.maxChatLength")
	cfg.Game.MaxAvatarLength = v.GetInt("game.maxAvatarLength")
	if cfg.Game.RoomCodeLength < 4 {
		return Config{}, fmt.Errorf("game.roomCodeLength must be at least 4")
	}

	cfg.Conn.SendBuffer = v.GetInt("conn.sendBuffer")
	cfg.Conn.MaxMessageSize = v.GetInt64("conn.maxMessageSize")

	cfg.History.TableName = v.GetString("history.tableName")
	cfg.History.AwsRegion = v.GetString("history.awsRegion")

	return cfg, nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := configFromViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}
