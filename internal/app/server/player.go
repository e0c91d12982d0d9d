package server

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultPlayerName   = "Player"
	defaultPlayerAvatar = "😀"
)

type player struct {
	Name         string
	Avatar       string
	WinStreak    int
	Stats        playerStats
	LastActiveAt time.Time

	conn *connection
}

type playerStats struct {
	Played int `json:"played"`
	Won    int `json:"won"`
	Lost   int `json:"lost"`
	Draw   int `json:"draw"`
}

// newPlayer validates the identity a client asked for and fills defaults for
// an empty name or avatar.
func newPlayer(conn *connection, name, avatar string, cfg GameConfig) (*player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPlayerName
	}
	if cfg.MaxNameLength > 0 && utf8.RuneCountInString(name) > cfg.MaxNameLength {
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrMalformedMessage, cfg.MaxNameLength)
	}
	avatar, err := normalizeAvatar(avatar, cfg)
	if err != nil {
		return nil, err
	}
	return &player{
		Name:         name,
		Avatar:       avatar,
		LastActiveAt: time.Now(),
		conn:         conn,
	}, nil
}

func normalizeAvatar(avatar string, cfg GameConfig) (string, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return defaultPlayerAvatar, nil
	}
	if cfg.MaxAvatarLength > 0 && len(avatar) > cfg.MaxAvatarLength {
		return "", fmt.Errorf("%w: avatar exceeds %d bytes", ErrMalformedMessage, cfg.MaxAvatarLength)
	}
	return avatar, nil
}

func (p *player) touch() {
	p.LastActiveAt = time.Now()
}

func (p *player) recordWin() {
	p.WinStreak++
	p.Stats.Played++
	p.Stats.Won++
}

func (p *player) recordLoss() {
	p.WinStreak = 0
	p.Stats.Played++
	p.Stats.Lost++
}

// recordDraw leaves the streak untouched.
func (p *player) recordDraw() {
	p.Stats.Played++
	p.Stats.Draw++
}

func (p *player) record(o Outcome) {
	switch o {
	case WIN:
		p.recordWin()
	case LOSE:
		p.recordLoss()
	default:
		p.recordDraw()
	}
}

func (p *player) send(data []byte) error {
	if p == nil || p.conn == nil {
		return ErrConnectionClosed
	}
	return p.conn.Send(data)
}
