package entities

import "time"

// RoundRecord is keyed by RoomId and ResolvedAt. Room codes are reused once
// a room closes, so RoomCode is only descriptive.
type RoundRecord struct {
	RoomId     string            `dynamodbav:"RoomId" json:"roomId"`
	ResolvedAt time.Time         `dynamodbav:"ResolvedAt" json:"resolvedAt"`
	RoomCode   string            `dynamodbav:"RoomCode" json:"roomCode"`
	Round      int               `dynamodbav:"Round" json:"round"`
	Players    []string          `dynamodbav:"Players" json:"players"`
	Choices    map[string]string `dynamodbav:"Choices" json:"choices"`
	WinnerName string            `dynamodbav:"WinnerName,omitempty" json:"winnerName,omitempty"`
	Reason     string            `dynamodbav:"Reason" json:"reason"`
}
