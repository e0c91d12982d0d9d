package server

import (
	"context"
	"time"

	"github.com/chess-vn/rpsarena/internal/domains/entities"
	"github.com/chess-vn/rpsarena/pkg/logging"
	"go.uber.org/zap"
)

const recordTimeout = 5 * time.Second

type RoundRecorder interface {
	PutRoundRecord(ctx context.Context, record entities.RoundRecord) error
}

// RoundHistory is the append-only log of resolved rounds.
type RoundHistory interface {
	RoundRecorder
	FetchRoundRecords(ctx context.Context, roomId string, limit int32) ([]entities.RoundRecord, error)
}

func (r roundResult) record(roomId, roomCode string) entities.RoundRecord {
	choices := make(map[string]string, len(r.choices))
	for name, c := range r.choices {
		choices[name] = string(c)
	}
	return entities.RoundRecord{
		RoomCode:   roomCode,
		RoomId:     roomId,
		Round:      r.round,
		Players:    []string{r.names[0], r.names[1]},
		Choices:    choices,
		WinnerName: r.winnerName,
		Reason:     r.reason,
		ResolvedAt: r.resolvedAt.UTC(),
	}
}

// saveRound hands the result to the recorder off the lane.
func (r *Room) saveRound(result roundResult) {
	if r.recorder == nil {
		return
	}
	record := result.record(r.id, r.code)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.PutRoundRecord(ctx, record); err != nil {
			logging.Error("failed to save round",
				zap.String("room_code", record.RoomCode),
				zap.Int("round", record.Round),
				zap.Error(err),
			)
		}
	}()
}
