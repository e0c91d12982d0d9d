package server

import "time"

type Phase string

const (
	WAITING Phase = "waiting"
	PLAYING Phase = "playing"
	RESULT  Phase = "result"
)

// roomState is one of waitingState, playingState or resultState. Each
// variant carries only the fields valid in that phase.
type roomState interface {
	phase() Phase
}

type waitingState struct{}

type playingState struct {
	round    int
	choices  map[string]Choice
	deadline time.Time
}

type resultState struct {
	round  int
	result roundResult
}

func (waitingState) phase() Phase  { return WAITING }
func (*playingState) phase() Phase { return PLAYING }
func (*resultState) phase() Phase  { return RESULT }

// roundResult is a resolved round from slot 0's point of view.
type roundResult struct {
	round      int
	names      [2]string
	choices    map[string]Choice
	outcome    Outcome
	winnerName string
	reason     string
	resolvedAt time.Time
}

// forPlayer renders the result as seen by name.
func (r roundResult) forPlayer(name string) roundResultResponse {
	outcome := r.outcome
	if name == r.names[1] {
		outcome = outcome.invert()
	}
	var winner *string
	if r.winnerName != "" {
		w := r.winnerName
		winner = &w
	}
	choices := make(map[string]Choice, len(r.choices))
	for k, v := range r.choices {
		choices[k] = v
	}
	return roundResultResponse{
		Round:      r.round,
		WinnerName: winner,
		Choices:    choices,
		Result:     outcome,
		Reason:     r.reason,
	}
}

type playerView struct {
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar"`
	WinStreak int         `json:"win_streak"`
	Stats     playerStats `json:"stats"`
	HasChosen bool        `json:"has_chosen"`
}

// roomSnapshot is the public view of a room. It tells who has chosen in the
// current round, never what.
type roomSnapshot struct {
	RoomCode         string       `json:"room_code"`
	GameState        Phase        `json:"game_state"`
	Round            int          `json:"round"`
	Players          []playerView `json:"players"`
	ChoiceSubmitted  bool         `json:"choice_submitted"`
	PlayerMadeChoice string       `json:"player_made_choice,omitempty"`
	PlayerLeft       string       `json:"player_left,omitempty"`
}
