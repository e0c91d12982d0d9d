package server

import (
	"fmt"
	"strings"
)

type (
	Choice  string
	Outcome string
)

const (
	ROCK     Choice = "rock"
	PAPER    Choice = "paper"
	SCISSORS Choice = "scissors"

	WIN  Outcome = "win"
	LOSE Outcome = "lose"
	DRAW Outcome = "draw"
)

// beats[c] is the choice c defeats.
var beats = map[Choice]Choice{
	ROCK:     SCISSORS,
	SCISSORS: PAPER,
	PAPER:    ROCK,
}

var choiceEmoji = map[Choice]string{
	ROCK:     "✊",
	PAPER:    "🖐️",
	SCISSORS: "✌️",
}

func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := beats[c]; !ok {
		return "", fmt.Errorf("%w: unknown choice %q", ErrMalformedMessage, s)
	}
	return c, nil
}

// Beats reports whether a defeats b.
func (a Choice) Beats(b Choice) bool {
	return beats[a] == b
}

func (c Choice) Emoji() string {
	return choiceEmoji[c]
}

// Resolve returns the outcome of a against b from a's point of view.
func Resolve(a, b Choice) Outcome {
	switch {
	case a == b:
		return DRAW
	case a.Beats(b):
		return WIN
	default:
		return LOSE
	}
}

func (o Outcome) invert() Outcome {
	switch o {
	case WIN:
		return LOSE
	case LOSE:
		return WIN
	default:
		return DRAW
	}
}
