package dice

import (
	"time"

	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
)

// RollExpressionInput defines the request for evaluating a dice expression
type RollExpressionInput struct {
	EntityID    string
	Context     string
	Expression  string
	Description string
	TTL         time.Duration

	// MaxMagnitude, when positive, rejects results whose absolute value exceeds it
	// before anything is stored
	MaxMagnitude float64
}

// RollExpressionOutput defines the response for evaluating a dice expression
type RollExpressionOutput struct {
	Roll    *dicesession.DiceRoll
	Session *dicesession.DiceSession
}

// RollDiceInput defines the request for rolling a plain NdM notation
type RollDiceInput struct {
	EntityID    string
	Context     string
	Notation    string
	Description string
	DropLowest  int
	TTL         time.Duration
}

// RollDiceOutput defines the response for rolling dice
type RollDiceOutput struct {
	Roll    *dicesession.DiceRoll
	Session *dicesession.DiceSession
}

// GetRollSessionInput defines the request for getting a roll session
type GetRollSessionInput struct {
	EntityID string
	Context  string
}

// GetRollSessionOutput defines the response for getting a roll session
type GetRollSessionOutput struct {
	Session *dicesession.DiceSession
}

// ClearRollSessionInput defines the request for clearing a roll session
type ClearRollSessionInput struct {
	EntityID string
	Context  string
}

// ClearRollSessionOutput defines the response for clearing a roll session
type ClearRollSessionOutput struct {
	RollsDeleted int32
}

// RollAbilityScoresInput defines the request for rolling six ability scores
type RollAbilityScoresInput struct {
	EntityID string
	Method   string // "4d6_drop_lowest" or "3d6"
}

// RollAbilityScoresOutput defines the response for rolling ability scores
type RollAbilityScoresOutput struct {
	Rolls   []*dicesession.DiceRoll
	Session *dicesession.DiceSession
}
