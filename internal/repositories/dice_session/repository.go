// Package dicesession provides repository interface and types for dice roll sessions
package dicesession

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=dicesessionmock github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session Repository

// DiceSession is the bounded roll history of one entity in one context
type DiceSession struct {
	// Entity that owns these rolls (e.g. a sheet ID or a REPL user)
	EntityID string

	// Context for grouping related rolls (e.g. "ability_scores", "combat")
	Context string

	// Rolls, most recent first
	Rolls []DiceRoll

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Push records roll as the most recent entry and drops the oldest beyond limit.
// A limit of zero or less keeps every roll.
func (s *DiceSession) Push(roll DiceRoll, limit int) {
	s.Rolls = append([]DiceRoll{roll}, s.Rolls...)
	if limit > 0 && len(s.Rolls) > limit {
		s.Rolls = s.Rolls[:limit]
	}
}

// DiceGroup is one dice token of a roll
type DiceGroup struct {
	Notation string
	Count    int32
	Sides    int32
	Rolls    []int32
	Total    int32
}

// DiceRoll represents a single evaluated roll
type DiceRoll struct {
	// Unique identifier for this roll within the session
	RollID string

	// Expression as entered (e.g. "2d6+3", "4d6")
	Expression string

	// One entry per dice token
	Groups []DiceGroup

	// Individual dice values that were kept
	Dice []int32

	// Any dice that were dropped (for "drop lowest")
	Dropped []int32

	// Final value, rounded to two decimals
	Result float64

	// Sum of the kept dice before arithmetic
	DiceTotal int32

	// Human-readable breakdown, e.g. "2d6+3 (2d6 [4, 5]) = 12"
	Breakdown string

	// Caller-supplied label
	Description string

	RolledAt time.Time
}

// CreateInput contains parameters for creating a dice session
type CreateInput struct {
	EntityID string
	Context  string
	Rolls    []DiceRoll
	TTL      time.Duration // How long the session should live
}

// CreateOutput contains the result of creating a dice session
type CreateOutput struct {
	Session *DiceSession
}

// GetInput contains parameters for retrieving a dice session
type GetInput struct {
	EntityID string
	Context  string
}

// GetOutput contains the result of retrieving a dice session
type GetOutput struct {
	Session *DiceSession
}

// DeleteInput contains parameters for deleting a dice session
type DeleteInput struct {
	EntityID string
	Context  string
}

// DeleteOutput contains the result of deleting a dice session
type DeleteOutput struct {
	RollsDeleted int32
}

// Repository defines the interface for dice session storage operations
type Repository interface {
	// Create stores a new dice session with the specified TTL
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a dice session by entity ID and context
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Delete removes a dice session
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// Update replaces an existing dice session (used for adding rolls)
	Update(ctx context.Context, session *DiceSession) error
}
