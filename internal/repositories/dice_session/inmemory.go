package dicesession

import (
	"context"
	"sync"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
)

// InMemoryRepository keeps sessions for the lifetime of the process
type InMemoryRepository struct {
	mu       sync.RWMutex
	clock    clock.Clock
	sessions map[string]*DiceSession
}

// NewInMemory creates a new in-memory repository. A nil clock uses the real clock.
func NewInMemory(c clock.Clock) *InMemoryRepository {
	if c == nil {
		c = clock.New()
	}
	return &InMemoryRepository{
		clock:    c,
		sessions: make(map[string]*DiceSession),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

// Create stores a new dice session, replacing any previous one for the same key
func (r *InMemoryRepository) Create(_ context.Context, input CreateInput) (*CreateOutput, error) {
	if err := validateKey(input.EntityID, input.Context); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := r.clock.Now()
	session := &DiceSession{
		EntityID:  input.EntityID,
		Context:   input.Context,
		Rolls:     copyRolls(input.Rolls),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	r.mu.Lock()
	r.sessions[buildKey(input.EntityID, input.Context)] = session
	r.mu.Unlock()

	return &CreateOutput{Session: cloneSession(session)}, nil
}

// Get retrieves a dice session by entity ID and context
func (r *InMemoryRepository) Get(_ context.Context, input GetInput) (*GetOutput, error) {
	if err := validateKey(input.EntityID, input.Context); err != nil {
		return nil, err
	}

	key := buildKey(input.EntityID, input.Context)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[key]
	if !ok {
		return nil, notFound("dice session not found", input.EntityID, input.Context)
	}
	if r.clock.Now().After(session.ExpiresAt) {
		delete(r.sessions, key)
		return nil, notFound("dice session has expired", input.EntityID, input.Context)
	}

	return &GetOutput{Session: cloneSession(session)}, nil
}

// Delete removes a dice session and reports how many rolls it held
func (r *InMemoryRepository) Delete(_ context.Context, input DeleteInput) (*DeleteOutput, error) {
	if err := validateKey(input.EntityID, input.Context); err != nil {
		return nil, err
	}

	key := buildKey(input.EntityID, input.Context)

	r.mu.Lock()
	defer r.mu.Unlock()

	var rollsDeleted int32
	if session, ok := r.sessions[key]; ok && !r.clock.Now().After(session.ExpiresAt) {
		// nolint:gosec // history is capped well below int32
		rollsDeleted = int32(len(session.Rolls))
	}
	delete(r.sessions, key)

	return &DeleteOutput{RollsDeleted: rollsDeleted}, nil
}

// Update replaces an existing dice session, keeping its original expiry
func (r *InMemoryRepository) Update(_ context.Context, session *DiceSession) error {
	if session == nil {
		return errors.InvalidArgument(errSessionNil)
	}
	if err := validateKey(session.EntityID, session.Context); err != nil {
		return err
	}
	if !session.ExpiresAt.After(r.clock.Now()) {
		return errors.FailedPreconditionf(errSessionExpired)
	}

	r.mu.Lock()
	r.sessions[buildKey(session.EntityID, session.Context)] = cloneSession(session)
	r.mu.Unlock()

	return nil
}

func cloneSession(s *DiceSession) *DiceSession {
	c := *s
	c.Rolls = copyRolls(s.Rolls)
	return &c
}

func copyRolls(rolls []DiceRoll) []DiceRoll {
	if rolls == nil {
		return nil
	}
	out := make([]DiceRoll, len(rolls))
	copy(out, rolls)
	return out
}
