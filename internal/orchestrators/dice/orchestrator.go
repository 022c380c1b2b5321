// Package dice implements the dice orchestrator: expression rolls, bounded roll history
// and ability score generation
package dice

//go:generate mockgen -destination=mock/mock_service.go -package=dicemock github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice Service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-sheet/internal/dice/notation"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/idgen"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
)

const (
	// ContextAbilityScores groups ability score rolls
	ContextAbilityScores = "ability_scores"

	// DefaultSessionTTL is how long a roll history lives without new rolls
	DefaultSessionTTL = 15 * time.Minute

	// DefaultMaxExpressionLength bounds the raw expression a caller may submit
	DefaultMaxExpressionLength = 100

	// DefaultHistoryLimit bounds the rolls kept per session
	DefaultHistoryLimit = 50

	// Dice rolling methods
	MethodStandard = "4d6_drop_lowest"
	MethodClassic  = "3d6"

	// EventDiceRolled is published after a roll is recorded
	EventDiceRolled = "dice.rolled"
)

// Context keys set on EventDiceRolled. EventKeyRoll holds a dicesession.DiceRoll.
const (
	EventKeyRollID     = "roll_id"
	EventKeyExpression = "expression"
	EventKeyResult     = "result"
	EventKeyBreakdown  = "breakdown"
	EventKeyRoll       = "roll"
)

var (
	// Regex for parsing simple dice notation like "2d6", "1d20", "3d8"
	diceNotationRegex = regexp.MustCompile(`^(\d+)d(\d+)$`)
)

// Service defines the interface for dice operations
type Service interface {
	// RollExpression evaluates an arithmetic dice expression such as "2d6+3"
	RollExpression(ctx context.Context, input *RollExpressionInput) (*RollExpressionOutput, error)
	// RollDice rolls a plain NdM notation, optionally dropping the lowest dice
	RollDice(ctx context.Context, input *RollDiceInput) (*RollDiceOutput, error)
	GetRollSession(ctx context.Context, input *GetRollSessionInput) (*GetRollSessionOutput, error)
	ClearRollSession(ctx context.Context, input *ClearRollSessionInput) (*ClearRollSessionOutput, error)

	// Specialized ability score rolling for character sheets
	RollAbilityScores(ctx context.Context, input *RollAbilityScoresInput) (*RollAbilityScoresOutput, error)
}

// Config holds the dependencies for the dice orchestrator
type Config struct {
	DiceSessionRepo dicesession.Repository
	IDGenerator     idgen.Generator
	Roller          dice.Roller
	Clock           clock.Clock

	// EventBus is optional
	EventBus events.EventBus

	MaxExpressionLength int
	HistoryLimit        int
	SessionTTL          time.Duration
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.DiceSessionRepo == nil {
		vb.RequiredField("DiceSessionRepo")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.MaxExpressionLength < 0 {
		vb.InvalidField("MaxExpressionLength", "must not be negative")
	}
	if c.HistoryLimit < 0 {
		vb.InvalidField("HistoryLimit", "must not be negative")
	}

	return vb.Build()
}

type orchestrator struct {
	diceSessionRepo dicesession.Repository
	idGen           idgen.Generator
	roller          dice.Roller
	expander        *notation.Expander
	clock           clock.Clock
	eventBus        events.EventBus

	maxExpressionLength int
	historyLimit        int
	sessionTTL          time.Duration

	// one roll at a time per entity and context
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator creates a new dice orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	expander, err := notation.NewExpander(&notation.Config{Roller: cfg.Roller})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create expander")
	}

	o := &orchestrator{
		diceSessionRepo:     cfg.DiceSessionRepo,
		idGen:               cfg.IDGenerator,
		roller:              cfg.Roller,
		expander:            expander,
		clock:               cfg.Clock,
		eventBus:            cfg.EventBus,
		maxExpressionLength: cfg.MaxExpressionLength,
		historyLimit:        cfg.HistoryLimit,
		sessionTTL:          cfg.SessionTTL,
		inFlight:            make(map[string]struct{}),
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.maxExpressionLength == 0 {
		o.maxExpressionLength = DefaultMaxExpressionLength
	}
	if o.historyLimit == 0 {
		o.historyLimit = DefaultHistoryLimit
	}
	if o.sessionTTL == 0 {
		o.sessionTTL = DefaultSessionTTL
	}

	return o, nil
}

// RollExpression evaluates the expression and records it at the head of the session
// history. A failed evaluation leaves the session untouched.
func (o *orchestrator) RollExpression(ctx context.Context, input *RollExpressionInput) (*RollExpressionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateOwner(input.EntityID, input.Context); err != nil {
		return nil, err
	}
	expr := strings.TrimSpace(input.Expression)
	if expr == "" {
		return nil, errors.InvalidArgument("expression is required")
	}
	if len(expr) > o.maxExpressionLength {
		return nil, errors.InvalidArgumentf("expression must be at most %d characters", o.maxExpressionLength)
	}

	release, err := o.acquire(input.EntityID, input.Context)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := o.expander.Roll(expr)
	if err != nil {
		slog.Debug("Dice expression rejected",
			"entity_id", input.EntityID,
			"expression", expr,
			"error", err,
		)
		return nil, err
	}
	if input.MaxMagnitude > 0 && math.Abs(result.Value) > input.MaxMagnitude {
		return nil, errors.OutOfRangef("result %g exceeds the supported range of +/-%g", result.Value, input.MaxMagnitude).
			WithKind(errors.KindArithmetic).
			WithMeta("expression", expr)
	}

	roll := &dicesession.DiceRoll{
		RollID:      o.idGen.Generate(),
		Expression:  expr,
		Groups:      toSessionGroups(result.Groups),
		Dice:        toInt32s(result.Dice()),
		Result:      result.Value,
		DiceTotal:   int32(result.DiceTotal()), // nolint:gosec // bounded by notation limits
		Breakdown:   result.Breakdown,
		Description: input.Description,
		RolledAt:    o.clock.Now(),
	}

	session, err := o.record(ctx, input.EntityID, input.Context, input.TTL, *roll)
	if err != nil {
		return nil, err
	}

	slog.Info("Dice expression rolled",
		"entity_id", input.EntityID,
		"context", input.Context,
		"expression", expr,
		"result", roll.Result,
		"roll_id", roll.RollID,
	)
	o.publish(ctx, input.EntityID, roll)

	return &RollExpressionOutput{
		Roll:    roll,
		Session: session,
	}, nil
}

// RollDice rolls a plain NdM notation and stores the result in a session
func (o *orchestrator) RollDice(ctx context.Context, input *RollDiceInput) (*RollDiceOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateOwner(input.EntityID, input.Context); err != nil {
		return nil, err
	}
	if input.Notation == "" {
		return nil, errors.InvalidArgument("dice notation is required")
	}

	count, size, err := parseDiceNotation(input.Notation)
	if err != nil {
		return nil, err
	}
	if input.DropLowest < 0 || input.DropLowest >= count {
		return nil, errors.InvalidArgumentf("drop lowest must be between 0 and %d", count-1)
	}

	release, err := o.acquire(input.EntityID, input.Context)
	if err != nil {
		return nil, err
	}
	defer release()

	roll, err := o.rollKeepHighest(strings.ToLower(input.Notation), count, size, input.DropLowest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll dice")
	}
	roll.Description = input.Description

	session, err := o.record(ctx, input.EntityID, input.Context, input.TTL, *roll)
	if err != nil {
		return nil, err
	}

	slog.Info("Dice rolled successfully",
		"entity_id", input.EntityID,
		"context", input.Context,
		"notation", input.Notation,
		"total", roll.Result,
		"roll_id", roll.RollID,
	)
	o.publish(ctx, input.EntityID, roll)

	return &RollDiceOutput{
		Roll:    roll,
		Session: session,
	}, nil
}

// GetRollSession retrieves an existing dice roll session
func (o *orchestrator) GetRollSession(ctx context.Context, input *GetRollSessionInput) (*GetRollSessionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateOwner(input.EntityID, input.Context); err != nil {
		return nil, err
	}

	getOutput, err := o.diceSessionRepo.Get(ctx, dicesession.GetInput{
		EntityID: input.EntityID,
		Context:  input.Context,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get dice session")
	}

	return &GetRollSessionOutput{
		Session: getOutput.Session,
	}, nil
}

// ClearRollSession removes a dice roll session
func (o *orchestrator) ClearRollSession(ctx context.Context, input *ClearRollSessionInput) (*ClearRollSessionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateOwner(input.EntityID, input.Context); err != nil {
		return nil, err
	}

	deleteOutput, err := o.diceSessionRepo.Delete(ctx, dicesession.DeleteInput{
		EntityID: input.EntityID,
		Context:  input.Context,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete dice session")
	}

	slog.Info("Dice session cleared",
		"entity_id", input.EntityID,
		"context", input.Context,
		"rolls_deleted", deleteOutput.RollsDeleted,
	)

	return &ClearRollSessionOutput{
		RollsDeleted: deleteOutput.RollsDeleted,
	}, nil
}

// RollAbilityScores rolls six ability scores and replaces the ability score session
func (o *orchestrator) RollAbilityScores(ctx context.Context, input *RollAbilityScoresInput) (*RollAbilityScoresOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.EntityID == "" {
		return nil, errors.InvalidArgument("entity ID is required")
	}

	method := input.Method
	if method == "" {
		method = MethodStandard
	}

	var (
		notationStr string
		dropLowest  int
	)
	switch method {
	case MethodStandard:
		notationStr, dropLowest = "4d6", 1
	case MethodClassic:
		notationStr = "3d6"
	default:
		return nil, errors.InvalidArgumentf("unsupported rolling method: %s", method)
	}

	count, size, err := parseDiceNotation(notationStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ability score notation")
	}

	release, err := o.acquire(input.EntityID, ContextAbilityScores)
	if err != nil {
		return nil, err
	}
	defer release()

	rolls := make([]*dicesession.DiceRoll, 0, 6)
	history := make([]dicesession.DiceRoll, 0, 6)
	for i := 0; i < 6; i++ {
		roll, err := o.rollKeepHighest(notationStr, count, size, dropLowest)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll ability score %d", i+1)
		}
		roll.Description = fmt.Sprintf("Ability Score %d (%s)", i+1, method)
		rolls = append(rolls, roll)
	}
	// history is most-recent-first
	for i := len(rolls) - 1; i >= 0; i-- {
		history = append(history, *rolls[i])
	}

	createOutput, err := o.diceSessionRepo.Create(ctx, dicesession.CreateInput{
		EntityID: input.EntityID,
		Context:  ContextAbilityScores,
		Rolls:    history,
		TTL:      o.sessionTTL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ability score session")
	}

	slog.Info("Ability scores rolled successfully",
		"entity_id", input.EntityID,
		"method", method,
		"rolls_count", len(rolls),
	)

	return &RollAbilityScoresOutput{
		Rolls:   rolls,
		Session: createOutput.Session,
	}, nil
}

// record pushes roll onto the session history, creating the session when needed
func (o *orchestrator) record(ctx context.Context, entityID, rollContext string, ttl time.Duration, roll dicesession.DiceRoll) (*dicesession.DiceSession, error) {
	getOutput, err := o.diceSessionRepo.Get(ctx, dicesession.GetInput{
		EntityID: entityID,
		Context:  rollContext,
	})
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, "failed to check for existing session")
	}

	if err == nil {
		session := getOutput.Session
		session.Push(roll, o.historyLimit)
		updateErr := o.diceSessionRepo.Update(ctx, session)
		if updateErr == nil {
			return session, nil
		}
		if !errors.IsFailedPrecondition(updateErr) {
			return nil, errors.Wrap(updateErr, "failed to update dice session")
		}
		// expired between read and write, start over
	}

	if ttl == 0 {
		ttl = o.sessionTTL
	}
	createOutput, err := o.diceSessionRepo.Create(ctx, dicesession.CreateInput{
		EntityID: entityID,
		Context:  rollContext,
		Rolls:    []dicesession.DiceRoll{roll},
		TTL:      ttl,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dice session")
	}
	return createOutput.Session, nil
}

// rollKeepHighest rolls count dice and drops the lowest dropLowest of them
func (o *orchestrator) rollKeepHighest(notationStr string, count, size, dropLowest int) (*dicesession.DiceRoll, error) {
	values, err := o.roller.RollN(count, size)
	if err != nil {
		return nil, err
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	dropped := toInt32s(sorted[:dropLowest])
	// kept dice stay in rolled order; remove one occurrence per dropped value
	remaining := make(map[int]int, dropLowest)
	for _, d := range sorted[:dropLowest] {
		remaining[d]++
	}
	kept := make([]int, 0, len(values)-dropLowest)
	for _, v := range values {
		if remaining[v] > 0 {
			remaining[v]--
			continue
		}
		kept = append(kept, v)
	}

	total := 0
	for _, v := range kept {
		total += v
	}

	group := notation.DiceGroup{Notation: notationStr, Count: count, Sides: size, Rolls: values, Total: total}
	breakdown := (&notation.Expansion{Expression: notationStr, Groups: []notation.DiceGroup{group}}).Breakdown(float64(total))
	if dropLowest > 0 {
		breakdown = fmt.Sprintf("%s, dropped %v", breakdown, dropped)
	}

	return &dicesession.DiceRoll{
		RollID:     o.idGen.Generate(),
		Expression: notationStr,
		Groups:     toSessionGroups([]notation.DiceGroup{group}),
		Dice:       toInt32s(kept),
		Dropped:    dropped,
		Result:     float64(total),
		DiceTotal:  int32(total), // nolint:gosec // bounded by notation limits
		Breakdown:  breakdown,
		RolledAt:   o.clock.Now(),
	}, nil
}

func (o *orchestrator) acquire(entityID, rollContext string) (func(), error) {
	key := entityID + ":" + rollContext

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inFlight[key]; busy {
		return nil, errors.Aborted("a roll is already in progress").
			WithMeta("entity_id", entityID).
			WithMeta("context", rollContext)
	}
	o.inFlight[key] = struct{}{}

	return func() {
		o.mu.Lock()
		delete(o.inFlight, key)
		o.mu.Unlock()
	}, nil
}

func (o *orchestrator) publish(ctx context.Context, entityID string, roll *dicesession.DiceRoll) {
	if o.eventBus == nil {
		return
	}
	event := events.NewGameEvent(EventDiceRolled, &rollOwner{id: entityID}, nil)
	event.Context().Set(EventKeyRollID, roll.RollID)
	event.Context().Set(EventKeyExpression, roll.Expression)
	event.Context().Set(EventKeyResult, roll.Result)
	event.Context().Set(EventKeyBreakdown, roll.Breakdown)
	event.Context().Set(EventKeyRoll, *roll)
	if err := o.eventBus.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish dice event",
			"entity_id", entityID,
			"roll_id", roll.RollID,
			"error", err,
		)
	}
}

// parseDiceNotation parses simple dice notation like "2d6" and returns count and size
func parseDiceNotation(notationStr string) (count, size int, err error) {
	matches := diceNotationRegex.FindStringSubmatch(strings.ToLower(notationStr))
	if len(matches) != 3 {
		return 0, 0, errors.InvalidArgumentf("invalid dice notation: %s (expected format: XdY)", notationStr)
	}

	count, err = strconv.Atoi(matches[1])
	if err != nil {
		return 0, 0, errors.InvalidArgumentf("invalid dice count in notation: %s", notationStr)
	}

	size, err = strconv.Atoi(matches[2])
	if err != nil {
		return 0, 0, errors.InvalidArgumentf("invalid die size in notation: %s", notationStr)
	}

	if count <= 0 || size <= 0 {
		return 0, 0, errors.InvalidArgumentf("dice count and size must be positive: %s", notationStr)
	}
	if count > notation.DefaultMaxDice || size > notation.DefaultMaxSides {
		return 0, 0, errors.InvalidArgumentf("dice notation too large: %s", notationStr)
	}

	return count, size, nil
}

func validateOwner(entityID, rollContext string) error {
	if entityID == "" {
		return errors.InvalidArgument("entity ID is required")
	}
	if rollContext == "" {
		return errors.InvalidArgument("context is required")
	}
	return nil
}

// rollOwner identifies the entity a roll event belongs to
type rollOwner struct {
	id string
}

func (r *rollOwner) GetID() string   { return r.id }
func (r *rollOwner) GetType() string { return "roll_owner" }

func toInt32s(values []int) []int32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v) // nolint:gosec // die faces are small
	}
	return out
}

func toSessionGroups(groups []notation.DiceGroup) []dicesession.DiceGroup {
	out := make([]dicesession.DiceGroup, len(groups))
	for i, g := range groups {
		out[i] = dicesession.DiceGroup{
			Notation: g.Notation,
			Count:    int32(g.Count), // nolint:gosec // bounded by notation limits
			Sides:    int32(g.Sides), // nolint:gosec // bounded by notation limits
			Rolls:    toInt32s(g.Rolls),
			Total:    int32(g.Total), // nolint:gosec // bounded by notation limits
		}
	}
	return out
}
