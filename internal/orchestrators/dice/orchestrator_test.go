package dice_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/idgen"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
	dicesessionmock "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session/mock"
)

// scriptedRoller hands out queued values in order
type scriptedRoller struct {
	mu     sync.Mutex
	values []int
}

func (r *scriptedRoller) queue(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, values...)
}

func (r *scriptedRoller) Roll(_ int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[0]
	r.values = r.values[1:]
	return v, nil
}

func (r *scriptedRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		v, err := r.Roll(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// blockingRoller parks every roll until released
type blockingRoller struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRoller) Roll(_ int) (int, error) {
	r.entered <- struct{}{}
	<-r.release
	return 1, nil
}

func (r *blockingRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		v, _ := r.Roll(size)
		out[i] = v
	}
	return out, nil
}

type OrchestratorTestSuite struct {
	suite.Suite
	ctx    context.Context
	clock  *clock.Fixed
	roller *scriptedRoller
	repo   *dicesession.InMemoryRepository
	bus    *events.Bus
	orch   dice.Service
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFixed(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	s.roller = &scriptedRoller{}
	s.repo = dicesession.NewInMemory(s.clock)
	s.bus = events.NewBus()

	orch, err := dice.NewOrchestrator(&dice.Config{
		DiceSessionRepo: s.repo,
		IDGenerator:     idgen.NewSequential("roll"),
		Roller:          s.roller,
		Clock:           s.clock,
		EventBus:        s.bus,
		HistoryLimit:    3,
	})
	s.Require().NoError(err)
	s.orch = orch
}

func (s *OrchestratorTestSuite) TestNewOrchestratorValidatesConfig() {
	_, err := dice.NewOrchestrator(nil)
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = dice.NewOrchestrator(&dice.Config{})
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "DiceSessionRepo")
	s.Assert().Contains(err.Error(), "Roller")
}

func (s *OrchestratorTestSuite) TestRollExpression() {
	s.roller.queue(4, 5)

	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{
		EntityID:    "sheet_1",
		Context:     "combat",
		Expression:  " 2d6+3 ",
		Description: "longsword",
	})
	s.Require().NoError(err)

	s.Assert().Equal("roll_1", out.Roll.RollID)
	s.Assert().Equal("2d6+3", out.Roll.Expression)
	s.Assert().Equal(12.0, out.Roll.Result)
	s.Assert().Equal([]int32{4, 5}, out.Roll.Dice)
	s.Assert().Equal(int32(9), out.Roll.DiceTotal)
	s.Assert().Equal("2d6+3 (2d6 [4, 5]) = 12", out.Roll.Breakdown)
	s.Assert().Equal("longsword", out.Roll.Description)
	s.Require().Len(out.Roll.Groups, 1)
	s.Assert().Equal(int32(6), out.Roll.Groups[0].Sides)
	s.Assert().Len(out.Session.Rolls, 1)
	s.Assert().Equal(s.clock.Now().Add(dice.DefaultSessionTTL), out.Session.ExpiresAt)
}

func (s *OrchestratorTestSuite) TestRollExpressionPublishesRoll() {
	var got []events.Event
	s.bus.SubscribeFunc(dice.EventDiceRolled, 0, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	s.roller.queue(6)
	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1d6*2"})
	s.Require().NoError(err)

	_, err = s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1/0"})
	s.Require().Error(err)

	s.Require().Len(got, 1)
	e := got[0]
	s.Assert().Equal("sheet_1", e.Source().GetID())

	payload := map[string]interface{}{}
	for _, key := range []string{dice.EventKeyRollID, dice.EventKeyExpression, dice.EventKeyResult, dice.EventKeyBreakdown} {
		v, ok := e.Context().Get(key)
		s.Require().True(ok, key)
		payload[key] = v
	}
	s.Assert().Equal(map[string]interface{}{
		dice.EventKeyRollID:     out.Roll.RollID,
		dice.EventKeyExpression: "1d6*2",
		dice.EventKeyResult:     12.0,
		dice.EventKeyBreakdown:  out.Roll.Breakdown,
	}, payload)

	roll, ok := e.Context().Get(dice.EventKeyRoll)
	s.Require().True(ok)
	s.Assert().Equal(*out.Roll, roll)
}

func (s *OrchestratorTestSuite) TestRollExpressionNewestFirst() {
	s.roller.queue(17)
	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1+1"})
	s.Require().NoError(err)

	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "d20"})
	s.Require().NoError(err)

	s.Require().Len(out.Session.Rolls, 2)
	s.Assert().Equal("d20", out.Session.Rolls[0].Expression)
	s.Assert().Equal(17.0, out.Session.Rolls[0].Result)
	s.Assert().Equal("1+1", out.Session.Rolls[1].Expression)
}

func (s *OrchestratorTestSuite) TestRollExpressionHistoryIsCapped() {
	for _, expr := range []string{"1", "2", "3", "4", "5"} {
		_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: expr})
		s.Require().NoError(err)
	}

	got, err := s.orch.GetRollSession(s.ctx, &dice.GetRollSessionInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Require().Len(got.Session.Rolls, 3)
	s.Assert().Equal(5.0, got.Session.Rolls[0].Result)
	s.Assert().Equal(3.0, got.Session.Rolls[2].Result)
}

func (s *OrchestratorTestSuite) TestRollExpressionErrorLeavesHistoryUntouched() {
	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "2+2"})
	s.Require().NoError(err)

	testCases := []struct {
		name  string
		expr  string
		check func(error) bool
	}{
		{name: "parse error", expr: "2+", check: errors.IsInvalidArgument},
		{name: "division by zero", expr: "1/0", check: errors.IsOutOfRange},
		{name: "forbidden character", expr: "2+3;rm", check: errors.IsInvalidArgument},
		{name: "too long", expr: strings.Repeat("1", dice.DefaultMaxExpressionLength+1), check: errors.IsInvalidArgument},
		{name: "blank", expr: "   ", check: errors.IsInvalidArgument},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: tc.expr})
			s.Require().Error(err)
			s.Assert().True(tc.check(err), "unexpected error: %v", err)

			got, err := s.orch.GetRollSession(s.ctx, &dice.GetRollSessionInput{EntityID: "sheet_1", Context: "combat"})
			s.Require().NoError(err)
			s.Assert().Len(got.Session.Rolls, 1)
		})
	}
}

func (s *OrchestratorTestSuite) TestRollExpressionBeyondMaxMagnitude() {
	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{
		EntityID:     "sheet_1",
		Context:      "combat",
		Expression:   "100000*100000",
		MaxMagnitude: math.MaxInt32,
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsOutOfRange(err))
	s.Assert().True(errors.IsArithmetic(err))

	_, err = s.orch.GetRollSession(s.ctx, &dice.GetRollSessionInput{EntityID: "sheet_1", Context: "combat"})
	s.Assert().True(errors.IsNotFound(err))

	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "100000*100000"})
	s.Require().NoError(err)
	s.Assert().Equal(1e10, out.Roll.Result)
}

func (s *OrchestratorTestSuite) TestRollExpressionRequiresOwner() {
	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{Context: "combat", Expression: "1"})
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "entity ID is required")

	_, err = s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Expression: "1"})
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "context is required")

	_, err = s.orch.RollExpression(s.ctx, nil)
	s.Require().Error(err)
}

func (s *OrchestratorTestSuite) TestRollExpressionAfterExpiryStartsFresh() {
	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1"})
	s.Require().NoError(err)

	s.clock.Advance(dice.DefaultSessionTTL + time.Second)

	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "2"})
	s.Require().NoError(err)
	s.Assert().Len(out.Session.Rolls, 1)
	s.Assert().Equal(s.clock.Now(), out.Session.CreatedAt)
}

func (s *OrchestratorTestSuite) TestRollDiceDropLowest() {
	s.roller.queue(3, 1, 6, 4)

	out, err := s.orch.RollDice(s.ctx, &dice.RollDiceInput{
		EntityID:   "sheet_1",
		Context:    "stats",
		Notation:   "4D6",
		DropLowest: 1,
	})
	s.Require().NoError(err)

	s.Assert().Equal("4d6", out.Roll.Expression)
	s.Assert().Equal([]int32{3, 6, 4}, out.Roll.Dice)
	s.Assert().Equal([]int32{1}, out.Roll.Dropped)
	s.Assert().Equal(13.0, out.Roll.Result)
	s.Assert().Equal("4d6 (4d6 [3, 1, 6, 4]) = 13, dropped [1]", out.Roll.Breakdown)
}

func (s *OrchestratorTestSuite) TestRollDiceRejectsBadInput() {
	testCases := []struct {
		name  string
		input *dice.RollDiceInput
		msg   string
	}{
		{name: "missing notation", input: &dice.RollDiceInput{EntityID: "e", Context: "c"}, msg: "dice notation is required"},
		{name: "expression", input: &dice.RollDiceInput{EntityID: "e", Context: "c", Notation: "2d6+1"}, msg: "invalid dice notation"},
		{name: "zero dice", input: &dice.RollDiceInput{EntityID: "e", Context: "c", Notation: "0d6"}, msg: "must be positive"},
		{name: "too many dice", input: &dice.RollDiceInput{EntityID: "e", Context: "c", Notation: "101d6"}, msg: "too large"},
		{name: "drop all", input: &dice.RollDiceInput{EntityID: "e", Context: "c", Notation: "2d6", DropLowest: 2}, msg: "drop lowest"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.orch.RollDice(s.ctx, tc.input)
			s.Require().Error(err)
			s.Assert().True(errors.IsInvalidArgument(err))
			s.Assert().Contains(err.Error(), tc.msg)
		})
	}
}

func (s *OrchestratorTestSuite) TestRollAbilityScoresStandard() {
	for i := 0; i < 6; i++ {
		s.roller.queue(2, 3, 4, 5)
	}

	out, err := s.orch.RollAbilityScores(s.ctx, &dice.RollAbilityScoresInput{EntityID: "sheet_1"})
	s.Require().NoError(err)

	s.Require().Len(out.Rolls, 6)
	for _, roll := range out.Rolls {
		s.Assert().Equal(12.0, roll.Result)
		s.Assert().Equal([]int32{2}, roll.Dropped)
	}
	s.Assert().Equal("Ability Score 1 (4d6_drop_lowest)", out.Rolls[0].Description)
	s.Assert().Equal(dice.ContextAbilityScores, out.Session.Context)
	s.Require().Len(out.Session.Rolls, 6)
	s.Assert().Equal("Ability Score 6 (4d6_drop_lowest)", out.Session.Rolls[0].Description)
}

func (s *OrchestratorTestSuite) TestRollAbilityScoresClassic() {
	for i := 0; i < 6; i++ {
		s.roller.queue(1, 2, 3)
	}

	out, err := s.orch.RollAbilityScores(s.ctx, &dice.RollAbilityScoresInput{EntityID: "sheet_1", Method: dice.MethodClassic})
	s.Require().NoError(err)
	s.Require().Len(out.Rolls, 6)
	s.Assert().Equal(6.0, out.Rolls[0].Result)
	s.Assert().Empty(out.Rolls[0].Dropped)
}

func (s *OrchestratorTestSuite) TestRollAbilityScoresUnsupportedMethod() {
	_, err := s.orch.RollAbilityScores(s.ctx, &dice.RollAbilityScoresInput{EntityID: "sheet_1", Method: "point_buy"})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestClearRollSession() {
	for _, expr := range []string{"1", "2"} {
		_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: expr})
		s.Require().NoError(err)
	}

	out, err := s.orch.ClearRollSession(s.ctx, &dice.ClearRollSessionInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(2), out.RollsDeleted)

	_, err = s.orch.GetRollSession(s.ctx, &dice.GetRollSessionInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestConcurrentRollIsAborted() {
	roller := &blockingRoller{entered: make(chan struct{}), release: make(chan struct{})}
	orch, err := dice.NewOrchestrator(&dice.Config{
		DiceSessionRepo: s.repo,
		IDGenerator:     idgen.NewSequential("roll"),
		Roller:          roller,
		Clock:           s.clock,
	})
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "d6"})
		done <- err
	}()
	<-roller.entered

	_, err = orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1"})
	s.Require().Error(err)
	s.Assert().True(errors.IsAborted(err))

	// other contexts are independent
	_, err = orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "skills", Expression: "1"})
	s.Require().NoError(err)

	close(roller.release)
	s.Require().NoError(<-done)

	_, err = orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1"})
	s.Require().NoError(err)
}

type OrchestratorRepoErrorTestSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	mockRepo *dicesessionmock.MockRepository
	orch     dice.Service
}

func TestOrchestratorRepoErrorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorRepoErrorTestSuite))
}

func (s *OrchestratorRepoErrorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockRepo = dicesessionmock.NewMockRepository(s.ctrl)

	orch, err := dice.NewOrchestrator(&dice.Config{
		DiceSessionRepo: s.mockRepo,
		IDGenerator:     idgen.NewSequential("roll"),
		Roller:          &scriptedRoller{},
		Clock:           clock.NewFixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	s.Require().NoError(err)
	s.orch = orch
}

func (s *OrchestratorRepoErrorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorRepoErrorTestSuite) TestGetFailurePropagatesCode() {
	s.mockRepo.EXPECT().
		Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1", Context: "combat"}).
		Return(nil, errors.Unavailable("redis down"))

	_, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "1"})
	s.Require().Error(err)
	s.Assert().Equal(errors.CodeUnavailable, errors.GetCode(err))
}

func (s *OrchestratorRepoErrorTestSuite) TestExpiredOnUpdateCreatesNewSession() {
	existing := &dicesession.DiceSession{EntityID: "sheet_1", Context: "combat", Rolls: []dicesession.DiceRoll{{RollID: "old"}}}

	s.mockRepo.EXPECT().
		Get(s.ctx, gomock.Any()).
		Return(&dicesession.GetOutput{Session: existing}, nil)
	s.mockRepo.EXPECT().
		Update(s.ctx, gomock.Any()).
		Return(errors.FailedPreconditionf("dice session has expired"))
	s.mockRepo.EXPECT().
		Create(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input dicesession.CreateInput) (*dicesession.CreateOutput, error) {
			s.Assert().Len(input.Rolls, 1)
			s.Assert().Equal(dice.DefaultSessionTTL, input.TTL)
			return &dicesession.CreateOutput{Session: &dicesession.DiceSession{EntityID: input.EntityID, Context: input.Context, Rolls: input.Rolls}}, nil
		})

	out, err := s.orch.RollExpression(s.ctx, &dice.RollExpressionInput{EntityID: "sheet_1", Context: "combat", Expression: "7"})
	s.Require().NoError(err)
	s.Assert().Len(out.Session.Rolls, 1)
	s.Assert().Equal(7.0, out.Session.Rolls[0].Result)
}

func (s *OrchestratorRepoErrorTestSuite) TestClearFailure() {
	s.mockRepo.EXPECT().
		Delete(s.ctx, dicesession.DeleteInput{EntityID: "sheet_1", Context: "combat"}).
		Return(nil, errors.Internal("boom"))

	_, err := s.orch.ClearRollSession(s.ctx, &dice.ClearRollSessionInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "failed to delete dice session")
}
