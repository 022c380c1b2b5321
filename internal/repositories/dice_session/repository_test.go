package dicesession_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
	"github.com/KirkDiggler/rpg-sheet/internal/testutils"
)

// RepositoryTestSuite runs the same behaviour checks against every implementation
type RepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *clock.Fixed
	repo  dicesession.Repository

	newRepo func(s *RepositoryTestSuite) dicesession.Repository
	// expire moves both the repository clock and any backing store past ttl
	expire func(s *RepositoryTestSuite, d time.Duration)
}

func TestRedisRepository(t *testing.T) {
	var mrAdvance func(time.Duration)
	suite.Run(t, &RepositoryTestSuite{
		newRepo: func(s *RepositoryTestSuite) dicesession.Repository {
			client, mr := testutils.CreateTestRedisClient(s.T())
			mrAdvance = mr.FastForward
			repo, err := dicesession.NewRedisRepository(&dicesession.Config{
				Client: client,
				Clock:  s.clock,
			})
			s.Require().NoError(err)
			return repo
		},
		expire: func(s *RepositoryTestSuite, d time.Duration) {
			s.clock.Advance(d)
			mrAdvance(d)
		},
	})
}

func TestInMemoryRepository(t *testing.T) {
	suite.Run(t, &RepositoryTestSuite{
		newRepo: func(s *RepositoryTestSuite) dicesession.Repository {
			return dicesession.NewInMemory(s.clock)
		},
		expire: func(s *RepositoryTestSuite, d time.Duration) {
			s.clock.Advance(d)
		},
	})
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFixed(time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC))
	s.repo = s.newRepo(s)
}

func testRoll(id string, result float64) dicesession.DiceRoll {
	return dicesession.DiceRoll{
		RollID:     id,
		Expression: "2d6+3",
		Groups: []dicesession.DiceGroup{
			{Notation: "2d6", Count: 2, Sides: 6, Rolls: []int32{4, 5}, Total: 9},
		},
		Dice:      []int32{4, 5},
		Result:    result,
		DiceTotal: 9,
		Breakdown: "2d6+3 (2d6 [4, 5]) = 12",
	}
}

func (s *RepositoryTestSuite) TestCreateAndGet() {
	created, err := s.repo.Create(s.ctx, dicesession.CreateInput{
		EntityID: "sheet_1",
		Context:  "combat",
		Rolls:    []dicesession.DiceRoll{testRoll("roll_1", 12)},
		TTL:      10 * time.Minute,
	})
	s.Require().NoError(err)
	s.Assert().Equal(s.clock.Now().Add(10*time.Minute), created.Session.ExpiresAt)

	got, err := s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Require().Len(got.Session.Rolls, 1)
	s.Assert().Equal("2d6+3 (2d6 [4, 5]) = 12", got.Session.Rolls[0].Breakdown)
	s.Assert().Equal([]int32{4, 5}, got.Session.Rolls[0].Groups[0].Rolls)
	s.Assert().Equal(12.0, got.Session.Rolls[0].Result)
}

func (s *RepositoryTestSuite) TestGetMissing() {
	_, err := s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "nobody", Context: "combat"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().Equal("nobody", errors.GetMeta(err)["entity_id"])
}

func (s *RepositoryTestSuite) TestValidation() {
	_, err := s.repo.Create(s.ctx, dicesession.CreateInput{Context: "combat"})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1"})
	s.Assert().True(errors.IsInvalidArgument(err))

	s.Assert().True(errors.IsInvalidArgument(s.repo.Update(s.ctx, nil)))
}

func (s *RepositoryTestSuite) TestUpdateKeepsHistoryOrder() {
	created, err := s.repo.Create(s.ctx, dicesession.CreateInput{
		EntityID: "sheet_1",
		Context:  "combat",
		Rolls:    []dicesession.DiceRoll{testRoll("roll_1", 1)},
	})
	s.Require().NoError(err)

	session := created.Session
	session.Push(testRoll("roll_2", 2), 2)
	session.Push(testRoll("roll_3", 3), 2)
	s.Require().NoError(s.repo.Update(s.ctx, session))

	got, err := s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Require().Len(got.Session.Rolls, 2)
	s.Assert().Equal("roll_3", got.Session.Rolls[0].RollID)
	s.Assert().Equal("roll_2", got.Session.Rolls[1].RollID)
}

func (s *RepositoryTestSuite) TestExpiry() {
	_, err := s.repo.Create(s.ctx, dicesession.CreateInput{
		EntityID: "sheet_1",
		Context:  "combat",
		TTL:      time.Minute,
	})
	s.Require().NoError(err)

	s.expire(s, 2*time.Minute)

	_, err = s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1", Context: "combat"})
	s.Assert().True(errors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestUpdateExpiredSession() {
	created, err := s.repo.Create(s.ctx, dicesession.CreateInput{
		EntityID: "sheet_1",
		Context:  "combat",
		TTL:      time.Minute,
	})
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Minute)

	err = s.repo.Update(s.ctx, created.Session)
	s.Assert().True(errors.IsFailedPrecondition(err))
}

func (s *RepositoryTestSuite) TestDeleteCountsRolls() {
	_, err := s.repo.Create(s.ctx, dicesession.CreateInput{
		EntityID: "sheet_1",
		Context:  "combat",
		Rolls:    []dicesession.DiceRoll{testRoll("a", 1), testRoll("b", 2), testRoll("c", 3)},
	})
	s.Require().NoError(err)

	out, err := s.repo.Delete(s.ctx, dicesession.DeleteInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(3), out.RollsDeleted)

	_, err = s.repo.Get(s.ctx, dicesession.GetInput{EntityID: "sheet_1", Context: "combat"})
	s.Assert().True(errors.IsNotFound(err))

	out, err = s.repo.Delete(s.ctx, dicesession.DeleteInput{EntityID: "sheet_1", Context: "combat"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(0), out.RollsDeleted)
}

func TestDiceSessionPush(t *testing.T) {
	session := &dicesession.DiceSession{}
	for i, id := range []string{"a", "b", "c", "d"} {
		session.Push(dicesession.DiceRoll{RollID: id, Result: float64(i)}, 3)
	}

	ids := make([]string, 0, len(session.Rolls))
	for _, r := range session.Rolls {
		ids = append(ids, r.RollID)
	}
	if len(ids) != 3 || ids[0] != "d" || ids[1] != "c" || ids[2] != "b" {
		t.Fatalf("unexpected history order: %v", ids)
	}

	unbounded := &dicesession.DiceSession{}
	for i := 0; i < 5; i++ {
		unbounded.Push(dicesession.DiceRoll{}, 0)
	}
	if len(unbounded.Rolls) != 5 {
		t.Fatalf("expected 5 rolls, got %d", len(unbounded.Rolls))
	}
}
