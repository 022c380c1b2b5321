package sheet_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	entity "github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/repositories/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/storage/sqlite"
)

type KVRepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *clock.Fixed
	store *sqlite.Store
	repo  sheet.Repository
}

func TestKVRepositorySuite(t *testing.T) {
	suite.Run(t, new(KVRepositoryTestSuite))
}

func (s *KVRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	store, err := sqlite.Open(filepath.Join(s.T().TempDir(), "sheet.db"))
	s.Require().NoError(err)
	s.store = store

	repo, err := sheet.NewKVRepository(&sheet.Config{Store: store, Clock: s.clock})
	s.Require().NoError(err)
	s.repo = repo
}

func (s *KVRepositoryTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *KVRepositoryTestSuite) newSheet(id string) *entity.Character {
	return entity.New(id, "Aria", "Rogue", 1, 10, s.clock.Now())
}

func (s *KVRepositoryTestSuite) TestNewKVRepositoryValidatesConfig() {
	_, err := sheet.NewKVRepository(&sheet.Config{})
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "Store")
}

func (s *KVRepositoryTestSuite) TestCreateAndGet() {
	out, err := s.repo.Create(s.ctx, sheet.CreateInput{Sheet: s.newSheet("sheet_1")})
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), out.Sheet.Version)

	got, err := s.repo.Get(s.ctx, sheet.GetInput{ID: "sheet_1"})
	s.Require().NoError(err)
	s.Assert().Equal("Aria", got.Sheet.Name)
	s.Assert().Equal(entity.DefaultScore, got.Sheet.Stats[entity.StatStrength])

	_, err = s.repo.Create(s.ctx, sheet.CreateInput{Sheet: s.newSheet("sheet_1")})
	s.Require().Error(err)
	s.Assert().True(errors.IsAlreadyExists(err))
}

func (s *KVRepositoryTestSuite) TestGetMissing() {
	_, err := s.repo.Get(s.ctx, sheet.GetInput{ID: "nope"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().Equal("nope", errors.GetMeta(err)["sheet_id"])
}

func (s *KVRepositoryTestSuite) TestUpdateChecksVersion() {
	created, err := s.repo.Create(s.ctx, sheet.CreateInput{Sheet: s.newSheet("sheet_1")})
	s.Require().NoError(err)

	first := created.Sheet.Clone()
	first.Name = "Aria the Bold"
	updated, err := s.repo.Update(s.ctx, sheet.UpdateInput{Sheet: first})
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), updated.Sheet.Version)

	stale := created.Sheet.Clone()
	stale.Name = "Stale"
	_, err = s.repo.Update(s.ctx, sheet.UpdateInput{Sheet: stale})
	s.Require().Error(err)
	s.Assert().True(errors.IsAborted(err))

	got, err := s.repo.Get(s.ctx, sheet.GetInput{ID: "sheet_1"})
	s.Require().NoError(err)
	s.Assert().Equal("Aria the Bold", got.Sheet.Name)
}

func (s *KVRepositoryTestSuite) TestListSkipsCorruptEntries() {
	for _, id := range []string{"b", "a"} {
		_, err := s.repo.Create(s.ctx, sheet.CreateInput{Sheet: s.newSheet(id)})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Set(s.ctx, "sheet:broken", []byte("{not json")))

	out, err := s.repo.List(s.ctx, sheet.ListInput{})
	s.Require().NoError(err)
	s.Require().Len(out.Sheets, 2)
	s.Assert().Equal("a", out.Sheets[0].ID)
	s.Assert().Contains(out.Corrupt, "sheet:broken")
}

func (s *KVRepositoryTestSuite) TestBackups() {
	c := s.newSheet("sheet_1")
	_, err := s.repo.Create(s.ctx, sheet.CreateInput{Sheet: c})
	s.Require().NoError(err)

	first, err := s.repo.SaveBackup(s.ctx, sheet.SaveBackupInput{Sheet: c})
	s.Require().NoError(err)
	s.clock.Advance(time.Minute)
	c.Name = "Later"
	second, err := s.repo.SaveBackup(s.ctx, sheet.SaveBackupInput{Sheet: c})
	s.Require().NoError(err)

	list, err := s.repo.ListBackups(s.ctx, sheet.ListBackupsInput{SheetID: "sheet_1"})
	s.Require().NoError(err)
	s.Require().Len(list.Backups, 2)
	s.Assert().Equal(second.Backup.Key, list.Backups[0].Key)
	s.Assert().Equal(first.Backup.Key, list.Backups[1].Key)
	s.Assert().Equal("sheet_1", list.Backups[0].SheetID)

	got, err := s.repo.GetBackup(s.ctx, sheet.GetBackupInput{Key: first.Backup.Key})
	s.Require().NoError(err)
	s.Assert().Equal("Aria", got.Sheet.Name)
	s.Assert().True(first.Backup.CreatedAt.Equal(got.Backup.CreatedAt))

	_, err = s.repo.GetBackup(s.ctx, sheet.GetBackupInput{Key: "sheet:1"})
	s.Assert().True(errors.IsInvalidArgument(err))

	deleted, err := s.repo.Delete(s.ctx, sheet.DeleteInput{ID: "sheet_1"})
	s.Require().NoError(err)
	s.Assert().Equal(2, deleted.BackupsDeleted)

	list, err = s.repo.ListBackups(s.ctx, sheet.ListBackupsInput{})
	s.Require().NoError(err)
	s.Assert().Empty(list.Backups)
}

func (s *KVRepositoryTestSuite) TestDeleteMissing() {
	_, err := s.repo.Delete(s.ctx, sheet.DeleteInput{ID: "nope"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *KVRepositoryTestSuite) TestBackupsMatchExactSheetID() {
	for _, id := range []string{"x", "x:y"} {
		c := s.newSheet(id)
		_, err := s.repo.Create(s.ctx, sheet.CreateInput{Sheet: c})
		s.Require().NoError(err)
		_, err = s.repo.SaveBackup(s.ctx, sheet.SaveBackupInput{Sheet: c})
		s.Require().NoError(err)
		s.clock.Advance(time.Second)
	}

	list, err := s.repo.ListBackups(s.ctx, sheet.ListBackupsInput{SheetID: "x"})
	s.Require().NoError(err)
	s.Require().Len(list.Backups, 1)
	s.Assert().Equal("x", list.Backups[0].SheetID)

	deleted, err := s.repo.Delete(s.ctx, sheet.DeleteInput{ID: "x"})
	s.Require().NoError(err)
	s.Assert().Equal(1, deleted.BackupsDeleted)

	list, err = s.repo.ListBackups(s.ctx, sheet.ListBackupsInput{SheetID: "x:y"})
	s.Require().NoError(err)
	s.Require().Len(list.Backups, 1)
	s.Assert().Equal("x:y", list.Backups[0].SheetID)
}
