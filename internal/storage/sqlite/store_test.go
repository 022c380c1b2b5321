package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/storage/sqlite"
)

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	path  string
	store *sqlite.Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "nested", "sheet.db")

	store, err := sqlite.Open(s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) TestOpenRequiresPath() {
	_, err := sqlite.Open("  ")
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *StoreTestSuite) TestSetGetOverwrite() {
	s.Require().NoError(s.store.Set(s.ctx, "sheet:1", []byte(`{"name":"Aria"}`)))

	got, err := s.store.Get(s.ctx, "sheet:1")
	s.Require().NoError(err)
	s.Assert().JSONEq(`{"name":"Aria"}`, string(got))

	s.Require().NoError(s.store.Set(s.ctx, "sheet:1", []byte(`{"name":"Bram"}`)))
	got, err = s.store.Get(s.ctx, "sheet:1")
	s.Require().NoError(err)
	s.Assert().JSONEq(`{"name":"Bram"}`, string(got))
}

func (s *StoreTestSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "sheet:missing")
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().Equal("sheet:missing", errors.GetMeta(err)["key"])
}

func (s *StoreTestSuite) TestDelete() {
	s.Require().NoError(s.store.Set(s.ctx, "sheet:1", []byte("x")))
	s.Require().NoError(s.store.Delete(s.ctx, "sheet:1"))

	err := s.store.Delete(s.ctx, "sheet:1")
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *StoreTestSuite) TestListByPrefix() {
	for _, key := range []string{"sheet:b", "sheet:a", "backup:a:1", "sheetx"} {
		s.Require().NoError(s.store.Set(s.ctx, key, []byte(key)))
	}

	entries, err := s.store.List(s.ctx, "sheet:")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Assert().Equal("sheet:a", entries[0].Key)
	s.Assert().Equal("sheet:b", entries[1].Key)
	s.Assert().False(entries[0].UpdatedAt.IsZero())

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Assert().Len(all, 4)
}

func (s *StoreTestSuite) TestReopenKeepsData() {
	s.Require().NoError(s.store.Set(s.ctx, "sheet:1", []byte("kept")))
	s.Require().NoError(s.store.Close())

	reopened, err := sqlite.Open(s.path)
	s.Require().NoError(err)
	s.store = reopened

	got, err := s.store.Get(s.ctx, "sheet:1")
	s.Require().NoError(err)
	s.Assert().Equal("kept", string(got))
	s.Require().NoError(s.store.Ping(s.ctx))
}
