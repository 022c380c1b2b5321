package idgen_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/rpg-sheet/internal/pkg/idgen"
)

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("sheet")
	assert.Equal(t, "sheet_1", g.Generate())
	assert.Equal(t, "sheet_2", g.Generate())

	assert.Equal(t, "1", idgen.NewSequential("").Generate())
}

func TestUUIDIsTimeOrdered(t *testing.T) {
	g := idgen.NewUUID("sheet")

	first := g.Generate()
	second := g.Generate()

	require.True(t, strings.HasPrefix(first, "sheet_"))
	parsed, err := uuid.Parse(strings.TrimPrefix(first, "sheet_"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Less(t, first, second)
}
