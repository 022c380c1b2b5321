package suggest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KirkDiggler/rpg-sheet/internal/pkg/suggest"
)

func TestClosest(t *testing.T) {
	candidates := []string{"Longsword", "Shortbow", "Healing Potion", "Rope"}

	testCases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "typo", input: "longswrd", want: "Longsword", ok: true},
		{name: "case", input: "ROPE", want: "Rope", ok: true},
		{name: "prefix", input: "heal", want: "Healing Potion", ok: true},
		{name: "too far", input: "dagger", ok: false},
		{name: "blank", input: "  ", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := suggest.Closest(tc.input, candidates)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "did you mean Shortbow?", suggest.Message("shortbw", []string{"Shortbow"}))
	assert.Empty(t, suggest.Message("axe", nil))
}
