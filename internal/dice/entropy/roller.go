package entropy

import (
	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

const (
	// ModeBlended uses a Source
	ModeBlended = "blended"
	// ModeToolkit uses the rpg-toolkit default crypto roller alone
	ModeToolkit = "toolkit"
)

// NewRoller returns the roller for the configured entropy mode
func NewRoller(mode string, cfg *Config) (dice.Roller, error) {
	switch mode {
	case "", ModeBlended:
		return New(cfg), nil
	case ModeToolkit:
		return dice.DefaultRoller, nil
	default:
		return nil, errors.InvalidArgumentf("unsupported entropy mode: %s", mode)
	}
}
