// Package notation expands dice tokens such as "3d8" or "d20" inside an arithmetic
// expression and evaluates the result.
package notation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-sheet/internal/dice/expression"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

const (
	// DefaultMaxDice caps the count of a single dice token
	DefaultMaxDice = 100
	// DefaultMaxSides caps the sides of a single dice token
	DefaultMaxSides = 1000
)

var diceTokenRegex = regexp.MustCompile(`(?i)(\d*)d(\d+)`)

// Limits bounds the size of a single dice token
type Limits struct {
	MaxDice  int
	MaxSides int
}

// Config holds the dependencies for an Expander
type Config struct {
	Roller dice.Roller
	Limits Limits
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.Limits.MaxDice < 0 {
		vb.InvalidField("Limits.MaxDice", "must not be negative")
	}
	if c.Limits.MaxSides < 0 {
		vb.InvalidField("Limits.MaxSides", "must not be negative")
	}
	return vb.Build()
}

// Expander replaces dice tokens with rolled sums
type Expander struct {
	roller dice.Roller
	limits Limits
}

// NewExpander creates an Expander. Zero limits fall back to the defaults.
func NewExpander(cfg *Config) (*Expander, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	limits := cfg.Limits
	if limits.MaxDice == 0 {
		limits.MaxDice = DefaultMaxDice
	}
	if limits.MaxSides == 0 {
		limits.MaxSides = DefaultMaxSides
	}

	return &Expander{
		roller: cfg.Roller,
		limits: limits,
	}, nil
}

// Expand rolls every dice token in expr. Any invalid token or leftover character fails
// the whole expression.
func (e *Expander) Expand(expr string) (*Expansion, error) {
	matches := diceTokenRegex.FindAllStringSubmatchIndex(expr, -1)

	var (
		b      strings.Builder
		groups []DiceGroup
		last   int
	)
	for _, m := range matches {
		start, end := m[0], m[1]
		if err := checkBoundaries(expr, start, end); err != nil {
			return nil, err
		}

		group, err := e.rollToken(expr[start:end], expr[m[2]:m[3]], expr[m[4]:m[5]], start)
		if err != nil {
			return nil, err
		}

		b.WriteString(expr[last:start])
		b.WriteString(strconv.Itoa(group.Total))
		last = end
		groups = append(groups, *group)
	}
	b.WriteString(expr[last:])

	expanded := b.String()
	for i := 0; i < len(expanded); i++ {
		if !expression.IsAllowed(expanded[i]) {
			return nil, errors.Parsef("invalid character %q in expression %q", rune(expanded[i]), expr)
		}
	}

	return &Expansion{
		Expression: expr,
		Expanded:   expanded,
		Groups:     groups,
	}, nil
}

// Roll expands expr and evaluates it
func (e *Expander) Roll(expr string) (*Result, error) {
	expansion, err := e.Expand(expr)
	if err != nil {
		return nil, err
	}

	value, err := expression.EvaluateString(expansion.Expanded)
	if err != nil {
		return nil, err
	}

	return &Result{
		Expansion: *expansion,
		Value:     value,
		Breakdown: expansion.Breakdown(value),
	}, nil
}

func (e *Expander) rollToken(token, countStr, sidesStr string, pos int) (*DiceGroup, error) {
	count := 1
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, invalidToken(token, pos, "dice count is not a number")
		}
		count = n
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return nil, invalidToken(token, pos, "die sides is not a number")
	}

	switch {
	case count <= 0:
		return nil, invalidToken(token, pos, "dice count must be positive")
	case sides <= 0:
		return nil, invalidToken(token, pos, "die sides must be positive")
	case count > e.limits.MaxDice:
		return nil, invalidToken(token, pos, fmt.Sprintf("at most %d dice per token", e.limits.MaxDice))
	case sides > e.limits.MaxSides:
		return nil, invalidToken(token, pos, fmt.Sprintf("at most %d sides per die", e.limits.MaxSides))
	}

	rolls, err := e.roller.RollN(count, sides)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %s", token)
	}

	total := 0
	for _, r := range rolls {
		total += r
	}

	return &DiceGroup{
		Notation: strings.ToLower(token),
		Count:    count,
		Sides:    sides,
		Rolls:    rolls,
		Total:    total,
	}, nil
}

// checkBoundaries rejects tokens glued to digits, other dice or parentheses, such as
// "2d6d6" or "(2)d6", which would otherwise collapse into a different number.
func checkBoundaries(expr string, start, end int) error {
	if start > 0 {
		switch c := expr[start-1]; {
		case c == 'd' || c == 'D' || c == ')' || (c >= '0' && c <= '9'):
			return invalidToken(expr[start:end], start, fmt.Sprintf("unexpected %q before dice", rune(c)))
		}
	}
	if end < len(expr) {
		switch c := expr[end]; {
		case c == 'd' || c == 'D' || c == '(':
			return invalidToken(expr[start:end], start, fmt.Sprintf("unexpected %q after dice", rune(c)))
		}
	}
	return nil
}

func invalidToken(token string, pos int, reason string) *errors.Error {
	return errors.Parsef("invalid dice %q at position %d: %s", token, pos, reason).
		WithMeta("token", token)
}
