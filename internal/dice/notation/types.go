package notation

import (
	"fmt"
	"strings"

	"github.com/KirkDiggler/rpg-sheet/internal/dice/expression"
)

// DiceGroup is one rolled dice token
type DiceGroup struct {
	// Notation as written, lower-cased (e.g. "2d6", "d20")
	Notation string
	Count    int
	Sides    int
	Rolls    []int
	Total    int
}

// Expansion is an expression with every dice token replaced by its sum
type Expansion struct {
	Expression string
	Expanded   string
	Groups     []DiceGroup
}

// Result is an evaluated roll
type Result struct {
	Expansion
	Value     float64
	Breakdown string
}

// Breakdown renders the expansion with its result, e.g. "2d6+3 (2d6 [4, 5]) = 12"
func (e *Expansion) Breakdown(value float64) string {
	expr := strings.TrimSpace(e.Expression)
	if len(e.Groups) == 0 {
		return fmt.Sprintf("%s = %s", expr, expression.FormatNumber(value))
	}

	parts := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		rolls := make([]string, len(g.Rolls))
		for j, r := range g.Rolls {
			rolls[j] = fmt.Sprintf("%d", r)
		}
		parts[i] = fmt.Sprintf("%s [%s]", g.Notation, strings.Join(rolls, ", "))
	}

	return fmt.Sprintf("%s (%s) = %s", expr, strings.Join(parts, ", "), expression.FormatNumber(value))
}

// Dice returns every individual draw in token order
func (e *Expansion) Dice() []int {
	var all []int
	for _, g := range e.Groups {
		all = append(all, g.Rolls...)
	}
	return all
}

// DiceTotal sums every individual draw
func (e *Expansion) DiceTotal() int {
	total := 0
	for _, g := range e.Groups {
		total += g.Total
	}
	return total
}
