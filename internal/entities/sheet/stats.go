package sheet

import (
	"math"
	"strings"
)

// Stat is an ability score abbreviation
type Stat string

const (
	StatStrength     Stat = "STR"
	StatDexterity    Stat = "DEX"
	StatConstitution Stat = "CON"
	StatIntelligence Stat = "INT"
	StatWisdom       Stat = "WIS"
	StatCharisma     Stat = "CHA"
)

const (
	MinScore     = 1
	MaxScore     = 30
	DefaultScore = 10
)

// AllStats is every stat in sheet order
var AllStats = []Stat{
	StatStrength,
	StatDexterity,
	StatConstitution,
	StatIntelligence,
	StatWisdom,
	StatCharisma,
}

var statNames = map[string]Stat{
	"strength":     StatStrength,
	"dexterity":    StatDexterity,
	"constitution": StatConstitution,
	"intelligence": StatIntelligence,
	"wisdom":       StatWisdom,
	"charisma":     StatCharisma,
}

// Valid reports whether s is one of the six stats
func (s Stat) Valid() bool {
	for _, known := range AllStats {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStat accepts an abbreviation or full name in any case
func ParseStat(name string) (Stat, bool) {
	n := strings.TrimSpace(name)
	if s := Stat(strings.ToUpper(n)); s.Valid() {
		return s, true
	}
	s, ok := statNames[strings.ToLower(n)]
	return s, ok
}

// StatNames lists every accepted stat spelling, for suggestions
func StatNames() []string {
	names := make([]string, 0, len(AllStats)+len(statNames))
	for _, s := range AllStats {
		names = append(names, string(s))
	}
	for name := range statNames {
		names = append(names, name)
	}
	return names
}

// Modifier is floor((score - 10) / 2)
func Modifier(score int) int {
	return int(math.Floor(float64(score-10) / 2))
}
