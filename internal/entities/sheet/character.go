// Package sheet holds the character sheet entity and the rules that keep it consistent
package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/core"
)

// EntityType is the core.Entity type of a character sheet
const EntityType = "character_sheet"

const (
	MinLevel = 1
	MaxLevel = 20

	// MaxQuantity caps one inventory stack
	MaxQuantity = 999_999
)

// Character is one character sheet
type Character struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Class     string       `json:"class,omitempty" yaml:"class,omitempty"`
	Level     int          `json:"level" yaml:"level"`
	HP        HitPoints    `json:"hp" yaml:"hp"`
	Stats     map[Stat]int `json:"stats" yaml:"stats"`
	Inventory []Item       `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Abilities []Ability    `json:"abilities,omitempty" yaml:"abilities,omitempty"`
	Debuffs   []Debuff     `json:"debuffs,omitempty" yaml:"debuffs,omitempty"`
	Turn      int          `json:"turn" yaml:"turn"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"updated_at"`
	Version   int64        `json:"version" yaml:"version"`
}

// HitPoints tracks current, maximum and temporary hit points
type HitPoints struct {
	Current int `json:"current" yaml:"current"`
	Max     int `json:"max" yaml:"max"`
	Temp    int `json:"temp,omitempty" yaml:"temp,omitempty"`
}

// Item is an inventory entry
type Item struct {
	Name     string `json:"name" yaml:"name"`
	Quantity int    `json:"quantity" yaml:"quantity"`
	Notes    string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Ability is something the character can use, then wait Cooldown turns to use again
type Ability struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Cooldown    int    `json:"cooldown" yaml:"cooldown"`
	// Turns left before the ability is ready again
	Remaining int `json:"remaining,omitempty" yaml:"remaining,omitempty"`
}

// Ready reports whether the ability can be used now
func (a Ability) Ready() bool {
	return a.Remaining == 0
}

// Debuff is a temporary condition that expires after Remaining turns
type Debuff struct {
	Name      string `json:"name" yaml:"name"`
	Effect    string `json:"effect,omitempty" yaml:"effect,omitempty"`
	Remaining int    `json:"remaining" yaml:"remaining"`
}

// New returns a sheet with every stat at the default score and full hit points
func New(id, name, class string, level, maxHP int, now time.Time) *Character {
	stats := make(map[Stat]int, len(AllStats))
	for _, s := range AllStats {
		stats[s] = DefaultScore
	}
	return &Character{
		ID:        id,
		Name:      name,
		Class:     class,
		Level:     level,
		HP:        HitPoints{Current: maxHP, Max: maxHP},
		Stats:     stats,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID returns the sheet's ID
func (c *Character) GetID() string {
	return c.ID
}

// GetType returns the entity type for rpg-toolkit
func (c *Character) GetType() string {
	return EntityType
}

var _ core.Entity = (*Character)(nil)

// Clone returns a deep copy
func (c *Character) Clone() *Character {
	out := *c
	out.Stats = make(map[Stat]int, len(c.Stats))
	for k, v := range c.Stats {
		out.Stats[k] = v
	}
	out.Inventory = append([]Item(nil), c.Inventory...)
	out.Abilities = append([]Ability(nil), c.Abilities...)
	out.Debuffs = append([]Debuff(nil), c.Debuffs...)
	return &out
}

// Validate lists every rule the sheet breaks. An empty result means the sheet is consistent.
func (c *Character) Validate() []string {
	var issues []string
	add := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if c.ID == "" {
		add("id is required")
	}
	if strings.Contains(c.ID, ":") {
		add("id %q must not contain ':'", c.ID)
	}
	if strings.TrimSpace(c.Name) == "" {
		add("name is required")
	}
	if c.Level < MinLevel || c.Level > MaxLevel {
		add("level %d is outside %d-%d", c.Level, MinLevel, MaxLevel)
	}
	if c.HP.Max < 1 {
		add("max hp must be at least 1")
	}
	if c.HP.Current < 0 || c.HP.Current > c.HP.Max {
		add("current hp %d is outside 0-%d", c.HP.Current, c.HP.Max)
	}
	if c.HP.Temp < 0 {
		add("temp hp must not be negative")
	}
	for _, s := range AllStats {
		score, ok := c.Stats[s]
		if !ok {
			add("stat %s is missing", s)
			continue
		}
		if score < MinScore || score > MaxScore {
			add("stat %s score %d is outside %d-%d", s, score, MinScore, MaxScore)
		}
	}
	for s := range c.Stats {
		if !s.Valid() {
			add("unknown stat %s", s)
		}
	}
	seen := make(map[string]bool)
	for _, item := range c.Inventory {
		key := "item:" + Normalize(item.Name)
		if seen[key] {
			add("item %s is listed twice", item.Name)
		}
		seen[key] = true
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			add("item %s quantity %d is outside 1-%d", item.Name, item.Quantity, MaxQuantity)
		}
	}
	for _, a := range c.Abilities {
		key := "ability:" + Normalize(a.Name)
		if seen[key] {
			add("ability %s is listed twice", a.Name)
		}
		seen[key] = true
		if a.Cooldown < 0 {
			add("ability %s cooldown must not be negative", a.Name)
		}
		if a.Remaining < 0 || a.Remaining > a.Cooldown {
			add("ability %s remaining cooldown %d is outside 0-%d", a.Name, a.Remaining, a.Cooldown)
		}
	}
	for _, d := range c.Debuffs {
		key := "debuff:" + Normalize(d.Name)
		if seen[key] {
			add("debuff %s is listed twice", d.Name)
		}
		seen[key] = true
		if d.Remaining < 1 {
			add("debuff %s must have at least 1 turn remaining", d.Name)
		}
	}
	if c.Turn < 0 {
		add("turn must not be negative")
	}

	return issues
}

// Normalize is the comparison form of a name
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
