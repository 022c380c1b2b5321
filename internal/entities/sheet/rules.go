package sheet

import (
	"strings"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/suggest"
)

// TurnReport describes what changed when a turn advanced
type TurnReport struct {
	Turn int
	// Abilities whose cooldown finished this turn
	Ready []string
	// Debuffs that ran out this turn
	Expired []Debuff
}

// SetStat sets one score after range checking it
func (c *Character) SetStat(name string, score int) (Stat, error) {
	stat, ok := ParseStat(name)
	if !ok {
		return "", notFound("stat", name, StatNames())
	}
	if score < MinScore || score > MaxScore {
		return "", errors.InvalidArgumentf("%s score must be between %d and %d", stat, MinScore, MaxScore).
			WithMeta("stat", string(stat))
	}
	if c.Stats == nil {
		c.Stats = make(map[Stat]int, len(AllStats))
	}
	c.Stats[stat] = score
	return stat, nil
}

// AdjustHP heals (delta > 0) or damages (delta < 0). Damage drains temp hit points first.
// Current hit points stay within 0 and Max for any delta, including math.MinInt.
func (c *Character) AdjustHP(delta int) {
	if delta >= 0 {
		if delta >= c.HP.Max-c.HP.Current {
			c.HP.Current = c.HP.Max
			return
		}
		c.HP.Current += delta
		return
	}

	if delta >= -c.HP.Temp {
		c.HP.Temp += delta
		return
	}
	remaining := delta + c.HP.Temp
	c.HP.Temp = 0
	if remaining <= -c.HP.Current {
		c.HP.Current = 0
		return
	}
	c.HP.Current += remaining
}

// GrantTempHP replaces temp hit points when the new amount is higher; they do not stack
func (c *Character) GrantTempHP(amount int) error {
	if amount < 0 {
		return errors.InvalidArgument("temp hp must not be negative")
	}
	c.HP.Temp = max(c.HP.Temp, amount)
	return nil
}

// AddItem adds quantity of an item, merging with an existing entry of the same name
func (c *Character) AddItem(name string, quantity int, notes string) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, errors.InvalidArgument("item name is required")
	}
	if quantity < 1 || quantity > MaxQuantity {
		return Item{}, errors.InvalidArgumentf("quantity must be between 1 and %d", MaxQuantity)
	}

	if i := c.findItem(name); i >= 0 {
		if quantity > MaxQuantity-c.Inventory[i].Quantity {
			return Item{}, errors.InvalidArgumentf("%s would exceed %d", c.Inventory[i].Name, MaxQuantity).
				WithMeta("quantity", c.Inventory[i].Quantity)
		}
		c.Inventory[i].Quantity += quantity
		if notes != "" {
			c.Inventory[i].Notes = notes
		}
		return c.Inventory[i], nil
	}

	item := Item{Name: name, Quantity: quantity, Notes: notes}
	c.Inventory = append(c.Inventory, item)
	return item, nil
}

// RemoveItem removes quantity of an item. A quantity of zero, or one covering the whole
// stack, removes the entry. The returned item holds what is left.
func (c *Character) RemoveItem(name string, quantity int) (Item, error) {
	if quantity < 0 {
		return Item{}, errors.InvalidArgument("quantity must not be negative")
	}
	i := c.findItem(name)
	if i < 0 {
		return Item{}, notFound("item", name, c.itemNames())
	}

	item := c.Inventory[i]
	if quantity == 0 || quantity >= item.Quantity {
		c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
		item.Quantity = 0
		return item, nil
	}

	c.Inventory[i].Quantity -= quantity
	return c.Inventory[i], nil
}

// AddAbility registers a new ability, ready to use
func (c *Character) AddAbility(name, description string, cooldown int) (Ability, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ability{}, errors.InvalidArgument("ability name is required")
	}
	if cooldown < 0 {
		return Ability{}, errors.InvalidArgument("cooldown must not be negative")
	}
	if c.findAbility(name) >= 0 {
		return Ability{}, errors.AlreadyExistsf("ability %s already exists", name)
	}

	ability := Ability{Name: name, Description: description, Cooldown: cooldown}
	c.Abilities = append(c.Abilities, ability)
	return ability, nil
}

// RemoveAbility drops an ability
func (c *Character) RemoveAbility(name string) error {
	i := c.findAbility(name)
	if i < 0 {
		return notFound("ability", name, c.abilityNames())
	}
	c.Abilities = append(c.Abilities[:i], c.Abilities[i+1:]...)
	return nil
}

// UseAbility starts the ability's cooldown, failing while it is still cooling down
func (c *Character) UseAbility(name string) (Ability, error) {
	i := c.findAbility(name)
	if i < 0 {
		return Ability{}, notFound("ability", name, c.abilityNames())
	}

	a := &c.Abilities[i]
	if !a.Ready() {
		return Ability{}, errors.FailedPreconditionf("%s is on cooldown for %d more turn(s)", a.Name, a.Remaining).
			WithMeta("ability", a.Name).
			WithMeta("remaining", a.Remaining)
	}
	a.Remaining = a.Cooldown
	return *a, nil
}

// AddDebuff applies a debuff. Reapplying one by the same name refreshes it to the longer duration.
func (c *Character) AddDebuff(name, effect string, turns int) (Debuff, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Debuff{}, errors.InvalidArgument("debuff name is required")
	}
	if turns < 1 {
		return Debuff{}, errors.InvalidArgument("debuff must last at least 1 turn")
	}

	if i := c.findDebuff(name); i >= 0 {
		d := &c.Debuffs[i]
		d.Remaining = max(d.Remaining, turns)
		if effect != "" {
			d.Effect = effect
		}
		return *d, nil
	}

	debuff := Debuff{Name: name, Effect: effect, Remaining: turns}
	c.Debuffs = append(c.Debuffs, debuff)
	return debuff, nil
}

// RemoveDebuff clears a debuff early
func (c *Character) RemoveDebuff(name string) error {
	i := c.findDebuff(name)
	if i < 0 {
		return notFound("debuff", name, c.debuffNames())
	}
	c.Debuffs = append(c.Debuffs[:i], c.Debuffs[i+1:]...)
	return nil
}

// AdvanceTurn ticks every cooldown and debuff by one turn
func (c *Character) AdvanceTurn() TurnReport {
	c.Turn++
	report := TurnReport{Turn: c.Turn}

	for i := range c.Abilities {
		a := &c.Abilities[i]
		if a.Remaining == 0 {
			continue
		}
		a.Remaining--
		if a.Remaining == 0 {
			report.Ready = append(report.Ready, a.Name)
		}
	}

	kept := c.Debuffs[:0]
	for _, d := range c.Debuffs {
		d.Remaining--
		if d.Remaining <= 0 {
			report.Expired = append(report.Expired, d)
			continue
		}
		kept = append(kept, d)
	}
	c.Debuffs = kept

	return report
}

// ResetTurns returns the counter to zero and makes every ability ready
func (c *Character) ResetTurns() {
	c.Turn = 0
	for i := range c.Abilities {
		c.Abilities[i].Remaining = 0
	}
}

func (c *Character) findItem(name string) int {
	n := Normalize(name)
	for i, item := range c.Inventory {
		if Normalize(item.Name) == n {
			return i
		}
	}
	return -1
}

func (c *Character) findAbility(name string) int {
	n := Normalize(name)
	for i, a := range c.Abilities {
		if Normalize(a.Name) == n {
			return i
		}
	}
	return -1
}

func (c *Character) findDebuff(name string) int {
	n := Normalize(name)
	for i, d := range c.Debuffs {
		if Normalize(d.Name) == n {
			return i
		}
	}
	return -1
}

func (c *Character) itemNames() []string {
	names := make([]string, len(c.Inventory))
	for i, item := range c.Inventory {
		names[i] = item.Name
	}
	return names
}

func (c *Character) abilityNames() []string {
	names := make([]string, len(c.Abilities))
	for i, a := range c.Abilities {
		names[i] = a.Name
	}
	return names
}

func (c *Character) debuffNames() []string {
	names := make([]string, len(c.Debuffs))
	for i, d := range c.Debuffs {
		names[i] = d.Name
	}
	return names
}

// notFound builds a NotFound error carrying a suggestion when a known name is close
func notFound(kind, name string, known []string) error {
	err := errors.NotFoundf("%s %q not found", kind, strings.TrimSpace(name)).
		WithMeta(kind, name)
	if match, ok := suggest.Closest(name, known); ok {
		err = errors.NotFoundf("%s %q not found, did you mean %s?", kind, strings.TrimSpace(name), match).
			WithMeta(kind, name).
			WithMeta("suggestion", match)
	}
	return err
}
