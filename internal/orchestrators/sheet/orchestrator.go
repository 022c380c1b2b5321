// Package sheet implements the character sheet orchestrator
package sheet

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/idgen"
	sheetrepo "github.com/KirkDiggler/rpg-sheet/internal/repositories/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/storage"
)

// Events published by the orchestrator
const (
	EventTurnAdvanced = "sheet.turn_advanced"
	EventAbilityUsed  = "sheet.ability_used"
)

// Context keys set on published events
const (
	// EventKeyReport holds the sheet.TurnReport of EventTurnAdvanced
	EventKeyReport = "report"
	// EventKeyAbility holds the sheet.Ability of EventAbilityUsed
	EventKeyAbility = "ability"
)

// Service defines the interface for sheet operations
type Service interface {
	CreateSheet(ctx context.Context, input *CreateSheetInput) (*CreateSheetOutput, error)
	GetSheet(ctx context.Context, input *GetSheetInput) (*GetSheetOutput, error)
	ListSheets(ctx context.Context, input *ListSheetsInput) (*ListSheetsOutput, error)
	DeleteSheet(ctx context.Context, input *DeleteSheetInput) (*DeleteSheetOutput, error)

	// Stats
	SetStat(ctx context.Context, input *SetStatInput) (*SheetOutput, error)
	RollStats(ctx context.Context, input *RollStatsInput) (*RollStatsOutput, error)
	AdjustHP(ctx context.Context, input *AdjustHPInput) (*SheetOutput, error)

	// Inventory
	AddItem(ctx context.Context, input *AddItemInput) (*ItemOutput, error)
	RemoveItem(ctx context.Context, input *RemoveItemInput) (*ItemOutput, error)

	// Abilities and debuffs
	AddAbility(ctx context.Context, input *AddAbilityInput) (*AbilityOutput, error)
	UseAbility(ctx context.Context, input *UseAbilityInput) (*AbilityOutput, error)
	RemoveAbility(ctx context.Context, input *RemoveAbilityInput) (*SheetOutput, error)
	AddDebuff(ctx context.Context, input *AddDebuffInput) (*DebuffOutput, error)
	RemoveDebuff(ctx context.Context, input *RemoveDebuffInput) (*SheetOutput, error)

	// Turn counter
	AdvanceTurn(ctx context.Context, input *AdvanceTurnInput) (*AdvanceTurnOutput, error)
	ResetTurns(ctx context.Context, input *ResetTurnsInput) (*SheetOutput, error)

	// Save, export and diagnostics
	Export(ctx context.Context, input *ExportInput) (*ExportOutput, error)
	Import(ctx context.Context, input *ImportInput) (*ImportOutput, error)
	Backup(ctx context.Context, input *BackupInput) (*BackupOutput, error)
	ListBackups(ctx context.Context, input *ListBackupsInput) (*ListBackupsOutput, error)
	RestoreBackup(ctx context.Context, input *RestoreBackupInput) (*SheetOutput, error)
	Diagnose(ctx context.Context, input *DiagnoseInput) (*DiagnoseOutput, error)
}

// Config holds the dependencies for the sheet orchestrator
type Config struct {
	SheetRepo   sheetrepo.Repository
	DiceService dice.Service
	IDGenerator idgen.Generator
	Clock       clock.Clock

	// Store is pinged by Diagnose when set
	Store storage.KV
	// EventBus is optional
	EventBus events.EventBus
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.SheetRepo == nil {
		vb.RequiredField("SheetRepo")
	}
	if c.DiceService == nil {
		vb.RequiredField("DiceService")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	return vb.Build()
}

type orchestrator struct {
	sheetRepo   sheetrepo.Repository
	diceService dice.Service
	idGen       idgen.Generator
	clock       clock.Clock
	store       storage.KV
	eventBus    events.EventBus

	// serializes read-modify-write cycles
	mu sync.Mutex
}

// NewOrchestrator creates a new sheet orchestrator
func NewOrchestrator(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &orchestrator{
		sheetRepo:   cfg.SheetRepo,
		diceService: cfg.DiceService,
		idGen:       cfg.IDGenerator,
		clock:       cfg.Clock,
		store:       cfg.Store,
		eventBus:    cfg.EventBus,
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return o, nil
}

func (o *orchestrator) CreateSheet(ctx context.Context, input *CreateSheetInput) (*CreateSheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	vb := errors.NewValidationBuilder()
	name := strings.TrimSpace(input.Name)
	errors.ValidateRequired("name", name, vb)
	level := input.Level
	if level == 0 {
		level = sheet.MinLevel
	}
	errors.ValidateRange("level", level, sheet.MinLevel, sheet.MaxLevel, vb)
	if input.MaxHP < 1 {
		vb.InvalidField("max_hp", "must be at least 1")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	c := sheet.New(o.idGen.Generate(), name, strings.TrimSpace(input.Class), level, input.MaxHP, o.clock.Now())
	out, err := o.sheetRepo.Create(ctx, sheetrepo.CreateInput{Sheet: c})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sheet")
	}

	slog.Info("Sheet created",
		"sheet_id", out.Sheet.ID,
		"name", out.Sheet.Name,
	)

	return &CreateSheetOutput{Sheet: out.Sheet}, nil
}

func (o *orchestrator) GetSheet(ctx context.Context, input *GetSheetInput) (*GetSheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.load(ctx, input.SheetID)
	if err != nil {
		return nil, err
	}
	return &GetSheetOutput{Sheet: c}, nil
}

func (o *orchestrator) ListSheets(ctx context.Context, _ *ListSheetsInput) (*ListSheetsOutput, error) {
	out, err := o.sheetRepo.List(ctx, sheetrepo.ListInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sheets")
	}
	for key, reason := range out.Corrupt {
		slog.Warn("Skipping unreadable sheet", "key", key, "error", reason)
	}
	return &ListSheetsOutput{Sheets: out.Sheets}, nil
}

func (o *orchestrator) DeleteSheet(ctx context.Context, input *DeleteSheetInput) (*DeleteSheetOutput, error) {
	if input == nil || input.SheetID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	out, err := o.sheetRepo.Delete(ctx, sheetrepo.DeleteInput{ID: input.SheetID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete sheet")
	}

	slog.Info("Sheet deleted",
		"sheet_id", input.SheetID,
		"backups_deleted", out.BackupsDeleted,
	)

	return &DeleteSheetOutput{BackupsDeleted: out.BackupsDeleted}, nil
}

func (o *orchestrator) SetStat(ctx context.Context, input *SetStatInput) (*SheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		_, err := c.SetStat(input.Stat, input.Score)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Sheet: c}, nil
}

// RollStats rolls six scores through the dice service and assigns them in sheet order
func (o *orchestrator) RollStats(ctx context.Context, input *RollStatsInput) (*RollStatsOutput, error) {
	if input == nil || input.SheetID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}
	// fail before rolling when the sheet is missing
	if _, err := o.load(ctx, input.SheetID); err != nil {
		return nil, err
	}

	rolled, err := o.diceService.RollAbilityScores(ctx, &dice.RollAbilityScoresInput{
		EntityID: input.SheetID,
		Method:   input.Method,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll ability scores")
	}
	if len(rolled.Rolls) != len(sheet.AllStats) {
		return nil, errors.Internalf("expected %d ability rolls, got %d", len(sheet.AllStats), len(rolled.Rolls))
	}

	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		for i, stat := range sheet.AllStats {
			if _, err := c.SetStat(string(stat), int(rolled.Rolls[i].Result)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RollStatsOutput{Sheet: c, Rolls: rolled.Rolls}, nil
}

func (o *orchestrator) AdjustHP(ctx context.Context, input *AdjustHPInput) (*SheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		if input.GrantTemp != 0 {
			if err := c.GrantTempHP(input.GrantTemp); err != nil {
				return err
			}
		}
		c.AdjustHP(input.Delta)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Hit points adjusted",
		"sheet_id", c.ID,
		"delta", input.Delta,
		"current", c.HP.Current,
		"temp", c.HP.Temp,
	)
	return &SheetOutput{Sheet: c}, nil
}

func (o *orchestrator) AddItem(ctx context.Context, input *AddItemInput) (*ItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var item sheet.Item
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		var err error
		item, err = c.AddItem(input.Name, quantity, input.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Sheet: c, Item: item}, nil
}

func (o *orchestrator) RemoveItem(ctx context.Context, input *RemoveItemInput) (*ItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	var item sheet.Item
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		var err error
		item, err = c.RemoveItem(input.Name, input.Quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Sheet: c, Item: item}, nil
}

func (o *orchestrator) AddAbility(ctx context.Context, input *AddAbilityInput) (*AbilityOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	var ability sheet.Ability
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		var err error
		ability, err = c.AddAbility(input.Name, input.Description, input.Cooldown)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AbilityOutput{Sheet: c, Ability: ability}, nil
}

func (o *orchestrator) UseAbility(ctx context.Context, input *UseAbilityInput) (*AbilityOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	var ability sheet.Ability
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		var err error
		ability, err = c.UseAbility(input.Name)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Ability used",
		"sheet_id", c.ID,
		"ability", ability.Name,
		"cooldown", ability.Remaining,
	)
	o.publish(ctx, EventAbilityUsed, c, EventKeyAbility, ability)

	return &AbilityOutput{Sheet: c, Ability: ability}, nil
}

func (o *orchestrator) RemoveAbility(ctx context.Context, input *RemoveAbilityInput) (*SheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		return c.RemoveAbility(input.Name)
	})
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Sheet: c}, nil
}

func (o *orchestrator) AddDebuff(ctx context.Context, input *AddDebuffInput) (*DebuffOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	var debuff sheet.Debuff
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		var err error
		debuff, err = c.AddDebuff(input.Name, input.Effect, input.Turns)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &DebuffOutput{Sheet: c, Debuff: debuff}, nil
}

func (o *orchestrator) RemoveDebuff(ctx context.Context, input *RemoveDebuffInput) (*SheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		return c.RemoveDebuff(input.Name)
	})
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Sheet: c}, nil
}

func (o *orchestrator) AdvanceTurn(ctx context.Context, input *AdvanceTurnInput) (*AdvanceTurnOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	var report sheet.TurnReport
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		report = c.AdvanceTurn()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Turn advanced",
		"sheet_id", c.ID,
		"turn", report.Turn,
		"abilities_ready", len(report.Ready),
		"debuffs_expired", len(report.Expired),
	)
	o.publish(ctx, EventTurnAdvanced, c, EventKeyReport, report)

	return &AdvanceTurnOutput{Sheet: c, Report: report}, nil
}

func (o *orchestrator) ResetTurns(ctx context.Context, input *ResetTurnsInput) (*SheetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.mutate(ctx, input.SheetID, func(c *sheet.Character) error {
		c.ResetTurns()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Sheet: c}, nil
}

func (o *orchestrator) load(ctx context.Context, id string) (*sheet.Character, error) {
	if id == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}
	out, err := o.sheetRepo.Get(ctx, sheetrepo.GetInput{ID: id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sheet")
	}
	return out.Sheet, nil
}

// mutate loads a sheet, applies fn and stores the result. Nothing is stored when fn fails.
func (o *orchestrator) mutate(ctx context.Context, id string, fn func(*sheet.Character) error) (*sheet.Character, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = o.clock.Now()

	out, err := o.sheetRepo.Update(ctx, sheetrepo.UpdateInput{Sheet: c})
	if err != nil {
		return nil, errors.Wrap(err, "failed to save sheet")
	}
	return out.Sheet, nil
}

// publish sends eventType with c as the source and payload stored under key
func (o *orchestrator) publish(ctx context.Context, eventType string, c *sheet.Character, key string, payload interface{}) {
	if o.eventBus == nil {
		return
	}
	event := events.NewGameEvent(eventType, c, nil)
	event.Context().Set(key, payload)
	if err := o.eventBus.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish sheet event",
			"event", eventType,
			"sheet_id", c.ID,
			"error", err,
		)
	}
}
