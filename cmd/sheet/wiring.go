package main

import (
	"github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-sheet/internal/dice/entropy"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	dicesvc "github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice"
	sheetsvc "github.com/KirkDiggler/rpg-sheet/internal/orchestrators/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/idgen"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
	sheetrepo "github.com/KirkDiggler/rpg-sheet/internal/repositories/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/storage/sqlite"
)

// newRoller builds the configured randomness source
func newRoller() (dice.Roller, error) {
	return entropy.NewRoller(cfg.Entropy, nil)
}

// newDiceService wires a dice orchestrator around repo. bus may be nil when nothing
// listens for rolls.
func newDiceService(repo dicesession.Repository, roller dice.Roller, bus events.EventBus) (dicesvc.Service, error) {
	return dicesvc.NewOrchestrator(&dicesvc.Config{
		DiceSessionRepo:     repo,
		IDGenerator:         idgen.NewUUID("roll"),
		Roller:              roller,
		Clock:               clock.New(),
		EventBus:            bus,
		MaxExpressionLength: cfg.MaxExpressionLength,
		HistoryLimit:        cfg.HistoryLimit,
		SessionTTL:          cfg.SessionTTL,
	})
}

// openSheetService opens the local store and wires the sheet orchestrator, publishing to
// bus. The returned func closes the store.
func openSheetService(bus events.EventBus) (sheetsvc.Service, func(), error) {
	path, err := cfg.ResolvedDataPath()
	if err != nil {
		return nil, nil, err
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open sheet store at %s", path)
	}
	closeStore := func() {
		_ = store.Close() // nolint:errcheck // safe to ignore in cleanup
	}

	sysClock := clock.New()
	repo, err := sheetrepo.NewKVRepository(&sheetrepo.Config{Store: store, Clock: sysClock})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	roller, err := newRoller()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	diceService, err := newDiceService(dicesession.NewInMemory(sysClock), roller, bus)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	service, err := sheetsvc.NewOrchestrator(&sheetsvc.Config{
		SheetRepo:   repo,
		DiceService: diceService,
		IDGenerator: idgen.NewUUID("sheet"),
		Clock:       sysClock,
		Store:       store,
		EventBus:    bus,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return service, closeStore, nil
}
