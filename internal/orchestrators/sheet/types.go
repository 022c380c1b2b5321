package sheet

import (
	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
	sheetrepo "github.com/KirkDiggler/rpg-sheet/internal/repositories/sheet"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CreateSheetInput defines the request for creating a sheet
type CreateSheetInput struct {
	Name  string
	Class string
	Level int
	MaxHP int
}

// CreateSheetOutput defines the response for creating a sheet
type CreateSheetOutput struct {
	Sheet *sheet.Character
}

// GetSheetInput defines the request for loading a sheet
type GetSheetInput struct {
	SheetID string
}

// GetSheetOutput defines the response for loading a sheet
type GetSheetOutput struct {
	Sheet *sheet.Character
}

// ListSheetsInput defines the request for listing sheets
type ListSheetsInput struct{}

// ListSheetsOutput defines the response for listing sheets
type ListSheetsOutput struct {
	Sheets []*sheet.Character
}

// DeleteSheetInput defines the request for deleting a sheet
type DeleteSheetInput struct {
	SheetID string
}

// DeleteSheetOutput defines the response for deleting a sheet
type DeleteSheetOutput struct {
	BackupsDeleted int
}

// SetStatInput defines the request for setting one ability score
type SetStatInput struct {
	SheetID string
	Stat    string
	Score   int
}

// RollStatsInput defines the request for rolling all six scores onto a sheet
type RollStatsInput struct {
	SheetID string
	Method  string
}

// RollStatsOutput defines the response for rolling stats
type RollStatsOutput struct {
	Sheet *sheet.Character
	Rolls []*dicesession.DiceRoll
}

// AdjustHPInput heals (Delta > 0) or damages (Delta < 0), and optionally grants temp HP
type AdjustHPInput struct {
	SheetID   string
	Delta     int
	GrantTemp int
}

// AddItemInput defines the request for adding an item
type AddItemInput struct {
	SheetID  string
	Name     string
	Quantity int
	Notes    string
}

// RemoveItemInput defines the request for removing an item. Zero quantity removes the stack.
type RemoveItemInput struct {
	SheetID  string
	Name     string
	Quantity int
}

// ItemOutput defines the response of inventory changes
type ItemOutput struct {
	Sheet *sheet.Character
	Item  sheet.Item
}

// AddAbilityInput defines the request for adding an ability
type AddAbilityInput struct {
	SheetID     string
	Name        string
	Description string
	Cooldown    int
}

// UseAbilityInput defines the request for using an ability
type UseAbilityInput struct {
	SheetID string
	Name    string
}

// RemoveAbilityInput defines the request for removing an ability
type RemoveAbilityInput struct {
	SheetID string
	Name    string
}

// AbilityOutput defines the response of ability changes
type AbilityOutput struct {
	Sheet   *sheet.Character
	Ability sheet.Ability
}

// AddDebuffInput defines the request for applying a debuff
type AddDebuffInput struct {
	SheetID string
	Name    string
	Effect  string
	Turns   int
}

// RemoveDebuffInput defines the request for clearing a debuff
type RemoveDebuffInput struct {
	SheetID string
	Name    string
}

// DebuffOutput defines the response of debuff changes
type DebuffOutput struct {
	Sheet  *sheet.Character
	Debuff sheet.Debuff
}

// AdvanceTurnInput defines the request for advancing the turn counter
type AdvanceTurnInput struct {
	SheetID string
}

// AdvanceTurnOutput defines the response for advancing a turn
type AdvanceTurnOutput struct {
	Sheet  *sheet.Character
	Report sheet.TurnReport
}

// ResetTurnsInput defines the request for resetting the turn counter
type ResetTurnsInput struct {
	SheetID string
}

// SheetOutput is returned by operations whose only result is the updated sheet
type SheetOutput struct {
	Sheet *sheet.Character
}

// ExportInput defines the request for exporting a sheet
type ExportInput struct {
	SheetID string
	Format  string
}

// ExportOutput defines the response for exporting a sheet
type ExportOutput struct {
	Data   []byte
	Format string
}

// ImportInput defines the request for importing a sheet. An empty Format is detected
// from the data.
type ImportInput struct {
	Data      []byte
	Format    string
	Overwrite bool
}

// ImportOutput defines the response for importing a sheet
type ImportOutput struct {
	Sheet *sheet.Character
	// Replaced is true when an existing sheet was overwritten
	Replaced bool
}

// BackupInput defines the request for snapshotting a sheet
type BackupInput struct {
	SheetID string
}

// BackupOutput defines the response for snapshotting a sheet
type BackupOutput struct {
	Backup sheetrepo.Backup
}

// ListBackupsInput defines the request for listing backups. An empty SheetID lists all.
type ListBackupsInput struct {
	SheetID string
}

// ListBackupsOutput defines the response for listing backups
type ListBackupsOutput struct {
	Backups []sheetrepo.Backup
}

// RestoreBackupInput restores a backup over its sheet. An empty BackupKey picks the newest.
type RestoreBackupInput struct {
	SheetID   string
	BackupKey string
}

// DiagnoseInput defines the request for a store health report
type DiagnoseInput struct{}

// DiagnoseOutput is a store health report
type DiagnoseOutput struct {
	StoreReachable bool
	StoreError     string
	SheetCount     int
	BackupCount    int
	// Issues per sheet ID or storage key
	Issues map[string][]string
}

// Healthy reports whether the store is reachable and every sheet is consistent
func (d *DiagnoseOutput) Healthy() bool {
	return d.StoreReachable && len(d.Issues) == 0
}
