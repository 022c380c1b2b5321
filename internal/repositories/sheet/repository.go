// Package sheet provides persistence for character sheets and their backups
package sheet

import (
	"context"
	"time"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
)

// Repository defines the interface for sheet persistence
type Repository interface {
	// Create stores a new sheet
	// Returns errors.AlreadyExists if a sheet with the same ID exists
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a sheet by ID
	// Returns errors.NotFound if the sheet doesn't exist
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Update replaces a stored sheet and bumps its version
	// Returns errors.NotFound if the sheet doesn't exist
	// Returns errors.Aborted if the stored version moved on since the sheet was read
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// Delete removes a sheet and its backups
	// Returns errors.NotFound if the sheet doesn't exist
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// List returns every stored sheet ordered by ID. Entries that fail to decode are
	// reported in Corrupt rather than failing the call.
	List(ctx context.Context, input ListInput) (*ListOutput, error)

	// SaveBackup snapshots a sheet
	SaveBackup(ctx context.Context, input SaveBackupInput) (*SaveBackupOutput, error)

	// ListBackups returns a sheet's backups, newest first
	ListBackups(ctx context.Context, input ListBackupsInput) (*ListBackupsOutput, error)

	// GetBackup loads one backup by key
	// Returns errors.NotFound if the backup doesn't exist
	GetBackup(ctx context.Context, input GetBackupInput) (*GetBackupOutput, error)
}

// Backup describes one stored snapshot
type Backup struct {
	Key       string
	SheetID   string
	CreatedAt time.Time
}

// CreateInput defines the input for creating a sheet
type CreateInput struct {
	Sheet *sheet.Character
}

// CreateOutput defines the output for creating a sheet
type CreateOutput struct {
	Sheet *sheet.Character
}

// GetInput defines the input for getting a sheet
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a sheet
type GetOutput struct {
	Sheet *sheet.Character
}

// UpdateInput defines the input for updating a sheet
type UpdateInput struct {
	Sheet *sheet.Character
}

// UpdateOutput defines the output for updating a sheet
type UpdateOutput struct {
	Sheet *sheet.Character
}

// DeleteInput defines the input for deleting a sheet
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a sheet
type DeleteOutput struct {
	BackupsDeleted int
}

// ListInput defines the input for listing sheets
type ListInput struct{}

// ListOutput defines the output for listing sheets
type ListOutput struct {
	Sheets []*sheet.Character
	// Keys whose stored value could not be decoded, mapped to the decode error
	Corrupt map[string]string
}

// SaveBackupInput defines the input for saving a backup
type SaveBackupInput struct {
	Sheet *sheet.Character
}

// SaveBackupOutput defines the output for saving a backup
type SaveBackupOutput struct {
	Backup Backup
}

// ListBackupsInput defines the input for listing backups. An empty SheetID lists all.
type ListBackupsInput struct {
	SheetID string
}

// ListBackupsOutput defines the output for listing backups
type ListBackupsOutput struct {
	Backups []Backup
}

// GetBackupInput defines the input for loading a backup
type GetBackupInput struct {
	Key string
}

// GetBackupOutput defines the output for loading a backup
type GetBackupOutput struct {
	Backup Backup
	Sheet  *sheet.Character
}
