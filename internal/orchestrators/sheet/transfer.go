package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	sheetrepo "github.com/KirkDiggler/rpg-sheet/internal/repositories/sheet"
)

// Export renders a sheet as indented JSON (the default) or YAML
func (o *orchestrator) Export(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	format := strings.ToLower(input.Format)
	if format == "" {
		format = FormatJSON
	}

	c, err := o.load(ctx, input.SheetID)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(c)
	default:
		return nil, errors.InvalidArgumentf("unsupported export format: %s", input.Format)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode sheet")
	}

	return &ExportOutput{Data: data, Format: format}, nil
}

// Import decodes and validates a sheet, then stores it. A sheet whose ID is already taken
// gets a fresh ID unless Overwrite is set.
func (o *orchestrator) Import(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	if input == nil || len(bytes.TrimSpace(input.Data)) == 0 {
		return nil, errors.InvalidArgument("import data is required")
	}

	c, err := decodeSheet(input.Data, input.Format)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	var existing *sheet.Character
	if c.ID != "" {
		got, err := o.sheetRepo.Get(ctx, sheetrepo.GetInput{ID: c.ID})
		switch {
		case err == nil:
			existing = got.Sheet
		case !errors.IsNotFound(err):
			return nil, errors.Wrap(err, "failed to check for existing sheet")
		}
	}
	if c.ID == "" || (existing != nil && !input.Overwrite) {
		c.ID = o.idGen.Generate()
		existing = nil
	}

	if issues := c.Validate(); len(issues) > 0 {
		return nil, errors.InvalidArgumentf("imported sheet is invalid: %s", strings.Join(issues, "; ")).
			WithMeta("issues", issues)
	}

	if existing != nil {
		c.Version = existing.Version
		out, err := o.sheetRepo.Update(ctx, sheetrepo.UpdateInput{Sheet: c})
		if err != nil {
			return nil, errors.Wrap(err, "failed to overwrite sheet")
		}
		slog.Info("Sheet imported", "sheet_id", out.Sheet.ID, "replaced", true)
		return &ImportOutput{Sheet: out.Sheet, Replaced: true}, nil
	}

	out, err := o.sheetRepo.Create(ctx, sheetrepo.CreateInput{Sheet: c})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store imported sheet")
	}
	slog.Info("Sheet imported", "sheet_id", out.Sheet.ID, "replaced", false)
	return &ImportOutput{Sheet: out.Sheet}, nil
}

// Backup snapshots the current state of a sheet
func (o *orchestrator) Backup(ctx context.Context, input *BackupInput) (*BackupOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	c, err := o.load(ctx, input.SheetID)
	if err != nil {
		return nil, err
	}

	out, err := o.sheetRepo.SaveBackup(ctx, sheetrepo.SaveBackupInput{Sheet: c})
	if err != nil {
		return nil, errors.Wrap(err, "failed to save backup")
	}

	slog.Info("Sheet backed up", "sheet_id", c.ID, "backup_key", out.Backup.Key)
	return &BackupOutput{Backup: out.Backup}, nil
}

func (o *orchestrator) ListBackups(ctx context.Context, input *ListBackupsInput) (*ListBackupsOutput, error) {
	if input == nil {
		input = &ListBackupsInput{}
	}
	out, err := o.sheetRepo.ListBackups(ctx, sheetrepo.ListBackupsInput{SheetID: input.SheetID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list backups")
	}
	return &ListBackupsOutput{Backups: out.Backups}, nil
}

// RestoreBackup replaces a sheet with one of its backups. The state being replaced is
// itself backed up first.
func (o *orchestrator) RestoreBackup(ctx context.Context, input *RestoreBackupInput) (*SheetOutput, error) {
	if input == nil || input.SheetID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	current, err := o.load(ctx, input.SheetID)
	if err != nil {
		return nil, err
	}

	key := input.BackupKey
	if key == "" {
		list, err := o.sheetRepo.ListBackups(ctx, sheetrepo.ListBackupsInput{SheetID: input.SheetID})
		if err != nil {
			return nil, errors.Wrap(err, "failed to list backups")
		}
		if len(list.Backups) == 0 {
			return nil, errors.NotFoundf("sheet %s has no backups", input.SheetID).
				WithMeta("sheet_id", input.SheetID)
		}
		key = list.Backups[0].Key
	}

	backup, err := o.sheetRepo.GetBackup(ctx, sheetrepo.GetBackupInput{Key: key})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load backup")
	}
	if backup.Backup.SheetID != input.SheetID {
		return nil, errors.InvalidArgumentf("backup %s belongs to sheet %s", key, backup.Backup.SheetID)
	}

	if _, err := o.sheetRepo.SaveBackup(ctx, sheetrepo.SaveBackupInput{Sheet: current}); err != nil {
		return nil, errors.Wrap(err, "failed to back up current sheet")
	}

	restored := backup.Sheet
	restored.Version = current.Version
	restored.UpdatedAt = o.clock.Now()
	out, err := o.sheetRepo.Update(ctx, sheetrepo.UpdateInput{Sheet: restored})
	if err != nil {
		return nil, errors.Wrap(err, "failed to restore sheet")
	}

	slog.Info("Sheet restored", "sheet_id", input.SheetID, "backup_key", key)
	return &SheetOutput{Sheet: out.Sheet}, nil
}

// Diagnose reports whether the store is reachable and which stored sheets break the rules
func (o *orchestrator) Diagnose(ctx context.Context, _ *DiagnoseInput) (*DiagnoseOutput, error) {
	report := &DiagnoseOutput{StoreReachable: true}

	if o.store != nil {
		if err := o.store.Ping(ctx); err != nil {
			report.StoreReachable = false
			report.StoreError = err.Error()
			return report, nil
		}
	}

	list, err := o.sheetRepo.List(ctx, sheetrepo.ListInput{})
	if err != nil {
		report.StoreReachable = false
		report.StoreError = err.Error()
		return report, nil
	}

	addIssues := func(key string, issues ...string) {
		if report.Issues == nil {
			report.Issues = make(map[string][]string)
		}
		report.Issues[key] = append(report.Issues[key], issues...)
	}

	report.SheetCount = len(list.Sheets) + len(list.Corrupt)
	for key, reason := range list.Corrupt {
		addIssues(key, "unreadable: "+reason)
	}
	for _, c := range list.Sheets {
		if issues := c.Validate(); len(issues) > 0 {
			addIssues(c.ID, issues...)
		}
	}

	backups, err := o.sheetRepo.ListBackups(ctx, sheetrepo.ListBackupsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list backups")
	}
	report.BackupCount = len(backups.Backups)

	return report, nil
}

func decodeSheet(data []byte, format string) (*sheet.Character, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatYAML
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatJSON
		}
	}

	var c sheet.Character
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &c)
	case FormatYAML:
		err = yaml.Unmarshal(data, &c)
	default:
		return nil, errors.InvalidArgumentf("unsupported import format: %s", format)
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to decode sheet")
	}

	return &c, nil
}
