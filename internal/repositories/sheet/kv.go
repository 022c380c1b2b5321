package sheet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-sheet/internal/storage"
)

const (
	// Key pattern: sheet:{id}
	sheetKeyPrefix = "sheet:"
	// Key pattern: backup:{id}:{unix_nano}
	backupKeyPrefix = "backup:"
)

// Config holds the configuration for the key/value repository
type Config struct {
	Store storage.KV
	Clock clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Store == nil {
		vb.RequiredField("Store")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	return vb.Build()
}

type kvRepository struct {
	store storage.KV
	clock clock.Clock
}

// NewKVRepository creates a sheet repository on top of a key/value store
func NewKVRepository(cfg *Config) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &kvRepository{
		store: cfg.Store,
		clock: cfg.Clock,
	}, nil
}

var _ Repository = (*kvRepository)(nil)

func (r *kvRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Sheet == nil {
		return nil, errors.InvalidArgument("sheet is required")
	}
	if input.Sheet.ID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}

	key := sheetKey(input.Sheet.ID)
	_, err := r.store.Get(ctx, key)
	if err == nil {
		return nil, errors.AlreadyExistsf("sheet %s already exists", input.Sheet.ID).
			WithMeta("sheet_id", input.Sheet.ID)
	}
	if !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, "failed to check for existing sheet")
	}

	stored := input.Sheet.Clone()
	stored.Version = 1
	if err := r.put(ctx, key, stored); err != nil {
		return nil, err
	}

	return &CreateOutput{Sheet: stored}, nil
}

func (r *kvRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}

	c, err := r.load(ctx, sheetKey(input.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("sheet %s not found", input.ID).WithMeta("sheet_id", input.ID)
		}
		return nil, err
	}

	return &GetOutput{Sheet: c}, nil
}

func (r *kvRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if input.Sheet == nil {
		return nil, errors.InvalidArgument("sheet is required")
	}

	current, err := r.Get(ctx, GetInput{ID: input.Sheet.ID})
	if err != nil {
		return nil, err
	}
	if current.Sheet.Version != input.Sheet.Version {
		return nil, errors.Aborted("sheet was modified since it was read").
			WithMeta("sheet_id", input.Sheet.ID).
			WithMeta("stored_version", current.Sheet.Version)
	}

	stored := input.Sheet.Clone()
	stored.Version++
	if err := r.put(ctx, sheetKey(stored.ID), stored); err != nil {
		return nil, err
	}

	return &UpdateOutput{Sheet: stored}, nil
}

func (r *kvRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument("sheet ID is required")
	}

	if err := r.store.Delete(ctx, sheetKey(input.ID)); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("sheet %s not found", input.ID).WithMeta("sheet_id", input.ID)
		}
		return nil, errors.Wrap(err, "failed to delete sheet")
	}

	backups, err := r.backups(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if err := r.store.Delete(ctx, b.Key); err != nil && !errors.IsNotFound(err) {
			return nil, errors.Wrapf(err, "failed to delete backup %s", b.Key)
		}
	}

	return &DeleteOutput{BackupsDeleted: len(backups)}, nil
}

func (r *kvRepository) List(ctx context.Context, _ ListInput) (*ListOutput, error) {
	entries, err := r.store.List(ctx, sheetKeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sheets")
	}

	out := &ListOutput{Sheets: make([]*sheet.Character, 0, len(entries))}
	for _, e := range entries {
		var c sheet.Character
		if err := json.Unmarshal(e.Value, &c); err != nil {
			if out.Corrupt == nil {
				out.Corrupt = make(map[string]string)
			}
			out.Corrupt[e.Key] = err.Error()
			continue
		}
		out.Sheets = append(out.Sheets, &c)
	}

	return out, nil
}

func (r *kvRepository) SaveBackup(ctx context.Context, input SaveBackupInput) (*SaveBackupOutput, error) {
	if input.Sheet == nil || input.Sheet.ID == "" {
		return nil, errors.InvalidArgument("sheet is required")
	}

	now := r.clock.Now()
	key := fmt.Sprintf("%s%d", backupPrefix(input.Sheet.ID), now.UnixNano())
	if err := r.put(ctx, key, input.Sheet); err != nil {
		return nil, err
	}

	return &SaveBackupOutput{
		Backup: Backup{Key: key, SheetID: input.Sheet.ID, CreatedAt: now},
	}, nil
}

func (r *kvRepository) ListBackups(ctx context.Context, input ListBackupsInput) (*ListBackupsOutput, error) {
	backups, err := r.backups(ctx, input.SheetID)
	if err != nil {
		return nil, err
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return &ListBackupsOutput{Backups: backups}, nil
}

// backups lists the backups of sheetID, or of every sheet when it is empty. The prefix
// scan for "x" also matches "x:y", so entries are kept only on an exact ID match.
func (r *kvRepository) backups(ctx context.Context, sheetID string) ([]Backup, error) {
	prefix := backupKeyPrefix
	if sheetID != "" {
		prefix = backupPrefix(sheetID)
	}

	entries, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list backups")
	}

	backups := make([]Backup, 0, len(entries))
	for _, e := range entries {
		b, ok := parseBackupKey(e.Key)
		if !ok || (sheetID != "" && b.SheetID != sheetID) {
			continue
		}
		backups = append(backups, b)
	}
	return backups, nil
}

func (r *kvRepository) GetBackup(ctx context.Context, input GetBackupInput) (*GetBackupOutput, error) {
	b, ok := parseBackupKey(input.Key)
	if !ok {
		return nil, errors.InvalidArgumentf("invalid backup key: %s", input.Key)
	}

	c, err := r.load(ctx, input.Key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("backup %s not found", input.Key).WithMeta("backup_key", input.Key)
		}
		return nil, err
	}

	return &GetBackupOutput{Backup: b, Sheet: c}, nil
}

func (r *kvRepository) load(ctx context.Context, key string) (*sheet.Character, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var c sheet.Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Internal("failed to decode stored sheet").
			WithMeta("key", key).
			WithMeta("cause", err.Error())
	}
	return &c, nil
}

func (r *kvRepository) put(ctx context.Context, key string, c *sheet.Character) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode sheet")
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return errors.Wrap(err, "failed to store sheet")
	}
	return nil
}

func sheetKey(id string) string {
	return sheetKeyPrefix + id
}

func backupPrefix(id string) string {
	return backupKeyPrefix + id + ":"
}

// parseBackupKey splits backup:{id}:{unix_nano}. IDs may themselves contain colons.
func parseBackupKey(key string) (Backup, bool) {
	rest, ok := strings.CutPrefix(key, backupKeyPrefix)
	if !ok {
		return Backup{}, false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return Backup{}, false
	}
	nanos, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return Backup{}, false
	}
	return Backup{
		Key:       key,
		SheetID:   rest[:i],
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, true
}
