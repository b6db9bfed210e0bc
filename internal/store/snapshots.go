package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/envmgr/envmgr/internal/secret"
	"gorm.io/gorm"
)

// SnapshotRecord is the metadata returned for a snapshot. Content never
// leaves the store except through Restore.
type SnapshotRecord struct {
	ID            string    `json:"id"`
	EnvironmentID string    `json:"environmentId"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Snapshots captures and restores immutable point-in-time copies of an
// environment's variable set.
type Snapshots struct {
	db   *gorm.DB
	box  *secret.Box
	vars *Variables
}

// NewSnapshots creates a snapshot store sharing the variable store's box.
func NewSnapshots(db *gorm.DB, box *secret.Box, vars *Variables) *Snapshots {
	return &Snapshots{db: db, box: box, vars: vars}
}

// Create captures the environment's current variable set as a sealed dotenv
// blob. The snapshot is immutable once created.
func (s *Snapshots) Create(ctx context.Context, envID, name string) (SnapshotRecord, error) {
	blob, err := s.vars.Export(ctx, envID)
	if err != nil {
		return SnapshotRecord{}, err
	}
	sealed, err := s.box.Seal(blob)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("seal snapshot: %w", err)
	}
	snap := model.Snapshot{
		EnvironmentID: envID,
		Name:          name,
		Content:       sealed,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return SnapshotRecord{}, fmt.Errorf("store snapshot: %w", err)
	}
	return SnapshotRecord{ID: snap.ID, EnvironmentID: envID, Name: name, CreatedAt: snap.CreatedAt}, nil
}

// List returns snapshot metadata for an environment, newest first.
func (s *Snapshots) List(ctx context.Context, envID string) ([]SnapshotRecord, error) {
	var rows []model.Snapshot
	if err := s.db.WithContext(ctx).
		Where("environment_id = ?", envID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]SnapshotRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, SnapshotRecord{ID: r.ID, EnvironmentID: r.EnvironmentID, Name: r.Name, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// Restore replaces the environment's variables with the snapshot content.
// The replacement is a full atomic ReplaceAll. Returns the variable count.
func (s *Snapshots) Restore(ctx context.Context, snapshotID string) (string, int, error) {
	var snap model.Snapshot
	err := s.db.WithContext(ctx).First(&snap, "id = ?", snapshotID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, ErrNotFound
		}
		return "", 0, fmt.Errorf("load snapshot: %w", err)
	}
	blob, err := s.box.Open(snap.Content)
	if err != nil {
		return "", 0, fmt.Errorf("open snapshot: %w", err)
	}
	n, err := s.vars.ReplaceAll(ctx, snap.EnvironmentID, dotenv.ParseMap(blob))
	if err != nil {
		return "", 0, err
	}
	return snap.EnvironmentID, n, nil
}
