// Package store persists environment variables and snapshots. Values are
// sealed before insert and opened only on the plaintext read paths.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/envmgr/envmgr/internal/secret"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound indicates the requested variable or snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey indicates the key fails validation after normalization.
	ErrInvalidKey = errors.New("key must match ^[A-Z0-9_]+$")
)

// VariableRecord is what the store returns for a single variable. Value is
// empty on masked paths and after writes.
type VariableRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Variables provides the environment → variable mapping with masked read
// and create-or-update write semantics.
type Variables struct {
	db  *gorm.DB
	box *secret.Box

	// called between delete and insert inside ReplaceAll; tests use it to
	// simulate a mid-transaction failure
	afterDelete func() error
}

// NewVariables creates a variable store sealing values with box.
func NewVariables(db *gorm.DB, box *secret.Box) *Variables {
	return &Variables{db: db, box: box}
}

// List returns all variables of an environment ordered by key, with masked
// values. Plaintext is never returned from this path.
func (s *Variables) List(ctx context.Context, envID string) ([]VariableRecord, error) {
	var rows []model.Variable
	if err := s.db.WithContext(ctx).
		Where("environment_id = ?", envID).
		Order("key").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	out := make([]VariableRecord, 0, len(rows))
	for _, v := range rows {
		out = append(out, VariableRecord{Key: v.Key, Value: secret.Mask, UpdatedAt: v.UpdatedAt})
	}
	return out, nil
}

// Get returns a single variable with its plaintext value.
func (s *Variables) Get(ctx context.Context, envID, key string) (VariableRecord, error) {
	key = dotenv.NormalizeKey(key)
	var v model.Variable
	err := s.db.WithContext(ctx).
		Where("environment_id = ? AND key = ?", envID, key).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VariableRecord{}, ErrNotFound
		}
		return VariableRecord{}, fmt.Errorf("load variable: %w", err)
	}
	plaintext, err := s.box.Open(v.Value)
	if err != nil {
		return VariableRecord{}, fmt.Errorf("open variable %s: %w", key, err)
	}
	return VariableRecord{Key: v.Key, Value: plaintext, UpdatedAt: v.UpdatedAt}, nil
}

// Upsert normalizes and validates the key, seals the value, and creates or
// overwrites the record keyed by (environment, key). The returned record
// carries no value.
func (s *Variables) Upsert(ctx context.Context, envID, key, value string) (VariableRecord, error) {
	key = dotenv.NormalizeKey(key)
	if !dotenv.ValidKey(key) {
		return VariableRecord{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	rec, err := s.upsertTx(ctx, s.db, envID, key, value)
	if err != nil {
		return VariableRecord{}, err
	}
	return rec, nil
}

func (s *Variables) upsertTx(ctx context.Context, tx *gorm.DB, envID, key, value string) (VariableRecord, error) {
	sealed, err := s.box.Seal(value)
	if err != nil {
		return VariableRecord{}, fmt.Errorf("seal variable %s: %w", key, err)
	}
	now := time.Now().UTC()
	v := model.Variable{
		EnvironmentID: envID,
		Key:           key,
		Value:         sealed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "environment_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": sealed, "updated_at": now}),
	}).Create(&v).Error
	if err != nil {
		return VariableRecord{}, fmt.Errorf("upsert variable %s: %w", key, err)
	}
	return VariableRecord{Key: key, UpdatedAt: now}, nil
}

// BulkUpsert applies Upsert for every entry whose key validates. Invalid
// keys are dropped rather than failing the batch. Returns the applied keys
// sorted ascending.
func (s *Variables) BulkUpsert(ctx context.Context, envID string, vars map[string]string) ([]string, error) {
	applied := make([]string, 0, len(vars))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range vars {
			k := dotenv.NormalizeKey(key)
			if !dotenv.ValidKey(k) {
				continue
			}
			if _, err := s.upsertTx(ctx, tx, envID, k, value); err != nil {
				return err
			}
			applied = append(applied, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(applied)
	return applied, nil
}

// ReplaceAll atomically deletes every variable of the environment and
// inserts the entries of vars. A document containing an invalid key is
// rejected whole with ErrInvalidKey. Concurrent readers never observe
// the empty intermediate state; on any failure the pre-operation set stays
// intact. Returns the number of inserted variables.
func (s *Variables) ReplaceAll(ctx context.Context, envID string, vars map[string]string) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("environment_id = ?", envID).Delete(&model.Variable{}).Error; err != nil {
			return fmt.Errorf("clear environment: %w", err)
		}
		if s.afterDelete != nil {
			if err := s.afterDelete(); err != nil {
				return err
			}
		}
		for key, value := range vars {
			k := dotenv.NormalizeKey(key)
			if !dotenv.ValidKey(k) {
				return fmt.Errorf("%w: %q", ErrInvalidKey, key)
			}
			if _, err := s.upsertTx(ctx, tx, envID, k, value); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Delete removes the variable or reports ErrNotFound.
func (s *Variables) Delete(ctx context.Context, envID, key string) error {
	key = dotenv.NormalizeKey(key)
	res := s.db.WithContext(ctx).
		Where("environment_id = ? AND key = ?", envID, key).
		Delete(&model.Variable{})
	if res.Error != nil {
		return fmt.Errorf("delete variable %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Export produces a dotenv-formatted blob of all variables in plaintext,
// sorted by key.
func (s *Variables) Export(ctx context.Context, envID string) (string, error) {
	var rows []model.Variable
	if err := s.db.WithContext(ctx).
		Where("environment_id = ?", envID).
		Find(&rows).Error; err != nil {
		return "", fmt.Errorf("export variables: %w", err)
	}
	vars := make(map[string]string, len(rows))
	for _, v := range rows {
		plaintext, err := s.box.Open(v.Value)
		if err != nil {
			return "", fmt.Errorf("open variable %s: %w", v.Key, err)
		}
		vars[v.Key] = plaintext
	}
	return dotenv.Serialize(vars), nil
}
