// Package runstore provides BadgerHold-based persistence for pipeline run
// history.
package runstore

import (
	"context"
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// Store wraps a BadgerHold database holding RunRecords.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens (or creates) the run store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run store directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Run store opened")

	return &Store{db: db, logger: logger}, nil
}

// SaveRun persists a run record, replacing any record with the same ID.
func (s *Store) SaveRun(ctx context.Context, record *models.RunRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("run record requires an ID")
	}
	if err := s.db.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save run %s: %w", record.ID, err)
	}
	s.logger.Debug().Str("run_id", record.ID).Msg("Run record saved")
	return nil
}

// GetRun retrieves a run record by ID. Returns (nil, nil) when not found.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	var record models.RunRecord
	err := s.db.Get(id, &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &record, nil
}

// ListRuns returns up to limit run records, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	var records []models.RunRecord
	query := (&badgerhold.Query{}).SortBy("GeneratedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]*models.RunRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ interfaces.RunStore = (*Store)(nil)
