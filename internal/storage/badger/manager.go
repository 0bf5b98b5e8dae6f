package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	job        interfaces.JobStorage
	match      interfaces.MatchStorage
	submission interfaces.SubmissionStorage
	document   interfaces.DocumentStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		job:        NewJobStorage(db, logger),
		match:      NewMatchStorage(db, logger),
		submission: NewSubmissionStorage(db, logger),
		document:   NewDocumentStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// MatchStorage returns the Match storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// SubmissionStorage returns the Submission storage interface
func (m *Manager) SubmissionStorage() interfaces.SubmissionStorage {
	return m.submission
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// CompleteSubmission appends the terminal log and flips the match's
// processed flag inside one Badger transaction. Either both writes land or
// neither does, so a crash cannot strand a terminal log beside an
// unprocessed match.
func (m *Manager) CompleteSubmission(ctx context.Context, log *models.SubmissionLog) error {
	if log == nil || log.ID == "" || log.MatchID == "" {
		return fmt.Errorf("submission log with match ID is required")
	}
	if !log.Status.Terminal() {
		return fmt.Errorf("CompleteSubmission requires a terminal status, got %s", log.Status)
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	store := m.db.Store()
	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		var match models.ResumeMatch
		if err := store.TxGet(tx, log.MatchID, &match); err != nil {
			if err == badgerhold.ErrNotFound {
				return interfaces.ErrNotFound
			}
			return fmt.Errorf("failed to get match: %w", err)
		}

		if match.Processed {
			return interfaces.ErrAlreadyProcessed
		}

		now := time.Now()
		match.Processed = true
		match.ProcessedAt = &now
		match.Outcome = string(log.Status)

		if err := store.TxUpdate(tx, match.ID, &match); err != nil {
			return fmt.Errorf("failed to mark match processed: %w", err)
		}
		if err := store.TxInsert(tx, log.ID, log); err != nil {
			return fmt.Errorf("failed to append submission log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug().
		Str("match_id", log.MatchID).
		Str("status", string(log.Status)).
		Msg("Submission completed")

	return nil
}

// DB returns the underlying badgerhold store
func (m *Manager) DB() *badgerhold.Store {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
