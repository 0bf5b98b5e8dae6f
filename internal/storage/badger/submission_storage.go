package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// SubmissionStorage implements the append-only submission log for Badger
type SubmissionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubmissionStorage creates a new SubmissionStorage instance
func NewSubmissionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SubmissionStorage {
	return &SubmissionStorage{
		db:     db,
		logger: logger,
	}
}

// AppendSubmissionLog inserts a new log row. Insert, never upsert: logs
// are append-only and a duplicate ID is a programmer error.
func (s *SubmissionStorage) AppendSubmissionLog(ctx context.Context, log *models.SubmissionLog) error {
	if log == nil || log.ID == "" {
		return fmt.Errorf("submission log ID is required")
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(log.ID, log); err != nil {
		return fmt.Errorf("failed to append submission log: %w", err)
	}
	return nil
}

func (s *SubmissionStorage) GetLogsForMatch(ctx context.Context, matchID string) ([]*models.SubmissionLog, error) {
	var logs []models.SubmissionLog
	if err := s.db.Store().Find(&logs, badgerhold.Where("MatchID").Eq(matchID)); err != nil {
		return nil, fmt.Errorf("failed to get logs for match: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	result := make([]*models.SubmissionLog, len(logs))
	for i := range logs {
		result[i] = &logs[i]
	}
	return result, nil
}

// CountSubmissionsToday counts SUCCESS logs since local midnight, for the
// daily quota gate.
func (s *SubmissionStorage) CountSubmissionsToday(ctx context.Context) (int, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var logs []models.SubmissionLog
	query := badgerhold.Where("Status").Eq(models.StatusSuccess).
		And("CreatedAt").Ge(midnight)
	if err := s.db.Store().Find(&logs, query); err != nil {
		return 0, fmt.Errorf("failed to count today's submissions: %w", err)
	}
	return len(logs), nil
}

func (s *SubmissionStorage) ListTerminalLogs(ctx context.Context) ([]*models.SubmissionLog, error) {
	var logs []models.SubmissionLog
	if err := s.db.Store().Find(&logs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list submission logs: %w", err)
	}

	result := make([]*models.SubmissionLog, 0, len(logs))
	for i := range logs {
		if logs[i].Status.Terminal() {
			result = append(result, &logs[i])
		}
	}
	return result, nil
}
