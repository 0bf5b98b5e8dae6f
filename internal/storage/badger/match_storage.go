package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// MatchStorage implements the MatchStorage interface for Badger
type MatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // Serializes the processed-flag transition
}

// NewMatchStorage creates a new MatchStorage instance
func NewMatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MatchStorage) SaveMatch(ctx context.Context, match *models.ResumeMatch) error {
	if match == nil || match.ID == "" {
		return fmt.Errorf("match ID is required")
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(match.ID, match); err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}
	return nil
}

func (s *MatchStorage) GetMatch(ctx context.Context, matchID string) (*models.ResumeMatch, error) {
	var match models.ResumeMatch
	if err := s.db.Store().Get(matchID, &match); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &match, nil
}

func (s *MatchStorage) GetMatchByJobID(ctx context.Context, jobID string) (*models.ResumeMatch, error) {
	var match models.ResumeMatch
	err := s.db.Store().FindOne(&match, badgerhold.Where("JobID").Eq(jobID))
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by job: %w", err)
	}
	return &match, nil
}

// ListUnprocessedMatches joins unprocessed matches to their jobs, drops
// matches whose job is soft-deleted, applies the optional salary-score
// floor, and orders by overall score descending.
func (s *MatchStorage) ListUnprocessedMatches(ctx context.Context, limit int, minSalaryScore float64) ([]*models.ResumeMatch, error) {
	var matches []models.ResumeMatch
	if err := s.db.Store().Find(&matches, badgerhold.Where("Processed").Eq(false)); err != nil {
		return nil, fmt.Errorf("failed to list unprocessed matches: %w", err)
	}

	result := make([]*models.ResumeMatch, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		if minSalaryScore > 0 && m.Dimensions.Salary < minSalaryScore {
			continue
		}

		var job models.Job
		if err := s.db.Store().Get(m.JobID, &job); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("failed to join match to job: %w", err)
		}
		if job.IsDeleted {
			continue
		}

		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OverallScore > result[j].OverallScore
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkMatchProcessed flips processed false->true. A second call on the
// same match returns ErrAlreadyProcessed; this is the at-most-once
// enforcement point.
func (s *MatchStorage) MarkMatchProcessed(ctx context.Context, matchID string, outcome models.SubmissionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match models.ResumeMatch
	if err := s.db.Store().Get(matchID, &match); err != nil {
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
	match.Outcome = string(outcome)

	if err := s.db.Store().Update(matchID, &match); err != nil {
		return fmt.Errorf("failed to mark match processed: %w", err)
	}
	return nil
}

func (s *MatchStorage) DeleteMatchesForJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.ResumeMatch{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete matches for job: %w", err)
	}
	return nil
}

func (s *MatchStorage) CountMatches(ctx context.Context) (int, error) {
	var matches []models.ResumeMatch
	if err := s.db.Store().Find(&matches, badgerhold.Where("ID").Ne("")); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return len(matches), nil
}
