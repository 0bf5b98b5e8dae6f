package badger

import (
	"context"
	"testing"
	"time"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

func TestCompleteSubmissionIsAtomicAndAtMostOnce(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	match := insertMatchedJob(t, manager, "A", 0.85, 0.9)

	log := &models.SubmissionLog{
		ID:      common.NewSubmissionLogID(),
		MatchID: match.ID,
		JobID:   match.JobID,
		Status:  models.StatusSuccess,
		Reason:  "apply button clicked",
	}
	if err := manager.CompleteSubmission(ctx, log); err != nil {
		t.Fatalf("CompleteSubmission failed: %v", err)
	}

	got, err := manager.MatchStorage().GetMatch(ctx, match.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Processed {
		t.Error("Match should be processed after CompleteSubmission")
	}

	logs, err := manager.SubmissionStorage().GetLogsForMatch(ctx, match.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log, got %d", len(logs))
	}

	// A second terminal completion must fail and must not append a log
	second := &models.SubmissionLog{
		ID:      common.NewSubmissionLogID(),
		MatchID: match.ID,
		JobID:   match.JobID,
		Status:  models.StatusSuccess,
	}
	if err := manager.CompleteSubmission(ctx, second); err != interfaces.ErrAlreadyProcessed {
		t.Errorf("Expected ErrAlreadyProcessed, got %v", err)
	}

	logs, err = manager.SubmissionStorage().GetLogsForMatch(ctx, match.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Errorf("Rejected completion must not append a log, got %d logs", len(logs))
	}
}

func TestCompleteSubmissionRejectsNonTerminal(t *testing.T) {
	manager := newTestManager(t)
	match := insertMatchedJob(t, manager, "A", 0.85, 0.9)

	log := &models.SubmissionLog{
		ID:      common.NewSubmissionLogID(),
		MatchID: match.ID,
		JobID:   match.JobID,
		Status:  models.StatusPending,
	}
	if err := manager.CompleteSubmission(context.Background(), log); err == nil {
		t.Error("CompleteSubmission should reject non-terminal statuses")
	}
}

func TestCountSubmissionsToday(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	submissions := manager.SubmissionStorage()

	count, err := submissions.CountSubmissionsToday(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 submissions on empty store, got %d", count)
	}

	// One success today, one yesterday, one non-success today
	today := &models.SubmissionLog{
		ID: common.NewSubmissionLogID(), MatchID: "m1", JobID: "j1",
		Status: models.StatusSuccess, CreatedAt: time.Now(),
	}
	yesterday := &models.SubmissionLog{
		ID: common.NewSubmissionLogID(), MatchID: "m2", JobID: "j2",
		Status: models.StatusSuccess, CreatedAt: time.Now().Add(-25 * time.Hour),
	}
	failed := &models.SubmissionLog{
		ID: common.NewSubmissionLogID(), MatchID: "m3", JobID: "j3",
		Status: models.StatusButtonNotFound, CreatedAt: time.Now(),
	}
	for _, log := range []*models.SubmissionLog{today, yesterday, failed} {
		if err := submissions.AppendSubmissionLog(ctx, log); err != nil {
			t.Fatal(err)
		}
	}

	count, err = submissions.CountSubmissionsToday(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 success today, got %d", count)
	}

	terminal, err := submissions.ListTerminalLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(terminal) != 3 {
		t.Errorf("Expected 3 terminal logs, got %d", len(terminal))
	}
}
