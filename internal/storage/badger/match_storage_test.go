package badger

import (
	"context"
	"testing"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

func insertMatchedJob(t *testing.T, manager interfaces.StorageManager, title string, overall, salary float64) *models.ResumeMatch {
	t.Helper()
	ctx := context.Background()

	jobID, _, err := manager.JobStorage().InsertJobIfNew(ctx, testRawJob(title))
	if err != nil {
		t.Fatal(err)
	}

	match := &models.ResumeMatch{
		ID:           common.NewMatchID(),
		JobID:        jobID,
		OverallScore: overall,
		Dimensions:   models.DimensionScores{Salary: salary},
		Priority:     models.PriorityHigh,
		ShouldSubmit: true,
	}
	if err := manager.MatchStorage().SaveMatch(ctx, match); err != nil {
		t.Fatal(err)
	}
	return match
}

func TestListUnprocessedMatchesOrderAndFloor(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	insertMatchedJob(t, manager, "A", 0.85, 0.9)
	insertMatchedJob(t, manager, "B", 0.60, 0.1) // Below salary floor
	insertMatchedJob(t, manager, "C", 0.95, 0.5)

	matches, err := manager.MatchStorage().ListUnprocessedMatches(ctx, 0, 0.3)
	if err != nil {
		t.Fatalf("ListUnprocessedMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches above salary floor, got %d", len(matches))
	}
	if matches[0].OverallScore < matches[1].OverallScore {
		t.Error("Matches should be ordered by overall score descending")
	}
	if matches[0].OverallScore != 0.95 {
		t.Errorf("Expected top match score 0.95, got %f", matches[0].OverallScore)
	}
}

func TestListUnprocessedMatchesExcludesDeletedJobs(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	match := insertMatchedJob(t, manager, "A", 0.85, 0.9)

	if err := manager.JobStorage().SoftDeleteJob(ctx, match.JobID, "suspended"); err != nil {
		t.Fatal(err)
	}

	matches, err := manager.MatchStorage().ListUnprocessedMatches(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches for deleted jobs, got %d", len(matches))
	}
}

func TestMarkMatchProcessedAtMostOnce(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	match := insertMatchedJob(t, manager, "A", 0.85, 0.9)

	if err := manager.MatchStorage().MarkMatchProcessed(ctx, match.ID, models.StatusSuccess); err != nil {
		t.Fatalf("First MarkMatchProcessed failed: %v", err)
	}

	err := manager.MatchStorage().MarkMatchProcessed(ctx, match.ID, models.StatusSuccess)
	if err != interfaces.ErrAlreadyProcessed {
		t.Errorf("Second MarkMatchProcessed should return ErrAlreadyProcessed, got %v", err)
	}

	got, err := manager.MatchStorage().GetMatch(ctx, match.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Processed {
		t.Error("Match should be processed")
	}
	if got.Outcome != string(models.StatusSuccess) {
		t.Errorf("Expected outcome SUCCESS, got %s", got.Outcome)
	}
	if got.ProcessedAt == nil {
		t.Error("ProcessedAt should be set")
	}
}
