package matcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Service scores processed jobs against the resume profile. Each match is
// annotated by the decision engine before its single write, so a stored
// match always carries its decision.
type Service struct {
	jobs    interfaces.JobStorage
	matches interfaces.MatchStorage
	vector  interfaces.VectorStore
	engine  interfaces.DecisionEngine
	config  *common.MatcherConfig
	logger  arbor.ILogger
}

// NewMatcherService creates the matching stage service
func NewMatcherService(jobs interfaces.JobStorage, matches interfaces.MatchStorage, vector interfaces.VectorStore, engine interfaces.DecisionEngine, cfg *common.Config, logger arbor.ILogger) interfaces.MatcherService {
	return &Service{
		jobs:    jobs,
		matches: matches,
		vector:  vector,
		engine:  engine,
		config:  &cfg.Matcher,
		logger:  logger,
	}
}

// Run scores every processed job that has no match yet. Jobs are scored
// concurrently; each worker owns its jobs end to end so no match row is
// written twice.
func (s *Service) Run(ctx context.Context, resume *models.ResumeProfile) (*models.StageReport, error) {
	started := time.Now()
	report := &models.StageReport{Stage: models.StageMatch}

	if resume == nil {
		report.Error = "resume profile is required"
		return report, fmt.Errorf("resume profile is required")
	}

	jobs, err := s.jobs.ListProcessedJobs(ctx, 0)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("failed to list processed jobs: %w", err)
	}

	pending := make([]*models.Job, 0, len(jobs))
	for _, job := range jobs {
		if _, err := s.matches.GetMatchByJobID(ctx, job.ID); err == nil {
			report.Skipped++
			continue
		}
		pending = append(pending, job)
	}

	if len(pending) == 0 {
		report.Duration = time.Since(started)
		s.logger.Info().Int("skipped", report.Skipped).Msg("No jobs need matching")
		return report, nil
	}

	s.logger.Info().
		Int("jobs", len(pending)).
		Int("workers", s.config.Workers).
		Msg("Matching jobs against resume")

	var mu sync.Mutex
	var wg sync.WaitGroup
	work := make(chan *models.Job)

	workers := s.config.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				err := s.matchJob(ctx, job, resume)

				mu.Lock()
				report.Attempted++
				if err != nil {
					report.Failed++
				} else {
					report.Succeeded++
				}
				mu.Unlock()

				if err != nil && ctx.Err() == nil {
					s.logger.Warn().
						Str("job_id", job.ID).
						Err(err).
						Msg("Job matching failed")
				}
			}
		}()
	}

	for _, job := range pending {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			report.Duration = time.Since(started)
			return report, ctx.Err()
		case work <- job:
		}
	}
	close(work)
	wg.Wait()

	report.Duration = time.Since(started)
	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Matching complete")
	return report, nil
}

func (s *Service) matchJob(ctx context.Context, job *models.Job, resume *models.ResumeProfile) error {
	match, err := s.ScoreJob(ctx, job, resume)
	if err != nil {
		return err
	}

	s.engine.Evaluate(match, job, resume)

	if err := s.matches.SaveMatch(ctx, match); err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("title", job.Title).
		Float64("score", match.OverallScore).
		Str("decision", string(match.Decision)).
		Msg("Job matched")
	return nil
}

// ScoreJob computes the multi-dimensional match without persisting it
func (s *Service) ScoreJob(ctx context.Context, job *models.Job, resume *models.ResumeProfile) (*models.ResumeMatch, error) {
	query := buildQuery(resume, s.config.TopSkills)

	semantic, err := s.semanticScore(ctx, job, query)
	if err != nil {
		return nil, fmt.Errorf("semantic scoring failed: %w", err)
	}

	skill, matchedSkills := MatchSkills(job.Skills, resume.AllSkills())
	experience := experienceScore(job.Experience, resume.TotalYears)
	salary := salaryScore(job.SalaryRaw, resume)
	industry := industryScore(job, resume)

	dims := models.DimensionScores{
		Semantic:   semantic,
		Skill:      skill,
		Experience: experience,
		Salary:     salary,
		Industry:   industry,
	}

	weightSum := s.config.SemanticWeight + s.config.SkillWeight +
		s.config.ExperienceWeight + s.config.SalaryWeight + s.config.IndustryWeight
	if weightSum <= 0 {
		return nil, fmt.Errorf("matcher weights sum to %f", weightSum)
	}

	overall := (s.config.SemanticWeight*semantic +
		s.config.SkillWeight*skill +
		s.config.ExperienceWeight*experience +
		s.config.SalaryWeight*salary +
		s.config.IndustryWeight*industry) / weightSum

	return &models.ResumeMatch{
		ID:            common.NewMatchID(),
		JobID:         job.ID,
		OverallScore:  overall,
		Dimensions:    dims,
		MatchedSkills: matchedSkills,
		CreatedAt:     time.Now(),
	}, nil
}
