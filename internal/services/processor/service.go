package processor

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

// Service drains unprocessed jobs in batches through a worker pool. Each
// job is independent: one failed job never blocks the batch, and a crash
// mid-batch loses at most the jobs in flight because rag_processed flips
// only after the job's documents are stored.
type Service struct {
	jobs      interfaces.JobStorage
	vector    interfaces.VectorStore
	extractor interfaces.StructuredExtractor
	fallback  interfaces.StructuredExtractor
	config    *common.ProcessorConfig
	logger    arbor.ILogger
}

// NewProcessorService creates the processing stage service. extractor may
// be nil when no API key is configured; every job then takes the fallback
// path.
func NewProcessorService(jobs interfaces.JobStorage, vector interfaces.VectorStore, extractor interfaces.StructuredExtractor, cfg *common.Config, logger arbor.ILogger) interfaces.ProcessorService {
	return &Service{
		jobs:      jobs,
		vector:    vector,
		extractor: extractor,
		fallback:  NewFallbackExtractor(logger),
		config:    &cfg.Processor,
		logger:    logger,
	}
}

// Run processes batches until no unprocessed jobs remain or the context is
// cancelled. Cancellation is honored at batch and job boundaries.
func (s *Service) Run(ctx context.Context) (*models.StageReport, error) {
	started := time.Now()
	report := &models.StageReport{Stage: models.StageProcess}

	// Jobs that failed stay unprocessed in storage; attempt each at most
	// once per run so a poisoned job cannot loop the stage.
	attempted := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(started)
			return report, err
		}

		listed, err := s.jobs.ListUnprocessedJobs(ctx, s.config.BatchSize+len(attempted))
		if err != nil {
			report.Duration = time.Since(started)
			report.Error = err.Error()
			return report, fmt.Errorf("failed to list unprocessed jobs: %w", err)
		}

		batch := make([]*models.Job, 0, len(listed))
		for _, job := range listed {
			if _, seen := attempted[job.ID]; seen {
				continue
			}
			attempted[job.ID] = struct{}{}
			batch = append(batch, job)
			if len(batch) == s.config.BatchSize {
				break
			}
		}
		if len(batch) == 0 {
			break
		}

		s.logger.Info().
			Int("batch_size", len(batch)).
			Int("workers", s.config.Workers).
			Msg("Processing batch")

		s.runBatch(ctx, batch, report)
	}

	report.Duration = time.Since(started)
	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Processing complete")
	return report, nil
}

func (s *Service) runBatch(ctx context.Context, batch []*models.Job, report *models.StageReport) {
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
				err := s.processJob(ctx, job)

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
						Str("title", job.Title).
						Err(err).
						Msg("Job processing failed, continuing batch")
				}
			}
		}()
	}

	for _, job := range batch {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- job:
		}
	}
	close(work)
	wg.Wait()
}

// processJob extracts structured fields, stores the vector documents, then
// marks the job processed. Fallback extraction kicks in when the model
// path errors.
func (s *Service) processJob(ctx context.Context, job *models.Job) error {
	description := normalizeDescription(job.Description)
	if description == "" {
		description = fmt.Sprintf("%s %s %s", job.Title, job.Company, job.Location)
	}

	fields, err := s.extractFields(ctx, job, description)
	if err != nil {
		return err
	}

	docs := buildDocuments(job, fields)
	if len(docs) == 0 {
		return fmt.Errorf("job %s produced no documents", job.ID)
	}

	refs, err := s.vector.UpsertDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}

	if err := s.jobs.MarkJobProcessed(ctx, job.ID, fields, refs); err != nil {
		return fmt.Errorf("failed to mark job processed: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("documents", len(docs)).
		Bool("fallback", fields.Fallback).
		Msg("Job processed")
	return nil
}

func (s *Service) extractFields(ctx context.Context, job *models.Job, description string) (*models.StructuredFields, error) {
	if s.extractor != nil {
		fields, err := s.extractor.Extract(ctx, description)
		if err == nil {
			return fields, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn().
			Str("job_id", job.ID).
			Err(err).
			Msg("Model extraction failed, using fallback splitter")
	}

	fields, err := s.fallback.Extract(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("fallback extraction failed: %w", err)
	}
	return fields, nil
}
