package matcher

import (
	"context"
	"strings"

	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
	"github.com/seekworks/autoapply/internal/services/vector"
)

// docTypeWeights blend the per-document-type retrieval scores into one
// semantic score. Overview carries the most signal; the short
// basic-requirements document the least.
var docTypeWeights = map[models.DocumentType]float64{
	models.DocTypeOverview:          0.30,
	models.DocTypeResponsibility:    0.25,
	models.DocTypeRequirement:       0.25,
	models.DocTypeSkills:            0.15,
	models.DocTypeBasicRequirements: 0.05,
}

const semanticSearchK = 8

// buildQuery assembles the retrieval query from the candidate's position
// and their leading skills
func buildQuery(resume *models.ResumeProfile, topSkills int) string {
	parts := []string{resume.CurrentPosition}
	skills := resume.AllSkills()
	if topSkills > 0 && len(skills) > topSkills {
		skills = skills[:topSkills]
	}
	parts = append(parts, skills...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// semanticScore retrieves the job's own documents against the resume query
// and blends the mean score within each document type. Jobs with no
// retrievable documents fall back to weighted lexical overlap over the
// fields each document type is built from.
func (s *Service) semanticScore(ctx context.Context, job *models.Job, query string) (float64, error) {
	strategy := models.SearchStrategy(s.config.SearchStrategy)
	if strategy == "" {
		strategy = models.StrategyHybrid
	}

	results, err := s.vector.TimeAwareSearch(ctx, query, semanticSearchK, strategy, &interfaces.SearchFilter{JobID: job.ID})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return lexicalFallback(query, job), nil
	}

	sums := make(map[models.DocumentType]float64)
	counts := make(map[models.DocumentType]int)
	for _, r := range results {
		sums[r.Document.Type] += r.Score
		counts[r.Document.Type]++
	}

	var weighted, weightSum float64
	for docType, sum := range sums {
		w, ok := docTypeWeights[docType]
		if !ok {
			continue
		}
		weighted += w * sum / float64(counts[docType])
		weightSum += w
	}
	if weightSum == 0 {
		return lexicalFallback(query, job), nil
	}
	return weighted / weightSum, nil
}

// lexicalFallback reconstructs each document type from the job's fields
// and blends per-document token overlap under the same type weights the
// retrieval path uses. Jobs not yet structured stand the raw description
// in for both narrative documents.
func lexicalFallback(query string, job *models.Job) float64 {
	docs := map[models.DocumentType]string{
		models.DocTypeOverview:          strings.Join([]string{job.Title, job.Company, job.SalaryRaw, job.Location}, " "),
		models.DocTypeResponsibility:    strings.Join(job.Responsibilities, " "),
		models.DocTypeRequirement:       strings.Join(job.Requirements, " "),
		models.DocTypeSkills:            strings.Join(job.Skills, " "),
		models.DocTypeBasicRequirements: strings.TrimSpace(job.Education + " " + job.Experience),
	}
	if len(job.Responsibilities) == 0 {
		docs[models.DocTypeResponsibility] = job.Description
	}
	if len(job.Requirements) == 0 {
		docs[models.DocTypeRequirement] = job.Description
	}

	var weighted, weightSum float64
	for docType, text := range docs {
		if strings.TrimSpace(text) == "" {
			continue
		}
		w := docTypeWeights[docType]
		weighted += w * lexicalOverlap(query, text)
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

// lexicalOverlap is the deterministic fallback: the fraction of query
// tokens present in the target text
func lexicalOverlap(query, text string) float64 {
	queryTokens := vector.Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	textSet := make(map[string]struct{})
	for _, token := range vector.Tokenize(text) {
		textSet[token] = struct{}{}
	}

	matched := 0
	seen := make(map[string]struct{})
	total := 0
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		total++
		if _, ok := textSet[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(total)
}
