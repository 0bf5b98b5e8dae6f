package processor

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/seekworks/autoapply/internal/models"
)

// normalizeDescription converts HTML descriptions to markdown-ish plain
// text. Descriptions already in plain text pass through trimmed.
func normalizeDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if !strings.Contains(trimmed, "<") || !strings.Contains(trimmed, ">") {
		return trimmed
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(trimmed)
	if err != nil {
		return trimmed
	}
	return strings.TrimSpace(markdown)
}

// buildDocuments produces the per-job vector documents from the job row
// and its structured fields. Empty sections produce no document; a fully
// populated job yields five.
func buildDocuments(job *models.Job, fields *models.StructuredFields) []*models.JobDocument {
	var docs []*models.JobDocument

	add := func(docType models.DocumentType, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		docs = append(docs, &models.JobDocument{
			JobID:     job.ID,
			Type:      docType,
			Content:   content,
			Site:      job.Site,
			CreatedAt: job.CreatedAt,
		})
	}

	add(models.DocTypeOverview, fmt.Sprintf("%s %s %s %s", job.Title, job.Company, job.SalaryRaw, job.Location))
	add(models.DocTypeResponsibility, strings.Join(fields.Responsibilities, "\n"))
	add(models.DocTypeRequirement, strings.Join(fields.Requirements, "\n"))
	add(models.DocTypeSkills, strings.Join(fields.Skills, " "))

	basic := strings.TrimSpace(fields.Education + " " + fields.Experience)
	add(models.DocTypeBasicRequirements, basic)

	return docs
}
