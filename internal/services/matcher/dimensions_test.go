package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seekworks/autoapply/internal/models"
)

func TestExperienceScore(t *testing.T) {
	tests := []struct {
		name     string
		required string
		years    float64
		want     float64
	}{
		{"exact match", "5年", 5, 1.0},
		{"over-qualified capped", "3年", 10, 1.0},
		{"under-qualified proportional", "10年", 5, 0.5},
		{"range uses lower bound", "3-5年", 3, 1.0},
		{"no requirement", "", 2, 1.0},
		{"open requirement", "经验不限", 0, 1.0},
		{"fresh graduate", "应届生", 0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, experienceScore(tt.required, tt.years), 1e-9)
		})
	}
}

func TestSalaryScore(t *testing.T) {
	resume := &models.ResumeProfile{SalaryMin: 20000, SalaryMax: 30000}

	// Offer fully covers the expectation
	assert.InDelta(t, 1.0, salaryScore("20-35K", resume), 1e-9)
	// Offer covers half the expectation
	assert.InDelta(t, 0.5, salaryScore("15-25K", resume), 1e-9)
	// No overlap at all
	assert.InDelta(t, 0.0, salaryScore("5-10K", resume), 1e-9)
	// Unparseable offer is neutral
	assert.Equal(t, 0.5, salaryScore("面议", resume))
	// Candidate without expectation is neutral
	assert.Equal(t, 0.5, salaryScore("20-35K", &models.ResumeProfile{}))
}

func TestIndustryScore(t *testing.T) {
	job := &models.Job{Title: "Go工程师", Company: "某电商平台", Description: "负责电商交易系统"}

	resume := &models.ResumeProfile{WorkHistory: []models.WorkHistoryEntry{
		{Industry: "电商"},
		{Industry: "金融"},
	}}
	assert.InDelta(t, 0.5, industryScore(job, resume), 1e-9)

	noHistory := &models.ResumeProfile{}
	assert.Equal(t, 0.5, industryScore(job, noHistory))
}

func TestLexicalOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, lexicalOverlap("go redis", "精通Go与Redis开发"), 1e-9)
	assert.InDelta(t, 0.5, lexicalOverlap("go cobol", "精通Go开发"), 1e-9)
	assert.Equal(t, 0.0, lexicalOverlap("", "anything"))
}
