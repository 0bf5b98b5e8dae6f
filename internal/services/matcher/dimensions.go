package matcher

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/models"
)

var requiredYearsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// experienceScore compares the candidate's total years against the job's
// stated requirement. More experience than required never penalizes;
// missing or open requirements score full.
func experienceScore(required string, resumeYears float64) float64 {
	req := strings.TrimSpace(required)
	if req == "" || strings.Contains(req, "不限") || strings.Contains(req, "应届") {
		return 1
	}

	m := requiredYearsRe.FindString(req)
	if m == "" {
		return 1
	}
	years, err := strconv.ParseFloat(m, 64)
	if err != nil || years <= 0 {
		return 1
	}

	score := resumeYears / years
	if score > 1 {
		score = 1
	}
	return score
}

// salaryScore is the fraction of the candidate's expected range covered by
// the job's offered range. Either side missing or unparseable scores a
// neutral 0.5 rather than penalizing the job.
func salaryScore(salaryRaw string, resume *models.ResumeProfile) float64 {
	offered := common.ParseSalary(salaryRaw)
	expected := resume.ExpectedSalary()
	if !offered.Valid || !expected.Valid {
		return 0.5
	}
	return expected.Overlap(offered)
}

// industryScore is the fraction of the candidate's prior industries that
// appear in the posting text. Candidates with no industry history score a
// neutral 0.5.
func industryScore(job *models.Job, resume *models.ResumeProfile) float64 {
	industries := make(map[string]struct{})
	for _, entry := range resume.WorkHistory {
		if ind := strings.TrimSpace(entry.Industry); ind != "" {
			industries[ind] = struct{}{}
		}
	}
	if len(industries) == 0 {
		return 0.5
	}

	haystack := strings.ToLower(job.Title + " " + job.Company + " " + job.Description)
	matched := 0
	for ind := range industries {
		if strings.Contains(haystack, strings.ToLower(ind)) {
			matched++
		}
	}
	return float64(matched) / float64(len(industries))
}
