package decision

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Title keywords selecting the salary-gate tier. Senior roles demand a
// stronger salary fit before a submission is worth spending quota on;
// entry roles get more slack.
var (
	seniorTitleKeywords = []string{"高级", "资深", "专家", "架构师", "总监", "负责人", "senior", "staff", "principal", "lead", "expert"}
	entryTitleKeywords  = []string{"初级", "助理", "实习", "应届", "junior", "intern", "graduate"}

	growthKeywords      = []string{"期权", "股票", "晋升", "培训", "股权", "成长"}
	urgencyKeywords     = []string{"急招", "急聘", "紧急"}
	outsourcingKeywords = []string{"外包", "外派", "驻场"}
)

// Priority band boundaries over the priority score
const (
	urgentBand = 0.85
	highBand   = 0.70
	mediumBand = 0.55
)

// Engine applies the salary gate and priority scoring at evaluation time,
// and the daily quota plus adaptive batch sizing at selection time.
// Safe for concurrent Evaluate calls from matcher workers.
type Engine struct {
	matches     interfaces.MatchStorage
	submissions interfaces.SubmissionStorage
	config      *common.DecisionConfig
	logger      arbor.ILogger

	mu        sync.Mutex
	evaluated int
	rejected  int
	// window is a ring of recent gate outcomes (true = rejected) backing
	// the adaptive query multiplier
	window []bool
	cursor int
	filled int
}

// NewEngine creates the decision engine
func NewEngine(matches interfaces.MatchStorage, submissions interfaces.SubmissionStorage, cfg *common.Config, logger arbor.ILogger) interfaces.DecisionEngine {
	windowSize := cfg.Decision.RejectionRateWindow
	if windowSize < 1 {
		windowSize = 50
	}
	return &Engine{
		matches:     matches,
		submissions: submissions,
		config:      &cfg.Decision,
		logger:      logger,
		window:      make([]bool, windowSize),
	}
}

// Evaluate stamps the match with its gate decision, priority band and
// submit eligibility. Called once per match before its single write.
func (e *Engine) Evaluate(match *models.ResumeMatch, job *models.Job, resume *models.ResumeProfile) {
	threshold := e.salaryThreshold(job.Title)
	rejected := match.Dimensions.Salary < threshold

	e.recordGateOutcome(rejected)

	if rejected {
		match.Decision = models.DecisionRejectedByGate
		match.Priority = models.PriorityLow
		match.PriorityScore = 0
		match.ShouldSubmit = false
		e.logger.Debug().
			Str("job_id", match.JobID).
			Float64("salary_score", match.Dimensions.Salary).
			Float64("threshold", threshold).
			Msg("Match rejected by salary gate")
		return
	}

	match.PriorityScore = e.priorityScore(match, job, resume)
	match.Priority = priorityBand(match.PriorityScore)

	// Passing the gate is necessary but not sufficient: only matches in
	// the medium band or above spend submission quota
	if match.Priority == models.PriorityLow {
		match.Decision = models.DecisionSkip
		match.ShouldSubmit = false
		e.logger.Debug().
			Str("job_id", match.JobID).
			Float64("priority_score", match.PriorityScore).
			Msg("Match passed gate but priority too low to submit")
		return
	}

	match.Decision = models.DecisionSubmit
	match.ShouldSubmit = true
}

// salaryThreshold picks the gate tier from the job title
func (e *Engine) salaryThreshold(title string) float64 {
	lower := strings.ToLower(title)
	for _, kw := range seniorTitleKeywords {
		if strings.Contains(lower, kw) {
			return e.config.SeniorSalaryScore
		}
	}
	for _, kw := range entryTitleKeywords {
		if strings.Contains(lower, kw) {
			return e.config.EntrySalaryScore
		}
	}
	return e.config.MinSalaryScore
}

// priorityScore blends match quality with job attractiveness signals
func (e *Engine) priorityScore(match *models.ResumeMatch, job *models.Job, resume *models.ResumeProfile) float64 {
	c := e.config

	score := c.MatchScoreWeight*match.OverallScore +
		c.SalaryAttractWeight*salaryAttractiveness(job.SalaryRaw, resume) +
		c.LocationWeight*locationScore(job.Location, resume.Locations) +
		c.CompanyWeight*companyScore(job.Company) +
		c.GrowthWeight*keywordScore(job.Description, growthKeywords) +
		c.CompetitionWeight*keywordScore(job.Title+" "+job.Description, urgencyKeywords)

	weightSum := c.MatchScoreWeight + c.SalaryAttractWeight + c.LocationWeight +
		c.CompanyWeight + c.GrowthWeight + c.CompetitionWeight
	if weightSum <= 0 {
		return match.OverallScore
	}
	return score / weightSum
}

// salaryAttractiveness compares the offer ceiling with the candidate's
// expectation ceiling
func salaryAttractiveness(salaryRaw string, resume *models.ResumeProfile) float64 {
	offered := common.ParseSalary(salaryRaw)
	if !offered.Valid || resume.SalaryMax <= 0 {
		return 0.5
	}
	ratio := offered.MaxMonthly / resume.SalaryMax
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func locationScore(location string, preferred []string) float64 {
	if len(preferred) == 0 {
		return 0.5
	}
	for _, p := range preferred {
		if p != "" && strings.Contains(location, p) {
			return 1
		}
	}
	return 0.2
}

// companyScore penalizes outsourcing postings; everything else is neutral
func companyScore(company string) float64 {
	for _, kw := range outsourcingKeywords {
		if strings.Contains(company, kw) {
			return 0.2
		}
	}
	return 0.6
}

func keywordScore(text string, keywords []string) float64 {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return 1
		}
	}
	return 0.5
}

func priorityBand(score float64) models.Priority {
	switch {
	case score >= urgentBand:
		return models.PriorityUrgent
	case score >= highBand:
		return models.PriorityHigh
	case score >= mediumBand:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func (e *Engine) recordGateOutcome(rejected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evaluated++
	if rejected {
		e.rejected++
	}
	e.window[e.cursor] = rejected
	e.cursor = (e.cursor + 1) % len(e.window)
	if e.filled < len(e.window) {
		e.filled++
	}
}

// rejectionRate is the windowed average, seeded with the configured rate
// until observations exist
func (e *Engine) rejectionRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filled == 0 {
		return e.config.InitialRejectionRate
	}
	rejected := 0
	for i := 0; i < e.filled; i++ {
		if e.window[i] {
			rejected++
		}
	}
	return float64(rejected) / float64(e.filled)
}

// GateStats reports cumulative salary-gate outcomes
func (e *Engine) GateStats() interfaces.GateStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := interfaces.GateStats{Evaluated: e.evaluated, Rejected: e.rejected}
	if e.evaluated > 0 {
		stats.RejectionRate = float64(e.rejected) / float64(e.evaluated)
	}
	return stats
}

// queryMultiplier sizes the candidate query so that after gate losses
// roughly k submit-ready matches remain: max(2, ceil(1/(1-rate))+1)
func (e *Engine) queryMultiplier() int {
	rate := e.rejectionRate()
	if rate >= 1 {
		rate = 0.99
	}
	m := int(math.Ceil(1/(1-rate)-1e-9)) + 1
	if m < 2 {
		m = 2
	}
	return m
}

// SelectSubmitReady returns up to k submit-ready matches in priority-then-
// score order, capped by the remaining daily quota
func (e *Engine) SelectSubmitReady(ctx context.Context, k int) ([]*models.ResumeMatch, error) {
	today, err := e.submissions.CountSubmissionsToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's submissions: %w", err)
	}

	remaining := e.config.MaxSubmissionsPerDay - today
	if remaining <= 0 {
		e.logger.Info().
			Int("submitted_today", today).
			Int("quota", e.config.MaxSubmissionsPerDay).
			Msg("Daily submission quota exhausted")
		return nil, nil
	}
	if k <= 0 || k > remaining {
		k = remaining
	}

	multiplier := e.queryMultiplier()
	candidates, err := e.matches.ListUnprocessedMatches(ctx, k*multiplier, e.config.MinSalaryScore)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed matches: %w", err)
	}

	ready := make([]*models.ResumeMatch, 0, len(candidates))
	for _, match := range candidates {
		if match.ShouldSubmit && match.Decision == models.DecisionSubmit {
			ready = append(ready, match)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority.Rank() != ready[j].Priority.Rank() {
			return ready[i].Priority.Rank() > ready[j].Priority.Rank()
		}
		return ready[i].PriorityScore > ready[j].PriorityScore
	})

	if len(ready) > k {
		ready = ready[:k]
	}

	e.logger.Info().
		Int("selected", len(ready)).
		Int("candidates", len(candidates)).
		Int("multiplier", multiplier).
		Int("remaining_quota", remaining).
		Msg("Submit-ready matches selected")
	return ready, nil
}
