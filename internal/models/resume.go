package models

import "github.com/seekworks/autoapply/internal/common"

// SkillCategory groups related candidate skills with a proficiency level
type SkillCategory struct {
	Name        string   `json:"name" toml:"name"`
	Skills      []string `json:"skills" toml:"skills"`
	Proficiency string   `json:"proficiency" toml:"proficiency"` // e.g. "expert", "proficient", "familiar"
	Years       float64  `json:"years" toml:"years"`
}

// WorkHistoryEntry is one prior position on the resume
type WorkHistoryEntry struct {
	Company  string  `json:"company" toml:"company"`
	Position string  `json:"position" toml:"position"`
	Years    float64 `json:"years" toml:"years"`
	Industry string  `json:"industry" toml:"industry"`
}

// ResumeProfile is the structured candidate input. It is read-only to the
// pipeline and never stored in the core.
type ResumeProfile struct {
	Name            string             `json:"name" toml:"name"`
	TotalYears      float64            `json:"total_years" toml:"total_years"`
	CurrentPosition string             `json:"current_position" toml:"current_position"`
	SkillCategories []SkillCategory    `json:"skill_categories" toml:"skill_categories"`
	WorkHistory     []WorkHistoryEntry `json:"work_history" toml:"work_history"`
	Locations       []string           `json:"locations" toml:"locations"`
	SalaryMin       float64            `json:"salary_min" toml:"salary_min"` // Monthly, yuan
	SalaryMax       float64            `json:"salary_max" toml:"salary_max"`
}

// AllSkills flattens skill categories into a single list, preserving order
func (r *ResumeProfile) AllSkills() []string {
	var skills []string
	for _, cat := range r.SkillCategories {
		skills = append(skills, cat.Skills...)
	}
	return skills
}

// ExpectedSalary returns the candidate's expectation as a SalaryRange
func (r *ResumeProfile) ExpectedSalary() common.SalaryRange {
	if r.SalaryMin <= 0 || r.SalaryMax < r.SalaryMin {
		return common.SalaryRange{}
	}
	return common.SalaryRange{MinMonthly: r.SalaryMin, MaxMonthly: r.SalaryMax, Valid: true}
}
