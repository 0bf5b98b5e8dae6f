package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/seekworks/autoapply/internal/models"
)

// LoadResumeProfile reads the candidate profile from a TOML file. Unknown
// keys are rejected so a typo in a skill table cannot silently vanish.
func LoadResumeProfile(path string) (*models.ResumeProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume profile %s: %w", path, err)
	}

	var resume models.ResumeProfile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&resume); err != nil {
		return nil, fmt.Errorf("failed to parse resume profile %s: %w", path, err)
	}

	if len(resume.AllSkills()) == 0 {
		return nil, fmt.Errorf("resume profile %s lists no skills", path)
	}
	if resume.TotalYears < 0 {
		return nil, fmt.Errorf("resume profile %s has negative total_years", path)
	}

	return &resume, nil
}
