package common

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"omitempty,oneof=development production"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Extractor   ExtractorConfig `toml:"extractor"`
	Processor   ProcessorConfig `toml:"processor"`
	Matcher     MatcherConfig   `toml:"matcher"`
	Decision    DecisionConfig  `toml:"decision"`
	Submitter   SubmitterConfig `toml:"submitter"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Claude      ClaudeConfig    `toml:"claude"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Sites       []SiteConfig    `toml:"sites"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string   `toml:"format" validate:"omitempty,oneof=text json"`
	Output []string `toml:"output"`
}

// BrowserConfig controls the chromedp-backed browser driver
type BrowserConfig struct {
	UserAgent       string        `toml:"user_agent"`
	Headless        bool          `toml:"headless"`
	DisableGPU      bool          `toml:"disable_gpu"`
	NoSandbox       bool          `toml:"no_sandbox"`
	NavigateTimeout time.Duration `toml:"navigate_timeout"` // Per-navigation timeout (default 30s)
}

// ExtractorConfig controls the listing extractor stage
type ExtractorConfig struct {
	MaxPages           int           `toml:"max_pages" validate:"min=1"`
	MinDelay           time.Duration `toml:"min_delay"`
	MaxDelay           time.Duration `toml:"max_delay"`
	SalaryFilterClicks int           `toml:"salary_filter_clicks"` // Max attempts to apply the salary filter
	MaxCardFailures    int           `toml:"max_card_failures"`    // Per-page bound on failed cards before recovery
	RequestsPerSecond  float64       `toml:"requests_per_second"`  // Rate limiter floor under the randomized delay
}

// ProcessorConfig controls the structured-processing stage
type ProcessorConfig struct {
	BatchSize int `toml:"batch_size" validate:"min=1"`
	Workers   int `toml:"workers" validate:"min=1,max=16"`
}

// MatcherConfig controls scoring weights and matcher concurrency
type MatcherConfig struct {
	Workers          int     `toml:"workers" validate:"min=1,max=32"`
	SemanticWeight   float64 `toml:"semantic_weight" validate:"min=0,max=1"`
	SkillWeight      float64 `toml:"skill_weight" validate:"min=0,max=1"`
	ExperienceWeight float64 `toml:"experience_weight" validate:"min=0,max=1"`
	SalaryWeight     float64 `toml:"salary_weight" validate:"min=0,max=1"`
	IndustryWeight   float64 `toml:"industry_weight" validate:"min=0,max=1"`
	SearchStrategy   string  `toml:"search_strategy" validate:"omitempty,oneof=hybrid fresh_first balanced"`
	TopSkills        int     `toml:"top_skills"` // Skills used when building the semantic query
}

// DecisionConfig controls the salary gate and priority scoring
type DecisionConfig struct {
	MinSalaryScore        float64 `toml:"min_salary_score" validate:"min=0,max=1"`
	SeniorSalaryScore     float64 `toml:"senior_salary_score" validate:"min=0,max=1"`
	EntrySalaryScore      float64 `toml:"entry_salary_score" validate:"min=0,max=1"`
	MaxSubmissionsPerDay  int     `toml:"max_submissions_per_day" validate:"min=1"`
	MatchScoreWeight      float64 `toml:"match_score_weight"`
	SalaryAttractWeight   float64 `toml:"salary_attract_weight"`
	LocationWeight        float64 `toml:"location_weight"`
	CompanyWeight         float64 `toml:"company_weight"`
	GrowthWeight          float64 `toml:"growth_weight"`
	CompetitionWeight     float64 `toml:"competition_weight"`
	RejectionRateWindow   int     `toml:"rejection_rate_window"`   // Running-average window for adaptive sizing
	InitialRejectionRate  float64 `toml:"initial_rejection_rate"`  // Seed rejection rate before observations exist
}

// SubmitterConfig controls pacing, batch rest and session keep-alive
type SubmitterConfig struct {
	MinDelay          time.Duration `toml:"min_delay"`
	MaxDelay          time.Duration `toml:"max_delay"`
	BatchRestEvery    int           `toml:"batch_rest_every"`    // Rest after every N submissions
	BatchRestMin      time.Duration `toml:"batch_rest_min"`
	BatchRestMax      time.Duration `toml:"batch_rest_max"`
	KeepAliveInterval time.Duration `toml:"keep_alive_interval"` // Probe interval during batch rest
	ReloginTimeout    time.Duration `toml:"relogin_timeout"`     // Bound on the single recovery login attempt
	DryRun            bool          `toml:"dry_run"`
}

// PipelineConfig controls the master controller
type PipelineConfig struct {
	StageTimeout       time.Duration `toml:"stage_timeout"`
	CheckpointInterval int           `toml:"checkpoint_interval" validate:"min=1"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// SchedulerConfig controls recurring scheduled pipeline runs
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// SiteConfig carries the per-site selector table consulted in order
type SiteConfig struct {
	Name              string `toml:"name"`
	SearchURLTemplate string `toml:"search_url_template"` // %s is replaced with the URL-escaped keyword
	PageURLTemplate   string `toml:"page_url_template"`   // %s keyword, %d page number

	CardSelectors []string `toml:"card_selectors"`

	// Sub-selectors applied within one card; comma-separated CSS
	// alternatives are allowed
	TitleSelector       string `toml:"title_selector"`
	CompanySelector     string `toml:"company_selector"`
	SalarySelector      string `toml:"salary_selector"`
	LocationSelector    string `toml:"location_selector"`
	JobIDAttr           string `toml:"job_id_attr"` // Card attribute carrying the site job ID
	DescriptionSelector string `toml:"description_selector"`

	NextPageSelector   string   `toml:"next_page_selector"`
	ActivePageSelector string   `toml:"active_page_selector"` // Pagination element carrying the current page number
	SalaryFilter       string   `toml:"salary_filter"`
	ApplySelectors     []string `toml:"apply_selectors"`
	ApplyVerbs         []string `toml:"apply_verbs"` // A located button counts as an apply button only if its text contains one
	SuspendedPhrases   []string `toml:"suspended_phrases"`
	ExpiredPhrases     []string `toml:"expired_phrases"`
	LoginPhrases       []string `toml:"login_phrases"`
	AppliedIndicators  []string `toml:"applied_indicators"`
	DisabledIndicators []string `toml:"disabled_indicators"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in autoapply.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Browser: BrowserConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headless:        false, // Job sites require a visible session after human login
			DisableGPU:      true,
			NoSandbox:       false,
			NavigateTimeout: 30 * time.Second,
		},
		Extractor: ExtractorConfig{
			MaxPages:           10,
			MinDelay:           2 * time.Second,
			MaxDelay:           5 * time.Second,
			SalaryFilterClicks: 3,
			MaxCardFailures:    5,
			RequestsPerSecond:  0.5,
		},
		Processor: ProcessorConfig{
			BatchSize: 20,
			Workers:   3,
		},
		Matcher: MatcherConfig{
			Workers:          5,
			SemanticWeight:   0.40,
			SkillWeight:      0.30,
			ExperienceWeight: 0.20,
			SalaryWeight:     0.10,
			IndustryWeight:   0.0,
			SearchStrategy:   "hybrid",
			TopSkills:        10,
		},
		Decision: DecisionConfig{
			MinSalaryScore:       0.30,
			SeniorSalaryScore:    0.50,
			EntrySalaryScore:     0.20,
			MaxSubmissionsPerDay: 50,
			MatchScoreWeight:     0.35,
			SalaryAttractWeight:  0.15,
			LocationWeight:       0.15,
			CompanyWeight:        0.15,
			GrowthWeight:         0.10,
			CompetitionWeight:    0.10,
			RejectionRateWindow:  50,
			InitialRejectionRate: 0.9,
		},
		Submitter: SubmitterConfig{
			MinDelay:          3 * time.Second,
			MaxDelay:          8 * time.Second,
			BatchRestEvery:    10,
			BatchRestMin:      2 * time.Minute,
			BatchRestMax:      5 * time.Minute,
			KeepAliveInterval: 30 * time.Second,
			ReloginTimeout:    2 * time.Minute,
			DryRun:            false,
		},
		Pipeline: PipelineConfig{
			StageTimeout:       1 * time.Hour,
			CheckpointInterval: 10,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.0, // Deterministic structured extraction
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 9 * * *",
		},
		Sites: []SiteConfig{DefaultZhipinSite()},
	}
}

// DefaultZhipinSite returns the built-in selector table for the reference site
func DefaultZhipinSite() SiteConfig {
	return SiteConfig{
		Name:                "zhipin",
		SearchURLTemplate:   "https://www.zhipin.com/web/geek/job?query=%s",
		PageURLTemplate:     "https://www.zhipin.com/web/geek/job?query=%s&page=%d",
		TitleSelector:       "span.job-name, a.job-name, div.job-title",
		CompanySelector:     "h3.company-name, div.company-name a, span.company-name",
		SalarySelector:      "span.salary, span.red, span.job-salary",
		LocationSelector:    "span.job-area, span.job-city, span.area",
		JobIDAttr:           "data-jobid",
		DescriptionSelector: "div.job-sec-text, div.job-detail-section, div.detail-content",
		CardSelectors: []string{
			"li.job-card-wrapper",
			"div.job-card-wrapper",
			"li.job-primary",
			"div.job-primary",
			"ul.job-list-box > li",
			"div.job-list > ul > li",
			"div.search-job-result li",
			"a.job-card-left",
		},
		NextPageSelector:   "a.ui-icon-arrow-right",
		ActivePageSelector: "div.options-pages a.selected, ul.pagination li.active",
		SalaryFilter:       "dd[data-filter=salary] a",
		ApplySelectors: []string{
			"a.btn-startchat",
			"a.op-btn-chat",
			"button.btn-apply",
			"a.btn-apply",
		},
		ApplyVerbs: []string{"沟通", "申请", "投递", "apply", "chat"},
		SuspendedPhrases: []string{
			"很抱歉，你选择的职位目前已经暂停招聘",
			"职位已暂停招聘",
		},
		ExpiredPhrases: []string{
			"职位已关闭",
			"职位已下线",
			"该职位已结束招聘",
		},
		LoginPhrases: []string{
			"请先登录",
			"登录后查看",
			"账号登录",
		},
		AppliedIndicators:  []string{"已申请", "已投递", "继续沟通"},
		DisabledIndicators: []string{"off", "disabled"},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files. Unknown keys are rejected at load time.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants. Programmer errors fail fast here.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Extractor.MinDelay > c.Extractor.MaxDelay {
		return fmt.Errorf("invalid configuration: extractor min_delay %s exceeds max_delay %s", c.Extractor.MinDelay, c.Extractor.MaxDelay)
	}
	if c.Submitter.MinDelay > c.Submitter.MaxDelay {
		return fmt.Errorf("invalid configuration: submitter min_delay %s exceeds max_delay %s", c.Submitter.MinDelay, c.Submitter.MaxDelay)
	}

	weightSum := c.Matcher.SemanticWeight + c.Matcher.SkillWeight +
		c.Matcher.ExperienceWeight + c.Matcher.SalaryWeight + c.Matcher.IndustryWeight
	if weightSum <= 0 {
		return fmt.Errorf("invalid configuration: matcher weights sum to %f, must be positive", weightSum)
	}

	if len(c.Sites) == 0 {
		return fmt.Errorf("invalid configuration: at least one site selector table is required")
	}
	for _, site := range c.Sites {
		if site.Name == "" {
			return fmt.Errorf("invalid configuration: site name is required")
		}
		if site.SearchURLTemplate == "" {
			return fmt.Errorf("invalid configuration: site %s has no search_url_template", site.Name)
		}
	}

	return nil
}

// Site returns the selector table for the named site
func (c *Config) Site(name string) (*SiteConfig, error) {
	for i := range c.Sites {
		if c.Sites[i].Name == name {
			return &c.Sites[i], nil
		}
	}
	return nil, fmt.Errorf("no selector table configured for site: %s", name)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AUTOAPPLY_ENV"); env != "" {
		config.Environment = env
	}
	if path := os.Getenv("AUTOAPPLY_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("AUTOAPPLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = key
	}
	if dryRun := os.Getenv("AUTOAPPLY_DRY_RUN"); dryRun != "" {
		if v, err := strconv.ParseBool(dryRun); err == nil {
			config.Submitter.DryRun = v
		}
	}
	if quota := os.Getenv("AUTOAPPLY_DAILY_QUOTA"); quota != "" {
		if v, err := strconv.Atoi(quota); err == nil && v > 0 {
			config.Decision.MaxSubmissionsPerDay = v
		}
	}
}
