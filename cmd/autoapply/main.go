package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
	"github.com/seekworks/autoapply/internal/pipeline"
	"github.com/seekworks/autoapply/internal/services/browser"
	"github.com/seekworks/autoapply/internal/services/decision"
	"github.com/seekworks/autoapply/internal/services/extractor"
	"github.com/seekworks/autoapply/internal/services/matcher"
	"github.com/seekworks/autoapply/internal/services/processor"
	"github.com/seekworks/autoapply/internal/services/scheduler"
	"github.com/seekworks/autoapply/internal/services/submitter"
	"github.com/seekworks/autoapply/internal/services/vector"
	badgerstore "github.com/seekworks/autoapply/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths
	resumePath   = flag.String("resume", "resume.toml", "Resume profile TOML file")
	siteName     = flag.String("site", "zhipin", "Target site selector table")
	keywordsFlag = flag.String("keywords", "", "Comma-separated search keywords (required for full runs)")
	stageFlag    = flag.String("stage", "", "Run a single stage (extract|process|match|decide|submit) instead of the full pipeline")
	dryRun       = flag.Bool("dry-run", false, "Detect and log without clicking apply buttons")
	healthCheck  = flag.Bool("health", false, "Run storage health check and exit")
	schedule     = flag.Bool("schedule", false, "Run on the configured cron schedule instead of once")
	showVersion  = flag.Bool("version", false, "Print version information")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("AutoApply version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("autoapply.toml"); err == nil {
			configFiles = append(configFiles, "autoapply.toml")
		} else if _, err := os.Stat("deployments/local/autoapply.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/autoapply.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if *dryRun {
		config.Submitter.DryRun = true
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Bool("dry_run", config.Submitter.DryRun).
		Msg("Application configuration loaded")

	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	storage, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open storage")
		return pipeline.ExitFatal
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Warn().Err(err).Msg("Storage close failed")
		}
	}()

	controller, driver, sched, err := buildPipeline(storage)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to assemble pipeline")
		return pipeline.ExitFatal
	}

	if *healthCheck {
		if err := controller.HealthCheck(ctx); err != nil {
			logger.Error().Err(err).Msg("Health check failed")
			return pipeline.ExitStageFailure
		}
		return pipeline.ExitOK
	}

	resume, err := pipeline.LoadResumeProfile(*resumePath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load resume profile")
		return pipeline.ExitFatal
	}

	keywords := splitKeywords(*keywordsFlag)
	needsExtraction := *stageFlag == "" || *stageFlag == string(models.StageExtract)
	if len(keywords) == 0 && needsExtraction {
		logger.Error().Msg("At least one -keywords entry is required")
		return pipeline.ExitFatal
	}

	if err := driver.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start browser")
		return pipeline.ExitFatal
	}
	defer func() {
		if err := driver.Quit(); err != nil {
			logger.Warn().Err(err).Msg("Browser shutdown failed")
		}
	}()

	runOnce := func(runCtx context.Context) error {
		report := controller.RunFullPipeline(runCtx, *siteName, keywords, resume)
		printReport(report)
		if report.ExitCode != pipeline.ExitOK {
			return fmt.Errorf("pipeline finished with exit code %d: %s", report.ExitCode, report.FirstError)
		}
		return nil
	}

	if *schedule {
		config.Scheduler.Enabled = true
		svc := sched(runOnce)
		if err := svc.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start scheduler")
			return pipeline.ExitFatal
		}
		<-ctx.Done()
		svc.Stop()
		logger.Info().Msg("Shutdown signal received")
		return pipeline.ExitOK
	}

	if *stageFlag != "" {
		report := controller.RunStage(ctx, models.StageName(*stageFlag), *siteName, keywords, resume)
		printReport(report)
		return report.ExitCode
	}

	report := controller.RunFullPipeline(ctx, *siteName, keywords, resume)
	printReport(report)
	return report.ExitCode
}

// buildPipeline wires services in dependency order. The scheduler is
// returned as a factory because it closes over the composed run function.
func buildPipeline(storage interfaces.StorageManager) (*pipeline.Controller, *browser.ChromeDPDriver, func(scheduler.RunFunc) interfaces.SchedulerService, error) {
	driver := browser.NewChromeDPDriver(&config.Browser, logger)

	embedder := vector.NewOfflineEmbedder(256, logger)
	vectors := vector.NewAdapter(storage.DocumentStorage(), embedder, logger)

	var structured interfaces.StructuredExtractor
	if config.Claude.APIKey != "" {
		var err error
		structured, err = processor.NewClaudeExtractor(&config.Claude, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("claude extractor: %w", err)
		}
	} else {
		logger.Warn().Msg("No Anthropic API key configured, structured extraction uses the fallback splitter")
	}

	site, err := config.Site(*siteName)
	if err != nil {
		return nil, nil, nil, err
	}

	engine := decision.NewEngine(storage.MatchStorage(), storage.SubmissionStorage(), config, logger)

	controller := pipeline.NewController(pipeline.Deps{
		Storage:   storage,
		Extractor: extractor.NewExtractorService(driver, storage.JobStorage(), config, logger),
		Processor: processor.NewProcessorService(storage.JobStorage(), vectors, structured, config, logger),
		Matcher:   matcher.NewMatcherService(storage.JobStorage(), storage.MatchStorage(), vectors, engine, config, logger),
		Engine:    engine,
		Submitter: submitter.NewSubmitterService(driver, storage, site, config, logger),
		Config:    config,
		Logger:    logger,
	})

	schedFactory := func(run scheduler.RunFunc) interfaces.SchedulerService {
		return scheduler.NewSchedulerService(config, run, logger)
	}
	return controller, driver, schedFactory, nil
}

func splitKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func printReport(report *models.ExecutionReport) {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode execution report")
		return
	}
	fmt.Println(string(encoded))
}
