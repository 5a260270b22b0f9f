package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"production-report/internal/config"
	"production-report/internal/engine"
	"production-report/internal/service"
)

// pipelineFlags are the phase switches shared by run and schedule.
type pipelineFlags struct {
	dryRun      bool
	skipRecalc  bool
	skipCapture bool
}

// loadConfig loads the configuration and builds the logger. It exits on failure.
func loadConfig() (*config.Config, zerolog.Logger) {
	configPath := GetConfigFile()
	fmt.Printf("📋 載入設定檔: %s\n", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		// Use temporary console logger for config loading errors
		tmpLogger := setupLogger("error", "console", time.Local)
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fmt.Fprintf(os.Stderr, "❌ 載入設定失敗: %v\n", err)
		os.Exit(exitFatal)
	}

	// Command line --log-level overrides config file setting
	level := cfg.Logging.Level
	if GetLogLevel() != "info" { // If explicitly set via command line
		level = GetLogLevel()
	}
	logger := setupLogger(level, cfg.Logging.Format, cfg.Location())
	logger.Debug().
		Str("config_path", configPath).
		Str("log_level", level).
		Str("log_format", cfg.Logging.Format).
		Msg("configuration loaded")

	return cfg, logger
}

// buildReporter wires the engine, transport and services for one pipeline.
func buildReporter(cfg *config.Config, logger zerolog.Logger, flags pipelineFlags) (*service.Reporter, error) {
	launcher := &engine.ScriptLauncher{
		Executable: cfg.Engine.Executable,
		Args:       cfg.Engine.Args,
		Timeout:    cfg.Engine.Timeout,
		Visible:    cfg.Engine.Visible,
		Logger:     logger,
	}

	var orchestratorOpts []service.OrchestratorOption
	if flags.skipRecalc {
		orchestratorOpts = append(orchestratorOpts, service.WithSkipRecalc())
	}
	if flags.skipCapture {
		orchestratorOpts = append(orchestratorOpts, service.WithSkipCapture())
	}
	orchestrator, err := service.NewOrchestrator(cfg, launcher, logger, orchestratorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	var reporterOpts []service.ReporterOption
	var deliverer *service.Deliverer
	if flags.dryRun {
		reporterOpts = append(reporterOpts, service.WithDryRun())
	} else {
		transport, err := service.NewTransport(cfg, logger)
		if err != nil {
			return nil, err
		}
		deliverer, err = service.NewDeliverer(cfg, transport, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create deliverer: %w", err)
		}
	}

	return service.NewReporter(cfg, orchestrator, deliverer, logger, reporterOpts...)
}

// setupLogger creates a zerolog logger with the specified level and format.
// Timestamps are written in tz.
func setupLogger(level string, format string, tz *time.Location) zerolog.Logger {
	// Set log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if tz == nil {
		tz = time.Local
	}

	// Set timezone for all timestamps
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(tz)
	}

	// Select output format based on configuration
	var output io.Writer
	if format == "json" {
		// JSON format - structured logging for log aggregation systems
		output = os.Stderr
	} else {
		// Console format - human-readable output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// printBanner prints the application banner.
func printBanner() {
	fmt.Printf("🏭 生產狀態日報 %s\n", Version)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// printPlan prints the phases the pipeline will run.
func printPlan(cfg *config.Config, flags pipelineFlags) {
	if cfg.Recalc.Enabled && !flags.skipRecalc {
		fmt.Printf("🔄 重新計算活頁簿: %s (巨集 %s，最長等待 %s)\n",
			cfg.Workbook.Path, cfg.Recalc.Macro, cfg.Recalc.SettleDuration)
	} else {
		fmt.Println("⏭️  略過重新計算")
	}
	if cfg.Capture.Enabled && !flags.skipCapture {
		fmt.Printf("🖼️  擷取圖表: %s!%s\n", cfg.Capture.Sheet, cfg.Capture.Range)
	} else {
		fmt.Println("⏭️  略過圖表擷取")
	}
	if flags.dryRun {
		fmt.Printf("📝 試跑模式，預覽輸出至: %s\n", cfg.Report.OutputDir)
	} else {
		fmt.Printf("📧 寄送方式: %s，收件人 %d 位\n", cfg.Mail.Transport, len(cfg.Mail.Recipients))
	}
	fmt.Println()
}

// printResult prints the run summary.
func printResult(result *service.RunResult) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   報表日期: %s\n", result.Date)
	fmt.Printf("   停機總數量: %d\n", result.Stopped)
	fmt.Printf("   大噸數停機: %d\n", result.LargeTonnage)
	if result.ImagePath != "" {
		fmt.Printf("   圖表: %s\n", result.ImagePath)
	}
	for _, p := range result.Previews {
		fmt.Printf("   ✅ %s\n", p)
	}
	if result.Delivered {
		fmt.Println("   ✅ 郵件已寄出")
	}
	fmt.Printf("\n⏱️  總耗時 %.1fs\n", result.Duration.Seconds())
}
