package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "REPORT"

// Load reads configuration from the specified YAML file and environment variables.
// Environment variables take precedence over file values.
// Environment variable format: REPORT_<SECTION>_<KEY> (e.g., REPORT_MAIL_SMTP_PASSWORD)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Check if config file exists
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	// Set config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
// Keys without a useful default are registered empty so that
// environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Workbook defaults
	v.SetDefault("workbook.path", "")
	v.SetDefault("workbook.dashboard_sheet", "Dashboard")
	v.SetDefault("workbook.raw_data_sheet", "raw_data")
	v.SetDefault("workbook.raw_data_skip_rows", 9)

	// Recalculation defaults
	v.SetDefault("recalc.enabled", true)
	v.SetDefault("recalc.macro", "refresh_dashboard")
	v.SetDefault("recalc.settle_duration", 60*time.Second)
	v.SetDefault("recalc.poll_interval", time.Duration(0))

	// Chart capture defaults
	v.SetDefault("capture.enabled", true)
	v.SetDefault("capture.workbook_path", "")
	v.SetDefault("capture.sheet", "Chart")
	v.SetDefault("capture.range", "B3:AI63")
	v.SetDefault("capture.output_dir", "./charts")
	v.SetDefault("capture.filename_template", "daily_mail_image_{{.Date}}.png")

	// Engine defaults
	v.SetDefault("engine.executable", "")
	v.SetDefault("engine.timeout", 2*time.Minute)
	v.SetDefault("engine.visible", true)

	// Mail defaults
	v.SetDefault("mail.transport", "smtp")
	v.SetDefault("mail.subject_template", "Production Status - 每日開機狀態 {{.Date}}")
	v.SetDefault("mail.inline_image", true)
	v.SetDefault("mail.attach_excel", false)
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 25)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.from", "")
	v.SetDefault("mail.smtp.timeout", 30*time.Second)
	v.SetDefault("mail.smtp.tls_policy", "opportunistic")
	v.SetDefault("mail.graph.tenant_id", "")
	v.SetDefault("mail.graph.client_id", "")
	v.SetDefault("mail.graph.client_secret", "")
	v.SetDefault("mail.graph.sender", "")
	v.SetDefault("mail.graph.login_endpoint", "https://login.microsoftonline.com")
	v.SetDefault("mail.graph.endpoint", "https://graph.microsoft.com")
	v.SetDefault("mail.graph.timeout", 30*time.Second)

	// Report defaults
	v.SetDefault("report.timezone", "Asia/Taipei")
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.formats", []string{"html"})
	v.SetDefault("report.schedule_at", "08:00")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// HTTP retry defaults
	v.SetDefault("http.retry.max_retries", 3)
	v.SetDefault("http.retry.base_delay", 1*time.Second)
}
