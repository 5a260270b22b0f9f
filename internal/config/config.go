// Package config provides configuration management for the production report.
package config

import "time"

// Config is the root configuration structure for the production report.
type Config struct {
	Workbook WorkbookConfig `mapstructure:"workbook" yaml:"workbook" validate:"required"`
	Recalc   RecalcConfig   `mapstructure:"recalc" yaml:"recalc"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
}

// WorkbookConfig locates the workbook and the sheets the report reads.
type WorkbookConfig struct {
	Path            string `mapstructure:"path" yaml:"path" validate:"required"`
	DashboardSheet  string `mapstructure:"dashboard_sheet" yaml:"dashboard_sheet" validate:"required"`
	RawDataSheet    string `mapstructure:"raw_data_sheet" yaml:"raw_data_sheet" validate:"required"`
	RawDataSkipRows int    `mapstructure:"raw_data_skip_rows" yaml:"raw_data_skip_rows" validate:"gte=0"`
}

// RecalcConfig controls the refresh macro and the wait that follows it.
type RecalcConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Macro   string `mapstructure:"macro" yaml:"macro"`
	// SettleDuration is the upper bound of the wait after the macro returns.
	// It is a heuristic: the engine may still be calculating when it expires.
	SettleDuration time.Duration `mapstructure:"settle_duration" yaml:"settle_duration"`
	// PollInterval > 0 ends the wait early once the engine reports completion.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// CaptureConfig describes the chart region copied into the mail body.
type CaptureConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	WorkbookPath     string `mapstructure:"workbook_path" yaml:"workbook_path"` // defaults to workbook.path
	Sheet            string `mapstructure:"sheet" yaml:"sheet"`
	Range            string `mapstructure:"range" yaml:"range" validate:"omitempty,cellrange"`
	OutputDir        string `mapstructure:"output_dir" yaml:"output_dir"`
	FilenameTemplate string `mapstructure:"filename_template" yaml:"filename_template"`
}

// EngineConfig configures the helper process that drives the spreadsheet application.
type EngineConfig struct {
	Executable string        `mapstructure:"executable" yaml:"executable"`
	Args       []string      `mapstructure:"args" yaml:"args"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Visible    bool          `mapstructure:"visible" yaml:"visible"`
}

// MailConfig configures message composition and the transport.
type MailConfig struct {
	Transport       string      `mapstructure:"transport" yaml:"transport" validate:"oneof=smtp graph"`
	Recipients      []string    `mapstructure:"recipients" yaml:"recipients" validate:"required,min=1,dive,email"`
	SubjectTemplate string      `mapstructure:"subject_template" yaml:"subject_template" validate:"required"`
	InlineImage     bool        `mapstructure:"inline_image" yaml:"inline_image"`
	AttachExcel     bool        `mapstructure:"attach_excel" yaml:"attach_excel"`
	SMTP            SMTPConfig  `mapstructure:"smtp" yaml:"smtp"`
	Graph           GraphConfig `mapstructure:"graph" yaml:"graph"`
}

// SMTPConfig contains configuration for an SMTP relay.
type SMTPConfig struct {
	Host      string        `mapstructure:"host" yaml:"host"`
	Port      int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Password  string        `mapstructure:"password" yaml:"password"`
	From      string        `mapstructure:"from" yaml:"from" validate:"omitempty,email"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TLSPolicy string        `mapstructure:"tls_policy" yaml:"tls_policy" validate:"omitempty,oneof=opportunistic mandatory none"`
}

// GraphConfig contains configuration for the Microsoft Graph sendMail API.
type GraphConfig struct {
	TenantID      string        `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID      string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret" yaml:"client_secret"`
	Sender        string        `mapstructure:"sender" yaml:"sender" validate:"omitempty,email"`
	LoginEndpoint string        `mapstructure:"login_endpoint" yaml:"login_endpoint" validate:"omitempty,url"`
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ReportConfig contains configurations for report generation.
type ReportConfig struct {
	Timezone     string   `mapstructure:"timezone" yaml:"timezone" validate:"timezone"`
	HTMLTemplate string   `mapstructure:"html_template" yaml:"html_template"`
	OutputDir    string   `mapstructure:"output_dir" yaml:"output_dir"`
	Formats      []string `mapstructure:"formats" yaml:"formats" validate:"dive,oneof=excel html"`
	ScheduleAt   string   `mapstructure:"schedule_at" yaml:"schedule_at" validate:"omitempty,clock"`
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

// HTTPConfig contains HTTP client configurations including retry settings.
type HTTPConfig struct {
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

// CaptureWorkbook returns the workbook the chart is captured from.
func (c *Config) CaptureWorkbook() string {
	if c.Capture.WorkbookPath != "" {
		return c.Capture.WorkbookPath
	}
	return c.Workbook.Path
}

// Location returns the report timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c.Report.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
