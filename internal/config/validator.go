package config

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
)

// ClockLayout is the layout of report.schedule_at.
const ClockLayout = "15:04"

// ValidationError represents a single validation error with user-friendly message.
type ValidationError struct {
	Field   string      // Field path (e.g., "mail.smtp.host")
	Tag     string      // Validation tag that failed (e.g., "required", "email")
	Value   interface{} // Actual value that failed validation
	Message string      // User-friendly error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// validate is the package-level validator instance.
var validate *validator.Validate

// init initializes the validator with custom validations.
func init() {
	validate = validator.New()

	// Report field paths the way they are written in the YAML file
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("timezone", validateTimezone)
	validate.RegisterValidation("clock", validateClock)
	validate.RegisterValidation("cellrange", validateCellRange)
}

// Validate validates the configuration and returns user-friendly error messages.
func Validate(cfg *Config) error {
	var validationErrors ValidationErrors

	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, &ValidationError{
					Field:   formatFieldName(fe.Namespace()),
					Tag:     fe.Tag(),
					Value:   fe.Value(),
					Message: translateError(fe),
				})
			}
		}
	}

	// Run custom business logic validations
	validationErrors = append(validationErrors, validateRecalc(cfg)...)
	validationErrors = append(validationErrors, validateCapture(cfg)...)
	validationErrors = append(validationErrors, validateTransport(cfg)...)
	validationErrors = append(validationErrors, validateTemplates(cfg)...)

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// validateTimezone is a custom validator for timezone strings.
func validateTimezone(fl validator.FieldLevel) bool {
	tz := fl.Field().String()
	if tz == "" {
		return true // Empty is allowed, will use default
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// validateClock accepts a wall clock time such as "08:00".
func validateClock(fl validator.FieldLevel) bool {
	_, err := time.Parse(ClockLayout, fl.Field().String())
	return err == nil
}

// validateCellRange accepts an A1-style range such as "B3:AI63".
func validateCellRange(fl validator.FieldLevel) bool {
	parts := strings.Split(fl.Field().String(), ":")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if _, _, err := excelize.CellNameToCoordinates(p); err != nil {
			return false
		}
	}
	return true
}

// validateRecalc checks the settings the refresh cycle depends on.
func validateRecalc(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	if !cfg.Recalc.Enabled {
		return errors
	}

	if cfg.Recalc.Macro == "" {
		errors = append(errors, &ValidationError{
			Field:   "recalc.macro",
			Tag:     "required_when_enabled",
			Value:   "",
			Message: "macro is required when recalculation is enabled",
		})
	}

	if cfg.Recalc.SettleDuration <= 0 {
		errors = append(errors, &ValidationError{
			Field:   "recalc.settle_duration",
			Tag:     "gt",
			Value:   cfg.Recalc.SettleDuration,
			Message: "settle duration must be greater than zero",
		})
	}

	if cfg.Recalc.PollInterval < 0 || (cfg.Recalc.PollInterval > 0 && cfg.Recalc.PollInterval >= cfg.Recalc.SettleDuration) {
		errors = append(errors, &ValidationError{
			Field:   "recalc.poll_interval",
			Tag:     "poll_order",
			Value:   fmt.Sprintf("poll_interval=%s, settle_duration=%s", cfg.Recalc.PollInterval, cfg.Recalc.SettleDuration),
			Message: fmt.Sprintf("poll interval (%s) must be zero or shorter than the settle duration (%s)", cfg.Recalc.PollInterval, cfg.Recalc.SettleDuration),
		})
	}

	if cfg.Engine.Executable == "" {
		errors = append(errors, engineRequired("recalculation"))
	}

	return errors
}

// validateCapture checks the chart capture settings.
func validateCapture(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	if !cfg.Capture.Enabled {
		return errors
	}

	required := []requiredField{
		{"capture.sheet", cfg.Capture.Sheet},
		{"capture.range", cfg.Capture.Range},
		{"capture.output_dir", cfg.Capture.OutputDir},
		{"capture.filename_template", cfg.Capture.FilenameTemplate},
	}
	for _, r := range required {
		if r.value == "" {
			errors = append(errors, &ValidationError{
				Field:   r.field,
				Tag:     "required_when_enabled",
				Value:   "",
				Message: "this field is required when chart capture is enabled",
			})
		}
	}

	// Recalculation already reports a missing executable
	if cfg.Engine.Executable == "" && !cfg.Recalc.Enabled {
		errors = append(errors, engineRequired("chart capture"))
	}

	return errors
}

type requiredField struct {
	field string
	value string
}

func engineRequired(feature string) *ValidationError {
	return &ValidationError{
		Field:   "engine.executable",
		Tag:     "required_when_enabled",
		Value:   "",
		Message: fmt.Sprintf("engine executable is required when %s is enabled", feature),
	}
}

// validateTransport checks the settings of the selected mail transport.
func validateTransport(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	var required []requiredField
	switch cfg.Mail.Transport {
	case "smtp":
		required = append(required,
			requiredField{"mail.smtp.host", cfg.Mail.SMTP.Host},
			requiredField{"mail.smtp.from", cfg.Mail.SMTP.From},
		)
		if cfg.Mail.SMTP.Port == 0 {
			errors = append(errors, &ValidationError{
				Field:   "mail.smtp.port",
				Tag:     "required_for_transport",
				Value:   0,
				Message: "port is required for the smtp transport",
			})
		}
	case "graph":
		required = append(required,
			requiredField{"mail.graph.tenant_id", cfg.Mail.Graph.TenantID},
			requiredField{"mail.graph.client_id", cfg.Mail.Graph.ClientID},
			requiredField{"mail.graph.client_secret", cfg.Mail.Graph.ClientSecret},
			requiredField{"mail.graph.sender", cfg.Mail.Graph.Sender},
		)
	}

	for _, r := range required {
		if r.value == "" {
			errors = append(errors, &ValidationError{
				Field:   r.field,
				Tag:     "required_for_transport",
				Value:   "",
				Message: fmt.Sprintf("this field is required for the %s transport", cfg.Mail.Transport),
			})
		}
	}

	return errors
}

// validateTemplates parses the subject and filename templates.
func validateTemplates(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	templates := []struct {
		field string
		value string
	}{
		{"mail.subject_template", cfg.Mail.SubjectTemplate},
		{"capture.filename_template", cfg.Capture.FilenameTemplate},
	}
	for _, tt := range templates {
		if tt.value == "" {
			continue
		}
		if _, err := template.New(tt.field).Parse(tt.value); err != nil {
			errors = append(errors, &ValidationError{
				Field:   tt.field,
				Tag:     "template",
				Value:   tt.value,
				Message: fmt.Sprintf("invalid template: %v", err),
			})
		}
	}

	return errors
}

// formatFieldName converts the validator field namespace to a user-friendly format.
// Example: "Config.mail.smtp.host" -> "mail.smtp.host"
func formatFieldName(namespace string) string {
	// Remove the root struct name (e.g., "Config.")
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // Remove "Config"
	}

	// Convert to lowercase and join
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly message.
func translateError(fe validator.FieldError) string {
	field := formatFieldName(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("invalid URL format: %v", fe.Value())
	case "email":
		return fmt.Sprintf("invalid email address: %v", fe.Value())
	case "min":
		return fmt.Sprintf("at least %s entries are required", fe.Param())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	case "timezone":
		return fmt.Sprintf("invalid timezone: %v", fe.Value())
	case "clock":
		return fmt.Sprintf("invalid time of day %v, expected HH:MM", fe.Value())
	case "cellrange":
		return fmt.Sprintf("invalid cell range %v, expected e.g. B3:AI63", fe.Value())
	default:
		return fmt.Sprintf("validation failed on '%s' tag for field '%s'", fe.Tag(), field)
	}
}
