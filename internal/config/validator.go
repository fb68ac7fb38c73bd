package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // config key, e.g. "run.workers"
	Value   any
	Message string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidReportFormats returns the list of valid report formats
func ValidReportFormats() []string {
	return []string{"text", "yaml"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{"log.level", c.Log.Level, "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}
	if c.DB.Path == "" {
		errs = append(errs, ValidationError{"db.path", c.DB.Path, "must not be empty"})
	}
	if c.Run.Workers < 1 {
		errs = append(errs, ValidationError{"run.workers", c.Run.Workers, "must be at least 1"})
	}

	errs = append(errs, c.validateReport()...)
	errs = append(errs, c.validateArchive()...)
	return errs
}

func (c *Config) validateReport() []ValidationError {
	var errs []ValidationError
	r := c.Report
	if r.Population <= 0 {
		errs = append(errs, ValidationError{"report.population", r.Population, "must be positive"})
	}
	if r.BinWidth <= 0 {
		errs = append(errs, ValidationError{"report.bin_width", r.BinWidth, "must be positive"})
	}
	if r.MaxPercent < r.BinWidth {
		errs = append(errs, ValidationError{"report.max_percent", r.MaxPercent, "must be at least report.bin_width"})
	}
	if !slices.Contains(ValidReportFormats(), r.Format) {
		errs = append(errs, ValidationError{"report.format", r.Format, "must be one of " + strings.Join(ValidReportFormats(), ", ")})
	}
	return errs
}

func (c *Config) validateArchive() []ValidationError {
	a := c.Archive
	if !a.Enabled() {
		return nil
	}
	var errs []ValidationError
	required := []struct {
		field string
		value string
	}{
		{"archive.region", a.Region},
		{"archive.access_key", a.AccessKey},
		{"archive.secret_key", a.SecretKey},
		{"archive.passphrase", a.Passphrase},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, ValidationError{r.field, r.value, "required when archive.bucket is set"})
		}
	}
	return errs
}

// RequireData checks that the extract is set, along with the codebook and
// occupation files when the command reads them.
func (c *Config) RequireData(codebook, occupations bool) error {
	var errs ValidationErrors
	files := []struct {
		field  string
		value  string
		needed bool
	}{
		{"data.extract", c.Data.Extract, true},
		{"data.codebook", c.Data.Codebook, codebook},
		{"data.occupations", c.Data.Occupations, occupations},
	}
	for _, f := range files {
		if f.needed && f.value == "" {
			errs = append(errs, ValidationError{f.field, f.value, "must be set"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
