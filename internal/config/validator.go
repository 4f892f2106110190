package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single configuration validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation failures
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d configuration error(s):\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex matches valid branch prefix names: must start with a
// letter, followed by letters, digits, underscores, or hyphens.
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// Validate checks the entire configuration and returns all validation errors
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.Agent.validate()...)
	errs = append(errs, c.Branch.validate()...)
	errs = append(errs, c.Workflow.validate()...)
	errs = append(errs, c.Logging.validate()...)

	return errs
}

func (a *AgentConfig) validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(a.Binary) == "" {
		errs = append(errs, ValidationError{
			Field:   "agent.binary",
			Value:   a.Binary,
			Message: "must not be empty",
		})
	}

	if a.PermissionMode != "" && !slices.Contains(ValidPermissionModes(), a.PermissionMode) {
		errs = append(errs, ValidationError{
			Field:   "agent.permission_mode",
			Value:   a.PermissionMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPermissionModes(), ", ")),
		})
	}

	if a.MaxTurns < 0 {
		errs = append(errs, ValidationError{
			Field:   "agent.max_turns",
			Value:   a.MaxTurns,
			Message: "must be >= 0",
		})
	}

	return errs
}

func (b *BranchConfig) validate() ValidationErrors {
	var errs ValidationErrors

	if b.Prefix == "" {
		errs = append(errs, ValidationError{
			Field:   "branch.prefix",
			Value:   b.Prefix,
			Message: "must not be empty",
		})
	} else if !branchPrefixRegex.MatchString(b.Prefix) {
		errs = append(errs, ValidationError{
			Field:   "branch.prefix",
			Value:   b.Prefix,
			Message: "must start with a letter and contain only letters, digits, underscores, and hyphens",
		})
	}

	return errs
}

func (w *WorkflowConfig) validate() ValidationErrors {
	var errs ValidationErrors

	if w.MaxReviews < 1 {
		errs = append(errs, ValidationError{
			Field:   "workflow.max_reviews",
			Value:   w.MaxReviews,
			Message: "must be at least 1",
		})
	}
	if w.MaxReviews > 25 {
		errs = append(errs, ValidationError{
			Field:   "workflow.max_reviews",
			Value:   w.MaxReviews,
			Message: "must be at most 25",
		})
	}

	return errs
}

func (l *LoggingConfig) validate() ValidationErrors {
	var errs ValidationErrors

	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !slices.Contains(validLevels, strings.ToUpper(l.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   l.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		})
	}

	return errs
}
