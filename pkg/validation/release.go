// Package validation provides release configuration validation
package validation

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wojtekgalaj/projen/pkg/types"
)

// ReleaseValidator validates release configurations
type ReleaseValidator struct{}

// NewReleaseValidator creates a new release validator
func NewReleaseValidator() *ReleaseValidator {
	return &ReleaseValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Level, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Validate checks a release configuration without building anything
func (v *ReleaseValidator) Validate(cfg *types.ReleaseConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateBasicFields(cfg, result)
	v.validateTrigger(cfg, result)
	v.validateBranches(cfg, result)
	v.validatePublishers(cfg, result)

	return result
}

func (v *ReleaseValidator) validateBasicFields(cfg *types.ReleaseConfig, result *ValidationResult) {
	if cfg.Task == "" {
		result.AddError("task", "build task is required", ValidationLevelError)
	}
	if strings.Contains(cfg.Task, " ") {
		result.AddError("task", "task name cannot contain spaces", ValidationLevelError)
	}
	if cfg.VersionFile == "" {
		result.AddError("versionFile", "no version file configured, using the default", ValidationLevelWarning)
	}

	if cfg.MajorVersion != nil && cfg.MinMajorVersion != nil {
		result.AddError("majorVersion", "cannot be combined with minMajorVersion", ValidationLevelError)
	}
	if cfg.MajorVersion != nil && *cfg.MajorVersion < 0 {
		result.AddError("majorVersion", "cannot be negative", ValidationLevelError)
	}
	if cfg.MinMajorVersion != nil && *cfg.MinMajorVersion < 0 {
		result.AddError("minMajorVersion", "cannot be negative", ValidationLevelError)
	}

	if cfg.Prerelease != "" && cfg.MajorVersion == nil && cfg.MinMajorVersion == nil && len(cfg.ReleaseBranches) > 0 {
		result.AddError("prerelease", "prerelease qualifier on the default branch without a pinned major version", ValidationLevelWarning)
	}
}

func (v *ReleaseValidator) validateTrigger(cfg *types.ReleaseConfig, result *ValidationResult) {
	switch cfg.ReleaseTrigger {
	case "", types.TriggerContinuous, types.TriggerScheduled, types.TriggerManual:
	default:
		result.AddError("releaseTrigger", fmt.Sprintf("invalid trigger: %s", cfg.ReleaseTrigger), ValidationLevelError)
	}

	if cfg.ReleaseTrigger == types.TriggerScheduled && cfg.ReleaseSchedule == "" {
		result.AddError("releaseSchedule", "required for a scheduled release trigger", ValidationLevelError)
	}
	if cfg.ReleaseSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReleaseSchedule); err != nil {
			result.AddError("releaseSchedule", fmt.Sprintf("invalid cron expression: %v", err), ValidationLevelError)
		}
	}
	if cfg.ReleaseTrigger == types.TriggerManual && cfg.ReleaseSchedule != "" {
		result.AddError("releaseSchedule", "ignored with a manual release trigger", ValidationLevelWarning)
	}
}

func (v *ReleaseValidator) validateBranches(cfg *types.ReleaseConfig, result *ValidationResult) {
	branches, err := types.ParseBranches(cfg.ReleaseBranches)
	if err != nil {
		result.AddError("releaseBranches", err.Error(), ValidationLevelError)
		return
	}
	if len(branches) == 0 {
		return
	}

	if cfg.MajorVersion == nil && cfg.MinMajorVersion == nil {
		result.AddError("majorVersion",
			`you must specify "majorVersion" for the default branch when adding multiple release branches`,
			ValidationLevelError)
	}

	for _, nb := range branches {
		if nb.Name == "" {
			result.AddError("releaseBranches", "branch name must not be empty", ValidationLevelError)
			continue
		}
		if nb.Options.MajorVersion != nil && nb.Options.MinMajorVersion != nil {
			result.AddError("releaseBranches."+nb.Name,
				"majorVersion cannot be combined with minMajorVersion", ValidationLevelError)
		}
		if nb.Options.MajorVersion != nil && *nb.Options.MajorVersion < 0 {
			result.AddError("releaseBranches."+nb.Name, "majorVersion cannot be negative", ValidationLevelError)
		}
		if nb.Options.MajorVersion == nil && nb.Options.MinMajorVersion == nil {
			result.AddError("releaseBranches."+nb.Name,
				"no major version pinned; tags may collide with the default branch", ValidationLevelWarning)
		}
	}
}

func (v *ReleaseValidator) validatePublishers(cfg *types.ReleaseConfig, result *ValidationResult) {
	if cfg.Publish == nil {
		return
	}
	if cfg.Publish.Npm != nil && cfg.Publish.Npm.CodeArtifactOptions != nil && cfg.Publish.Npm.Registry == "" {
		result.AddError("publish.npm.codeArtifactOptions",
			"set without a CodeArtifact registry", ValidationLevelWarning)
	}
}
