// Package types provides core types and configurations for the release generator
package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TriggerType represents when a release workflow fires
type TriggerType string

const (
	TriggerContinuous TriggerType = "continuous"
	TriggerScheduled  TriggerType = "scheduled"
	TriggerManual     TriggerType = "manual"
)

// Permission represents an access level for a workflow permission scope
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Permission scopes used by generated jobs
const (
	ScopeContents = "contents"
	ScopeIssues   = "issues"
	ScopePackages = "packages"
)

// PublishTarget identifies a package registry a publisher job targets
type PublishTarget string

const (
	TargetNpm   PublishTarget = "npm"
	TargetMaven PublishTarget = "maven"
	TargetNuget PublishTarget = "nuget"
	TargetPypi  PublishTarget = "pypi"
	TargetGo    PublishTarget = "go"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Step represents a single step of a workflow job
type Step struct {
	Name string            `json:"name,omitempty" yaml:"name,omitempty"`
	Uses string            `json:"uses,omitempty" yaml:"uses,omitempty"`
	Run  string            `json:"run,omitempty" yaml:"run,omitempty"`
	With map[string]string `json:"with,omitempty" yaml:"with,omitempty"`
	Env  map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	If   string            `json:"if,omitempty" yaml:"if,omitempty"`
}

// Job represents one workflow job: where it runs, what it may touch,
// and the ordered steps it executes
type Job struct {
	Name        string                `json:"name,omitempty" yaml:"name,omitempty"`
	RunsOn      string                `json:"runsOn" yaml:"runsOn"`
	Permissions map[string]Permission `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Needs       []string              `json:"needs,omitempty" yaml:"needs,omitempty"`
	If          string                `json:"if,omitempty" yaml:"if,omitempty"`
	Env         map[string]string     `json:"env,omitempty" yaml:"env,omitempty"`
	Steps       []Step                `json:"steps" yaml:"steps"`
}

// BranchOptions represents per-branch release configuration
type BranchOptions struct {
	MajorVersion    *int   `json:"majorVersion,omitempty" yaml:"majorVersion,omitempty"`
	MinMajorVersion *int   `json:"minMajorVersion,omitempty" yaml:"minMajorVersion,omitempty"`
	Prerelease      string `json:"prerelease,omitempty" yaml:"prerelease,omitempty"`
	TagPrefix       string `json:"tagPrefix,omitempty" yaml:"tagPrefix,omitempty"`
	WorkflowName    string `json:"workflowName,omitempty" yaml:"workflowName,omitempty"`
}

// NpmPublishConfig configures an npm publisher
type NpmPublishConfig struct {
	Registry            string               `json:"registry,omitempty" yaml:"registry,omitempty"`
	TokenSecret         string               `json:"tokenSecret,omitempty" yaml:"tokenSecret,omitempty"`
	CodeArtifactOptions *CodeArtifactOptions `json:"codeArtifactOptions,omitempty" yaml:"codeArtifactOptions,omitempty"`
}

// MavenPublishConfig configures a Maven publisher
type MavenPublishConfig struct {
	Repository     string `json:"repository,omitempty" yaml:"repository,omitempty"`
	UsernameSecret string `json:"usernameSecret,omitempty" yaml:"usernameSecret,omitempty"`
	PasswordSecret string `json:"passwordSecret,omitempty" yaml:"passwordSecret,omitempty"`
}

// NugetPublishConfig configures a NuGet publisher
type NugetPublishConfig struct {
	Registry     string `json:"registry,omitempty" yaml:"registry,omitempty"`
	APIKeySecret string `json:"apiKeySecret,omitempty" yaml:"apiKeySecret,omitempty"`
}

// PypiPublishConfig configures a PyPI publisher
type PypiPublishConfig struct {
	Registry            string               `json:"registry,omitempty" yaml:"registry,omitempty"`
	UsernameSecret      string               `json:"usernameSecret,omitempty" yaml:"usernameSecret,omitempty"`
	PasswordSecret      string               `json:"passwordSecret,omitempty" yaml:"passwordSecret,omitempty"`
	CodeArtifactOptions *CodeArtifactOptions `json:"codeArtifactOptions,omitempty" yaml:"codeArtifactOptions,omitempty"`
}

// GoPublishConfig configures a Go module publisher
type GoPublishConfig struct {
	GithubTokenSecret string `json:"githubTokenSecret,omitempty" yaml:"githubTokenSecret,omitempty"`
}

// CodeArtifactOptions overrides the secret names used for AWS CodeArtifact access
type CodeArtifactOptions struct {
	AccessKeyIDSecret     string `json:"accessKeyIdSecret,omitempty" yaml:"accessKeyIdSecret,omitempty"`
	SecretAccessKeySecret string `json:"secretAccessKeySecret,omitempty" yaml:"secretAccessKeySecret,omitempty"`
}

// PublishConfig groups the publishers a configuration enables
type PublishConfig struct {
	Npm   *NpmPublishConfig   `json:"npm,omitempty" yaml:"npm,omitempty"`
	Maven *MavenPublishConfig `json:"maven,omitempty" yaml:"maven,omitempty"`
	Nuget *NugetPublishConfig `json:"nuget,omitempty" yaml:"nuget,omitempty"`
	Pypi  *PypiPublishConfig  `json:"pypi,omitempty" yaml:"pypi,omitempty"`
	Go    *GoPublishConfig    `json:"go,omitempty" yaml:"go,omitempty"`
}

// ReleaseConfig represents the main configuration consumed by the generator.
// ReleaseBranches stays raw so the legacy array form can be rejected with a
// precise error instead of a generic decode failure.
type ReleaseConfig struct {
	Task                     string          `json:"task" yaml:"task"`
	VersionFile              string          `json:"versionFile" yaml:"versionFile"`
	Branch                   string          `json:"branch" yaml:"branch"`
	MajorVersion             *int            `json:"majorVersion,omitempty" yaml:"majorVersion,omitempty"`
	MinMajorVersion          *int            `json:"minMajorVersion,omitempty" yaml:"minMajorVersion,omitempty"`
	Prerelease               string          `json:"prerelease,omitempty" yaml:"prerelease,omitempty"`
	ReleaseTagPrefix         string          `json:"releaseTagPrefix,omitempty" yaml:"releaseTagPrefix,omitempty"`
	ReleaseWorkflowName      string          `json:"releaseWorkflowName,omitempty" yaml:"releaseWorkflowName,omitempty"`
	ReleaseEveryCommit       *bool           `json:"releaseEveryCommit,omitempty" yaml:"releaseEveryCommit,omitempty"`
	ReleaseSchedule          string          `json:"releaseSchedule,omitempty" yaml:"releaseSchedule,omitempty"`
	ReleaseTrigger           TriggerType     `json:"releaseTrigger,omitempty" yaml:"releaseTrigger,omitempty"`
	ReleaseFailureIssue      bool            `json:"releaseFailureIssue,omitempty" yaml:"releaseFailureIssue,omitempty"`
	ReleaseFailureIssueLabel string          `json:"releaseFailureIssueLabel,omitempty" yaml:"releaseFailureIssueLabel,omitempty"`
	ReleaseBranches          json.RawMessage `json:"releaseBranches,omitempty" yaml:"releaseBranches,omitempty"`
	Publish                  *PublishConfig  `json:"publish,omitempty" yaml:"publish,omitempty"`
}

// NamedBranch pairs a branch name with its options
type NamedBranch struct {
	Name    string
	Options BranchOptions
}

// ParseBranches decodes the releaseBranches section. The legacy array form
// is rejected outright; the mapping form decodes into a name-sorted slice so
// repeated generation is stable regardless of document key order.
func ParseBranches(data []byte) ([]NamedBranch, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse releaseBranches: %w", err)
	}

	switch probe.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return nil, fmt.Errorf(`"releaseBranches" is no longer an array. See type annotations`)
	case map[string]interface{}:
		// mapping form, decode below
	default:
		return nil, fmt.Errorf("releaseBranches must be a mapping of branch name to options")
	}

	var byName map[string]BranchOptions
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("failed to parse releaseBranches: %w", err)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	branches := make([]NamedBranch, 0, len(names))
	for _, name := range names {
		branches = append(branches, NamedBranch{Name: name, Options: byName[name]})
	}
	return branches, nil
}

// IntPtr returns a pointer to v, for optional numeric config fields
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v, for optional boolean config fields
func BoolPtr(v bool) *bool { return &v }
