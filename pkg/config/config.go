// Package config handles configuration loading and translation into a
// configured Release instance
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wojtekgalaj/projen/pkg/logger"
	"github.com/wojtekgalaj/projen/pkg/release"
	"github.com/wojtekgalaj/projen/pkg/types"
)

// Default configuration values applied when fields are left unset
const (
	DefaultBranch      = "main"
	DefaultVersionFile = "dist/version.txt"
)

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.ReleaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.ReleaseConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return &cfg, nil
	}

	// Try YAML - roundtrip through JSON so json.RawMessage fields decode
	var yamlData map[string]interface{}
	parseErr := yaml.Unmarshal(data, &yamlData)
	if parseErr == nil {
		jsonData, err := json.Marshal(yamlData)
		if err != nil {
			parseErr = err
		} else if err := json.Unmarshal(jsonData, &cfg); err != nil {
			parseErr = err
		} else {
			return &cfg, nil
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", parseErr)
}

// Build translates a configuration into a fully registered Release. All
// configuration mistakes surface here, before anything is generated.
func (m *Manager) Build(cfg *types.ReleaseConfig, log logger.Logger) (*release.Release, error) {
	trigger, err := resolveTrigger(cfg)
	if err != nil {
		return nil, err
	}

	branch := cfg.Branch
	if branch == "" {
		branch = DefaultBranch
	}
	versionFile := cfg.VersionFile
	if versionFile == "" {
		versionFile = DefaultVersionFile
	}

	rel, err := release.New(release.Options{
		Task:              cfg.Task,
		VersionFile:       versionFile,
		Branch:            branch,
		MajorVersion:      cfg.MajorVersion,
		MinMajorVersion:   cfg.MinMajorVersion,
		Prerelease:        cfg.Prerelease,
		TagPrefix:         cfg.ReleaseTagPrefix,
		WorkflowName:      cfg.ReleaseWorkflowName,
		Trigger:           trigger,
		FailureIssue:      cfg.ReleaseFailureIssue,
		FailureIssueLabel: cfg.ReleaseFailureIssueLabel,
	}, log)
	if err != nil {
		return nil, err
	}

	branches, err := types.ParseBranches(cfg.ReleaseBranches)
	if err != nil {
		return nil, release.NewConfigurationError(err.Error())
	}
	for _, nb := range branches {
		if err := rel.AddBranch(nb.Name, nb.Options); err != nil {
			return nil, err
		}
	}

	if err := registerPublishers(rel, cfg.Publish); err != nil {
		return nil, err
	}

	return rel, nil
}

func resolveTrigger(cfg *types.ReleaseConfig) (release.Trigger, error) {
	trigger := cfg.ReleaseTrigger
	if trigger == "" {
		// A schedule implies a scheduled trigger; otherwise continuous
		if cfg.ReleaseSchedule != "" {
			trigger = types.TriggerScheduled
		} else {
			trigger = types.TriggerContinuous
		}
	}

	switch trigger {
	case types.TriggerContinuous:
		return release.ContinuousTrigger(), nil
	case types.TriggerScheduled:
		if cfg.ReleaseSchedule == "" {
			return release.Trigger{}, release.NewConfigurationError(
				`"releaseSchedule" is required for a scheduled release trigger`)
		}
		everyCommit := false
		if cfg.ReleaseEveryCommit != nil {
			everyCommit = *cfg.ReleaseEveryCommit
		}
		return release.ScheduledTrigger(cfg.ReleaseSchedule, everyCommit)
	case types.TriggerManual:
		return release.ManualTrigger(), nil
	default:
		return release.Trigger{}, release.NewConfigurationError(
			fmt.Sprintf("invalid release trigger: %s", trigger))
	}
}

func registerPublishers(rel *release.Release, publish *types.PublishConfig) error {
	if publish == nil {
		return nil
	}
	reg := rel.Publishers()

	if publish.Npm != nil {
		if err := reg.PublishToNpm(publish.Npm); err != nil {
			return err
		}
	}
	if publish.Maven != nil {
		if err := reg.PublishToMaven(publish.Maven); err != nil {
			return err
		}
	}
	if publish.Nuget != nil {
		if err := reg.PublishToNuget(publish.Nuget); err != nil {
			return err
		}
	}
	if publish.Pypi != nil {
		if err := reg.PublishToPypi(publish.Pypi); err != nil {
			return err
		}
	}
	if publish.Go != nil {
		if err := reg.PublishToGo(publish.Go); err != nil {
			return err
		}
	}
	return nil
}

// GetDefaultConfig returns a starter configuration
func (m *Manager) GetDefaultConfig() *types.ReleaseConfig {
	return &types.ReleaseConfig{
		Task:        "build",
		VersionFile: DefaultVersionFile,
		Branch:      DefaultBranch,
	}
}
