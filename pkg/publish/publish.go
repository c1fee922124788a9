// Package publish provides the publisher registry: per-target job producers
// that contribute one publish job to every synthesized release workflow
package publish

import (
	"fmt"

	"github.com/wojtekgalaj/projen/pkg/types"
)

// Default secret names referenced by publisher jobs. Values are never read
// by the generator; downstream CI resolves them.
const (
	DefaultNpmTokenSecret        = "NPM_TOKEN"
	DefaultGithubTokenSecret     = "GITHUB_TOKEN"
	DefaultMavenUsernameSecret   = "MAVEN_USERNAME"
	DefaultMavenPasswordSecret   = "MAVEN_PASSWORD"
	DefaultNugetAPIKeySecret     = "NUGET_API_KEY"
	DefaultPypiUsernameSecret    = "TWINE_USERNAME"
	DefaultPypiPasswordSecret    = "TWINE_PASSWORD"
	DefaultAccessKeyIDSecret     = "AWS_ACCESS_KEY_ID"
	DefaultSecretAccessKeySecret = "AWS_SECRET_ACCESS_KEY"
)

// producer yields the publish job for one target
type producer func() (types.Job, error)

type entry struct {
	target  types.PublishTarget
	produce producer
}

// Registry accumulates publisher registrations. Re-registering a target
// replaces its producer in place, keeping the original position so output
// ordering only depends on first registration.
type Registry struct {
	entries []entry
}

// NewRegistry creates an empty publisher registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Targets returns the registered targets in registration order
func (r *Registry) Targets() []types.PublishTarget {
	targets := make([]types.PublishTarget, 0, len(r.entries))
	for _, e := range r.entries {
		targets = append(targets, e.target)
	}
	return targets
}

// Jobs produces one keyed job per registered target, in registration order.
// Job keys follow the release_<target> convention.
func (r *Registry) Jobs() (map[string]types.Job, []string, error) {
	jobs := make(map[string]types.Job, len(r.entries))
	order := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		job, err := e.produce()
		if err != nil {
			return nil, nil, fmt.Errorf("publisher %s: %w", e.target, err)
		}
		key := JobKey(e.target)
		jobs[key] = job
		order = append(order, key)
	}
	return jobs, order, nil
}

// JobKey returns the workflow job key for a publish target
func JobKey(target types.PublishTarget) string {
	return "release_" + string(target)
}

func (r *Registry) register(target types.PublishTarget, produce producer) {
	for i, e := range r.entries {
		if e.target == target {
			// replace-last-wins, never a duplicate job key
			r.entries[i].produce = produce
			return
		}
	}
	r.entries = append(r.entries, entry{target: target, produce: produce})
}

// PublishToNpm registers an npm publisher
func (r *Registry) PublishToNpm(opts *types.NpmPublishConfig) error {
	if opts == nil {
		opts = &types.NpmPublishConfig{}
	}
	resolved, err := ResolveRegistry(opts.Registry)
	if err != nil {
		return fmt.Errorf("npm publisher: %w", err)
	}
	cfg := *opts
	r.register(types.TargetNpm, func() (types.Job, error) {
		return npmJob(&cfg, resolved)
	})
	return nil
}

// PublishToMaven registers a Maven publisher
func (r *Registry) PublishToMaven(opts *types.MavenPublishConfig) error {
	if opts == nil {
		opts = &types.MavenPublishConfig{}
	}
	resolved, err := ResolveRegistry(opts.Repository)
	if err != nil {
		return fmt.Errorf("maven publisher: %w", err)
	}
	cfg := *opts
	r.register(types.TargetMaven, func() (types.Job, error) {
		return mavenJob(&cfg, resolved)
	})
	return nil
}

// PublishToNuget registers a NuGet publisher
func (r *Registry) PublishToNuget(opts *types.NugetPublishConfig) error {
	if opts == nil {
		opts = &types.NugetPublishConfig{}
	}
	resolved, err := ResolveRegistry(opts.Registry)
	if err != nil {
		return fmt.Errorf("nuget publisher: %w", err)
	}
	cfg := *opts
	r.register(types.TargetNuget, func() (types.Job, error) {
		return nugetJob(&cfg, resolved)
	})
	return nil
}

// PublishToPypi registers a PyPI publisher
func (r *Registry) PublishToPypi(opts *types.PypiPublishConfig) error {
	if opts == nil {
		opts = &types.PypiPublishConfig{}
	}
	resolved, err := ResolveRegistry(opts.Registry)
	if err != nil {
		return fmt.Errorf("pypi publisher: %w", err)
	}
	cfg := *opts
	r.register(types.TargetPypi, func() (types.Job, error) {
		return pypiJob(&cfg, resolved)
	})
	return nil
}

// PublishToGo registers a Go module publisher. Go modules are published by
// pushing tags, so there is no registry to resolve.
func (r *Registry) PublishToGo(opts *types.GoPublishConfig) error {
	if opts == nil {
		opts = &types.GoPublishConfig{}
	}
	cfg := *opts
	r.register(types.TargetGo, func() (types.Job, error) {
		return goJob(&cfg)
	})
	return nil
}

// baseJob returns the common shape of a publisher job: it runs after the
// release job and needs read access to the built artifacts
func baseJob() types.Job {
	return types.Job{
		RunsOn: "ubuntu-latest",
		Needs:  []string{"release"},
		Permissions: map[string]types.Permission{
			types.ScopeContents: types.PermissionRead,
		},
	}
}

func downloadStep() types.Step {
	return types.Step{
		Name: "Download build artifacts",
		Uses: "actions/download-artifact@v4",
		With: map[string]string{"name": "build-artifact", "path": "dist"},
	}
}

func secretRef(name string) string {
	return fmt.Sprintf("${{ secrets.%s }}", name)
}

func npmJob(cfg *types.NpmPublishConfig, resolved *ResolvedRegistry) (types.Job, error) {
	job := baseJob()
	job.Name = "Publish to npm"

	env := map[string]string{}
	steps := []types.Step{downloadStep()}

	switch resolved.Kind {
	case RegistryGithubPackages:
		job.Permissions[types.ScopePackages] = types.PermissionWrite
		token := cfg.TokenSecret
		if token == "" {
			token = DefaultGithubTokenSecret
		}
		env["NPM_REGISTRY"] = resolved.Host
		env["NPM_TOKEN"] = secretRef(token)
	case RegistryCodeArtifact:
		keyID, secretKey := codeArtifactSecrets(cfg.CodeArtifactOptions)
		env["NPM_REGISTRY"] = resolved.Host
		env["CODEARTIFACT_DOMAIN"] = resolved.CodeArtifactDomain
		env["CODEARTIFACT_REPOSITORY"] = resolved.CodeArtifactRepository
		env["AWS_ACCESS_KEY_ID"] = secretRef(keyID)
		env["AWS_SECRET_ACCESS_KEY"] = secretRef(secretKey)
		steps = append(steps, types.Step{
			Name: "Login to CodeArtifact",
			Run: fmt.Sprintf(
				"aws codeartifact login --tool npm --domain %s --repository %s",
				resolved.CodeArtifactDomain, resolved.CodeArtifactRepository,
			),
		})
	default:
		token := cfg.TokenSecret
		if token == "" {
			token = DefaultNpmTokenSecret
		}
		registry := resolved.Host
		if registry == "" {
			registry = "registry.npmjs.org"
		}
		env["NPM_REGISTRY"] = registry
		env["NPM_TOKEN"] = secretRef(token)
	}

	steps = append(steps, types.Step{
		Name: "Publish",
		Run:  "npm publish dist/*.tgz --registry \"https://${NPM_REGISTRY}\"",
	})

	job.Env = env
	job.Steps = steps
	return job, nil
}

func mavenJob(cfg *types.MavenPublishConfig, resolved *ResolvedRegistry) (types.Job, error) {
	job := baseJob()
	job.Name = "Publish to Maven"

	username := cfg.UsernameSecret
	if username == "" {
		username = DefaultMavenUsernameSecret
	}
	password := cfg.PasswordSecret
	if password == "" {
		password = DefaultMavenPasswordSecret
	}

	env := map[string]string{
		"MAVEN_USERNAME": secretRef(username),
		"MAVEN_PASSWORD": secretRef(password),
	}
	if resolved.Kind == RegistryGithubPackages {
		job.Permissions[types.ScopePackages] = types.PermissionWrite
		env["MAVEN_REPOSITORY"] = resolved.Host
		env["MAVEN_PASSWORD"] = secretRef(DefaultGithubTokenSecret)
	} else if resolved.Host != "" {
		env["MAVEN_REPOSITORY"] = resolved.Host
	}

	job.Env = env
	job.Steps = []types.Step{
		downloadStep(),
		{Name: "Publish", Run: "mvn deploy -f dist/pom.xml"},
	}
	return job, nil
}

func nugetJob(cfg *types.NugetPublishConfig, resolved *ResolvedRegistry) (types.Job, error) {
	job := baseJob()
	job.Name = "Publish to NuGet"

	apiKey := cfg.APIKeySecret
	if apiKey == "" {
		apiKey = DefaultNugetAPIKeySecret
	}

	source := "https://api.nuget.org/v3/index.json"
	if resolved.Kind == RegistryGithubPackages {
		job.Permissions[types.ScopePackages] = types.PermissionWrite
		source = "https://" + resolved.Host
		apiKey = DefaultGithubTokenSecret
	} else if resolved.Host != "" {
		source = "https://" + resolved.Host
	}

	job.Env = map[string]string{"NUGET_API_KEY": secretRef(apiKey)}
	job.Steps = []types.Step{
		downloadStep(),
		{
			Name: "Publish",
			Run:  fmt.Sprintf("dotnet nuget push dist/*.nupkg --api-key \"$NUGET_API_KEY\" --source %s", source),
		},
	}
	return job, nil
}

func pypiJob(cfg *types.PypiPublishConfig, resolved *ResolvedRegistry) (types.Job, error) {
	job := baseJob()
	job.Name = "Publish to PyPI"

	username := cfg.UsernameSecret
	if username == "" {
		username = DefaultPypiUsernameSecret
	}
	password := cfg.PasswordSecret
	if password == "" {
		password = DefaultPypiPasswordSecret
	}

	env := map[string]string{
		"TWINE_USERNAME": secretRef(username),
		"TWINE_PASSWORD": secretRef(password),
	}
	steps := []types.Step{downloadStep()}

	if resolved.Kind == RegistryCodeArtifact {
		keyID, secretKey := codeArtifactSecrets(cfg.CodeArtifactOptions)
		if cfg.UsernameSecret == "" && cfg.PasswordSecret == "" {
			env["AWS_ACCESS_KEY_ID"] = secretRef(keyID)
			env["AWS_SECRET_ACCESS_KEY"] = secretRef(secretKey)
		}
		env["TWINE_REPOSITORY_URL"] = "https://" + resolved.Host
		steps = append(steps, types.Step{
			Name: "Login to CodeArtifact",
			Run: fmt.Sprintf(
				"aws codeartifact login --tool twine --domain %s --repository %s",
				resolved.CodeArtifactDomain, resolved.CodeArtifactRepository,
			),
		})
	} else if resolved.Host != "" {
		env["TWINE_REPOSITORY_URL"] = "https://" + resolved.Host
	}

	steps = append(steps, types.Step{Name: "Publish", Run: "twine upload dist/*"})

	job.Env = env
	job.Steps = steps
	return job, nil
}

func goJob(cfg *types.GoPublishConfig) (types.Job, error) {
	job := baseJob()
	job.Name = "Publish Go module"
	job.Permissions[types.ScopeContents] = types.PermissionWrite

	token := cfg.GithubTokenSecret
	if token == "" {
		token = DefaultGithubTokenSecret
	}

	job.Env = map[string]string{"GITHUB_TOKEN": secretRef(token)}
	job.Steps = []types.Step{
		downloadStep(),
		{Name: "Push module tag", Run: "git push origin --tags"},
	}
	return job, nil
}

func codeArtifactSecrets(opts *types.CodeArtifactOptions) (keyID, secretKey string) {
	keyID = DefaultAccessKeyIDSecret
	secretKey = DefaultSecretAccessKeySecret
	if opts != nil {
		if opts.AccessKeyIDSecret != "" {
			keyID = opts.AccessKeyIDSecret
		}
		if opts.SecretAccessKeySecret != "" {
			secretKey = opts.SecretAccessKeySecret
		}
	}
	return keyID, secretKey
}
