// Package release owns the release-branch registry and the workflow
// synthesizer: it reconciles branch identity, version semantics, trigger
// policy, publishers and injected jobs into deterministic workflow
// documents and a local task graph.
package release

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wojtekgalaj/projen/pkg/logger"
	"github.com/wojtekgalaj/projen/pkg/publish"
	"github.com/wojtekgalaj/projen/pkg/tasks"
	"github.com/wojtekgalaj/projen/pkg/types"
	"github.com/wojtekgalaj/projen/pkg/workflow"
)

const (
	// DefaultWorkflowName is the workflow name for the default branch
	DefaultWorkflowName = "release"

	// DefaultFailureIssueLabel labels issues opened for failed releases
	DefaultFailureIssueLabel = "failed-release"

	// ReleaseJobKey is the job key of the built-in release job
	ReleaseJobKey = "release"

	// FailureIssueJobKey is the job key of the optional failure-issue job
	FailureIssueJobKey = "failure_issue"

	// taskRunner invokes the external task-execution engine at CI time
	taskRunner = "projen run"
)

// branch is a registered release branch with its resolved defaults
type branch struct {
	name            string
	majorVersion    *int
	minMajorVersion *int
	prerelease      string
	tagPrefix       string
	workflowName    string
	isDefault       bool
}

// Options configures a Release instance. Task and VersionFile are consumed
// by the emitted task graph; everything else shapes the workflows.
type Options struct {
	// Task is the opaque build-task handle delegated to by the release task
	Task string

	// VersionFile is written with the resolved version at bump time
	VersionFile string

	// Branch is the default release branch
	Branch string

	MajorVersion      *int
	MinMajorVersion   *int
	Prerelease        string
	TagPrefix         string
	WorkflowName      string
	Trigger           Trigger
	FailureIssue      bool
	FailureIssueLabel string
}

// Release is the release-orchestration synthesizer. All registries are
// owned exclusively by one instance; synthesis reads their final state.
type Release struct {
	task        string
	versionFile string
	trigger     Trigger

	failureIssue      bool
	failureIssueLabel string

	branches   []*branch
	publishers *publish.Registry
	extraJobs  []workflow.KeyedJob

	log logger.Logger
}

// New creates a Release and registers its default branch
func New(opts Options, log logger.Logger) (*Release, error) {
	if opts.Task == "" {
		return nil, NewConfigurationError(`"task" is required`)
	}
	if opts.VersionFile == "" {
		return nil, NewConfigurationError(`"versionFile" is required`)
	}
	if opts.Branch == "" {
		return nil, NewConfigurationError(`"branch" is required`)
	}
	if err := validateVersionBounds(opts.MajorVersion, opts.MinMajorVersion); err != nil {
		return nil, err
	}

	label := opts.FailureIssueLabel
	if label == "" {
		label = DefaultFailureIssueLabel
	}

	workflowName := opts.WorkflowName
	if workflowName == "" {
		workflowName = DefaultWorkflowName
	}

	r := &Release{
		task:              opts.Task,
		versionFile:       opts.VersionFile,
		trigger:           opts.Trigger,
		failureIssue:      opts.FailureIssue,
		failureIssueLabel: label,
		publishers:        publish.NewRegistry(),
		log:               log,
	}

	r.branches = append(r.branches, &branch{
		name:            opts.Branch,
		majorVersion:    opts.MajorVersion,
		minMajorVersion: opts.MinMajorVersion,
		prerelease:      opts.Prerelease,
		tagPrefix:       opts.TagPrefix,
		workflowName:    workflowName,
		isDefault:       true,
	})

	return r, nil
}

// Publishers exposes the publisher registry for this instance
func (r *Release) Publishers() *publish.Registry {
	return r.publishers
}

// AddBranch registers an additional release branch. The default branch must
// pin a major version line before a second branch can be added, otherwise
// both branches would compete for the same tag space.
func (r *Release) AddBranch(name string, opts types.BranchOptions) error {
	if name == "" {
		return NewConfigurationError("branch name must not be empty")
	}
	for _, b := range r.branches {
		if b.name == name {
			return NewConfigurationError(fmt.Sprintf("release branch %q is already registered", name))
		}
	}

	def := r.defaultBranch()
	if def.majorVersion == nil && def.minMajorVersion == nil {
		return NewConfigurationError(`you must specify "majorVersion" for the default branch when adding multiple release branches`)
	}

	if err := validateVersionBounds(opts.MajorVersion, opts.MinMajorVersion); err != nil {
		return err
	}

	workflowName := opts.WorkflowName
	if workflowName == "" {
		workflowName = DefaultWorkflowName + "-" + sanitizeName(name)
	}
	for _, b := range r.branches {
		if b.workflowName == workflowName {
			return NewConfigurationError(fmt.Sprintf(
				"branches %q and %q resolve to the same workflow name %q", b.name, name, workflowName))
		}
	}

	tagPrefix := opts.TagPrefix
	if tagPrefix == "" {
		tagPrefix = sanitizeName(name) + "-"
	}
	for _, b := range r.branches {
		if b.tagPrefix == tagPrefix {
			return NewConfigurationError(fmt.Sprintf(
				"branches %q and %q resolve to the same tag prefix %q", b.name, name, tagPrefix))
		}
	}

	r.branches = append(r.branches, &branch{
		name:            name,
		majorVersion:    opts.MajorVersion,
		minMajorVersion: opts.MinMajorVersion,
		prerelease:      opts.Prerelease,
		tagPrefix:       tagPrefix,
		workflowName:    workflowName,
	})

	if r.log != nil {
		r.log.Debug("registered release branch", logger.WithField("branch", name))
	}
	return nil
}

// Branches returns the registered branch names in registration order
func (r *Release) Branches() []string {
	names := make([]string, 0, len(r.branches))
	for _, b := range r.branches {
		names = append(names, b.name)
	}
	return names
}

// AddJobs appends caller-defined jobs that are merged into every
// synthesized workflow. Jobs are append-only; each call's keys are applied
// in sorted order so synthesis stays deterministic.
func (r *Release) AddJobs(jobs map[string]types.Job) error {
	keys := make([]string, 0, len(jobs))
	for key := range jobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// validate the whole call before mutating, so a rejected call leaves
	// the composer untouched
	for _, key := range keys {
		if key == "" {
			return NewConfigurationError("job key must not be empty")
		}
		for _, existing := range r.extraJobs {
			if existing.Key == key {
				return NewConfigurationError(fmt.Sprintf("job %q is already registered", key))
			}
		}
	}

	for _, key := range keys {
		r.extraJobs = append(r.extraJobs, workflow.KeyedJob{Key: key, Job: jobs[key]})
	}
	return nil
}

// Synthesis is the pure output of one synthesis pass
type Synthesis struct {
	Workflows []*workflow.Workflow
	Tasks     *tasks.Graph
}

// Synthesize produces one workflow per registered branch plus the release
// task graph. A manual trigger short-circuits workflow generation entirely.
// Any failure yields no output at all.
func (r *Release) Synthesize() (*Synthesis, error) {
	graph, err := r.buildTaskGraph()
	if err != nil {
		return nil, err
	}

	syn := &Synthesis{Tasks: graph}
	if r.trigger.IsManual() {
		if r.log != nil {
			r.log.Info("release trigger is manual, skipping workflow generation")
		}
		return syn, nil
	}

	for _, b := range r.branches {
		wf, err := r.synthesizeBranch(b)
		if err != nil {
			return nil, err
		}
		syn.Workflows = append(syn.Workflows, wf)
	}
	return syn, nil
}

func (r *Release) synthesizeBranch(b *branch) (*workflow.Workflow, error) {
	wf := workflow.New(b.workflowName)

	if r.trigger.EveryCommit() {
		wf.On.Push = &workflow.PushTrigger{Branches: []string{b.name}}
	}
	if r.trigger.Type() == types.TriggerScheduled {
		wf.On.Schedule = []workflow.ScheduleEntry{{Cron: r.trigger.Schedule()}}
	}

	if err := wf.AddJob(ReleaseJobKey, r.releaseJob(b)); err != nil {
		return nil, err
	}

	pubJobs, order, err := r.publishers.Jobs()
	if err != nil {
		return nil, err
	}
	for _, key := range order {
		if err := wf.AddJob(key, pubJobs[key]); err != nil {
			return nil, err
		}
	}

	for _, kj := range r.extraJobs {
		if err := wf.AddJob(kj.Key, kj.Job); err != nil {
			return nil, err
		}
	}

	if r.failureIssue {
		if err := wf.AddJob(FailureIssueJobKey, r.failureIssueJob()); err != nil {
			return nil, err
		}
	}

	return wf, nil
}

// releaseJob builds the built-in release job. The step sequence is fixed:
// checkout, git identity, version bump, build, tag and push. Downstream
// tooling relies on this ordering and count.
func (r *Release) releaseJob(b *branch) types.Job {
	bumpEnv := map[string]string{
		"VERSION_FILE": r.versionFile,
	}
	if b.majorVersion != nil {
		bumpEnv["MAJOR_VERSION"] = fmt.Sprintf("%d", *b.majorVersion)
	}
	if b.minMajorVersion != nil {
		bumpEnv["MIN_MAJOR_VERSION"] = fmt.Sprintf("%d", *b.minMajorVersion)
	}
	if b.prerelease != "" {
		bumpEnv["PRERELEASE"] = b.prerelease
	}
	if b.tagPrefix != "" {
		bumpEnv["TAG_PREFIX"] = b.tagPrefix
	}

	tagEnv := map[string]string{
		"VERSION_FILE": r.versionFile,
	}
	if b.tagPrefix != "" {
		tagEnv["TAG_PREFIX"] = b.tagPrefix
	}

	return types.Job{
		Name:   "Release " + b.name,
		RunsOn: "ubuntu-latest",
		Permissions: map[string]types.Permission{
			types.ScopeContents: types.PermissionWrite,
		},
		Env: map[string]string{"CI": "true"},
		Steps: []types.Step{
			{
				Name: "Checkout",
				Uses: "actions/checkout@v4",
				With: map[string]string{"fetch-depth": "0"},
			},
			{
				Name: "Set git identity",
				Run:  "git config user.name \"github-actions\"\ngit config user.email \"github-actions@github.com\"",
			},
			{
				Name: "Bump version",
				Run:  taskRunner + " release:bump",
				Env:  bumpEnv,
			},
			{
				Name: "Build",
				Run:  taskRunner + " " + r.task,
			},
			{
				Name: "Tag and push",
				Run:  taskRunner + " release:tag\ngit push --follow-tags origin " + b.name,
				Env:  tagEnv,
			},
		},
	}
}

func (r *Release) failureIssueJob() types.Job {
	return types.Job{
		Name:   "Open failure issue",
		RunsOn: "ubuntu-latest",
		Needs:  []string{ReleaseJobKey},
		If:     "failure()",
		Permissions: map[string]types.Permission{
			types.ScopeIssues: types.PermissionWrite,
		},
		Env: map[string]string{
			"GITHUB_TOKEN": "${{ secrets.GITHUB_TOKEN }}",
		},
		Steps: []types.Step{
			{
				Name: "Create issue",
				Run: fmt.Sprintf(
					"gh issue create --label %q --title \"Release failed for ${{ github.ref_name }}\" --body \"See ${{ github.server_url }}/${{ github.repository }}/actions/runs/${{ github.run_id }}\"",
					r.failureIssueLabel),
			},
		},
	}
}

func (r *Release) buildTaskGraph() (*tasks.Graph, error) {
	graph := tasks.NewGraph()

	bumpEnv := map[string]string{"VERSION_FILE": r.versionFile}
	if err := graph.Add(tasks.Task{
		Name:        "release:bump",
		Description: "Resolve the next version from tag history and write it to the version file",
		Env:         bumpEnv,
		Steps:       []tasks.TaskStep{{Exec: "release-version bump"}},
	}); err != nil {
		return nil, err
	}

	if err := graph.Add(tasks.Task{
		Name:        "release:tag",
		Description: "Create the release tag from the resolved version",
		Env:         map[string]string{"VERSION_FILE": r.versionFile},
		Steps:       []tasks.TaskStep{{Exec: "release-version tag"}},
	}); err != nil {
		return nil, err
	}

	rootSteps := []tasks.TaskStep{
		{Spawn: "release:bump"},
		{Spawn: r.task},
		{Spawn: "release:tag"},
	}
	for _, target := range r.publishers.Targets() {
		name := "release:publish:" + string(target)
		if err := graph.Add(tasks.Task{
			Name:        name,
			Description: fmt.Sprintf("Publish build artifacts to %s", target),
			Steps:       []tasks.TaskStep{{Exec: "release-publish " + string(target)}},
		}); err != nil {
			return nil, err
		}
		rootSteps = append(rootSteps, tasks.TaskStep{Spawn: name})
	}

	if err := graph.Add(tasks.Task{
		Name:        "release",
		Description: "Bump the version, build, tag and publish",
		Steps:       rootSteps,
	}); err != nil {
		return nil, err
	}

	return graph, nil
}

func (r *Release) defaultBranch() *branch {
	return r.branches[0]
}

func validateVersionBounds(major, minMajor *int) error {
	if major != nil && minMajor != nil {
		return NewConfigurationError(`"majorVersion" and "minMajorVersion" cannot be used together`)
	}
	if major != nil && *major < 0 {
		return NewConfigurationError(`"majorVersion" cannot be negative`)
	}
	if minMajor != nil && *minMajor < 0 {
		return NewConfigurationError(`"minMajorVersion" cannot be negative`)
	}
	return nil
}

// sanitizeName makes a branch name safe for file names and tag prefixes
func sanitizeName(name string) string {
	s := strings.ReplaceAll(name, "/", "-")
	return strings.ReplaceAll(s, ".", "-")
}
