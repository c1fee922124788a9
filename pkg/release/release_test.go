package release_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wojtekgalaj/projen/pkg/release"
	"github.com/wojtekgalaj/projen/pkg/types"
)

func defaultOptions() release.Options {
	return release.Options{
		Task:        "build",
		VersionFile: "dist/version.txt",
		Branch:      "main",
		Trigger:     release.ContinuousTrigger(),
	}
}

func newRelease(t *testing.T, opts release.Options) *release.Release {
	t.Helper()
	r, err := release.New(opts, nil)
	if err != nil {
		t.Fatalf("failed to create release: %v", err)
	}
	return r
}

func TestNew_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*release.Options)
	}{
		{"missing task", func(o *release.Options) { o.Task = "" }},
		{"missing version file", func(o *release.Options) { o.VersionFile = "" }},
		{"missing branch", func(o *release.Options) { o.Branch = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(&opts)
			_, err := release.New(opts, nil)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !release.IsConfigurationError(err) {
				t.Errorf("expected ConfigurationError, got %T", err)
			}
		})
	}
}

func TestNew_VersionBounds(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	opts.MinMajorVersion = types.IntPtr(1)
	if _, err := release.New(opts, nil); err == nil {
		t.Fatal("expected error for majorVersion together with minMajorVersion")
	}

	opts = defaultOptions()
	opts.MajorVersion = types.IntPtr(-1)
	if _, err := release.New(opts, nil); err == nil {
		t.Fatal("expected error for negative majorVersion")
	}
}

func TestSynthesize_SingleBranchContinuous(t *testing.T) {
	r := newRelease(t, defaultOptions())

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(syn.Workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(syn.Workflows))
	}

	wf := syn.Workflows[0]
	if wf.Name != "release" {
		t.Errorf("expected workflow name 'release', got %q", wf.Name)
	}
	if wf.FileName() != ".github/workflows/release.yml" {
		t.Errorf("unexpected file name: %s", wf.FileName())
	}
	if wf.On.Push == nil || len(wf.On.Push.Branches) != 1 || wf.On.Push.Branches[0] != "main" {
		t.Errorf("expected push trigger scoped to main, got %+v", wf.On.Push)
	}
	if len(wf.On.Schedule) != 0 {
		t.Errorf("expected no schedule, got %v", wf.On.Schedule)
	}

	job, ok := wf.Job(release.ReleaseJobKey)
	if !ok {
		t.Fatal("expected a release job")
	}
	if len(job.Steps) != 5 {
		t.Fatalf("expected 5 release steps, got %d", len(job.Steps))
	}
	if job.Permissions[types.ScopeContents] != types.PermissionWrite {
		t.Error("expected contents: write on the release job")
	}
}

func TestSynthesize_Manual(t *testing.T) {
	opts := defaultOptions()
	opts.Trigger = release.ManualTrigger()
	opts.FailureIssue = true
	r := newRelease(t, opts)

	if err := r.Publishers().PublishToNpm(nil); err != nil {
		t.Fatalf("PublishToNpm failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(syn.Workflows) != 0 {
		t.Errorf("manual trigger must produce no workflows, got %d", len(syn.Workflows))
	}
	// The release task still exists for manual invocation
	if _, ok := syn.Tasks.Task("release"); !ok {
		t.Error("expected the release task to exist for manual invocation")
	}
}

func TestSynthesize_ScheduledWithoutPush(t *testing.T) {
	trigger, err := release.ScheduledTrigger("0 17 * * *", false)
	if err != nil {
		t.Fatalf("ScheduledTrigger failed: %v", err)
	}

	opts := defaultOptions()
	opts.Trigger = trigger
	r := newRelease(t, opts)

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	wf := syn.Workflows[0]
	if wf.On.Push != nil {
		t.Errorf("expected push trigger suppressed, got %+v", wf.On.Push)
	}
	if len(wf.On.Schedule) != 1 || wf.On.Schedule[0].Cron != "0 17 * * *" {
		t.Errorf("expected schedule cron '0 17 * * *', got %v", wf.On.Schedule)
	}
}

func TestSynthesize_ScheduledWithPush(t *testing.T) {
	trigger, err := release.ScheduledTrigger("0 17 * * *", true)
	if err != nil {
		t.Fatalf("ScheduledTrigger failed: %v", err)
	}

	opts := defaultOptions()
	opts.Trigger = trigger
	r := newRelease(t, opts)

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	wf := syn.Workflows[0]
	if wf.On.Push == nil || wf.On.Push.Branches[0] != "main" {
		t.Error("expected push trigger alongside the schedule")
	}
	if len(wf.On.Schedule) != 1 {
		t.Error("expected schedule trigger")
	}
}

func TestScheduledTrigger_InvalidCron(t *testing.T) {
	_, err := release.ScheduledTrigger("not a cron", false)
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if !release.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestAddBranch_RequiresDefaultMajor(t *testing.T) {
	r := newRelease(t, defaultOptions())

	err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	want := `you must specify "majorVersion" for the default branch when adding multiple release branches`
	if err.Error() != want {
		t.Errorf("unexpected error message:\n got: %s\nwant: %s", err.Error(), want)
	}
	if !release.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestAddBranch_MinMajorSatisfiesInvariant(t *testing.T) {
	opts := defaultOptions()
	opts.MinMajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("expected minMajorVersion to satisfy the invariant: %v", err)
	}
}

func TestAddBranch_Duplicate(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("main", types.BranchOptions{}); err == nil {
		t.Fatal("expected error when re-registering the default branch")
	}
}

func TestAddBranch_WorkflowNameCollision(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}
	// 2/x sanitizes to the same workflow name as 2.x
	err := r.AddBranch("2/x", types.BranchOptions{MajorVersion: types.IntPtr(2), TagPrefix: "alt-"})
	if err == nil {
		t.Fatal("expected workflow name collision error")
	}
	if !strings.Contains(err.Error(), "workflow name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAddBranch_ExplicitTagPrefixesAllowSharedMajor(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	err := r.AddBranch("stable", types.BranchOptions{
		MajorVersion: types.IntPtr(1),
		TagPrefix:    "stable-",
		WorkflowName: "release-stable",
	})
	if err != nil {
		t.Fatalf("AddBranch stable failed: %v", err)
	}

	err = r.AddBranch("lts", types.BranchOptions{
		MajorVersion: types.IntPtr(1),
		TagPrefix:    "lts-",
		WorkflowName: "release-lts",
	})
	if err != nil {
		t.Fatalf("expected distinct explicit tag prefixes to coexist: %v", err)
	}
}

func TestAddBranch_TagPrefixCollision(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("2.x", types.BranchOptions{TagPrefix: "v2-"}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}
	err := r.AddBranch("next", types.BranchOptions{TagPrefix: "v2-"})
	if err == nil {
		t.Fatal("expected tag prefix collision error")
	}
	if !strings.Contains(err.Error(), "tag prefix") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSynthesize_MultiBranchWithPublisher(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}
	if err := r.Publishers().PublishToNpm(nil); err != nil {
		t.Fatalf("PublishToNpm failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(syn.Workflows) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(syn.Workflows))
	}

	wantBranches := []string{"main", "2.x"}
	for i, wf := range syn.Workflows {
		if wf.On.Push == nil || len(wf.On.Push.Branches) != 1 || wf.On.Push.Branches[0] != wantBranches[i] {
			t.Errorf("workflow %d: expected push scoped to %s, got %+v", i, wantBranches[i], wf.On.Push)
		}

		job, ok := wf.Job(release.ReleaseJobKey)
		if !ok {
			t.Fatalf("workflow %d: missing release job", i)
		}
		// Publisher additions must not change the base release job
		if len(job.Steps) != 5 {
			t.Errorf("workflow %d: expected 5 release steps, got %d", i, len(job.Steps))
		}
		if _, ok := wf.Job("release_npm"); !ok {
			t.Errorf("workflow %d: missing release_npm job", i)
		}
	}

	if syn.Workflows[1].Name != "release-2-x" {
		t.Errorf("expected derived workflow name release-2-x, got %q", syn.Workflows[1].Name)
	}
}

func TestSynthesize_BranchVersionEnv(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	opts.Prerelease = "pre"
	r := newRelease(t, opts)

	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	main, _ := syn.Workflows[0].Job(release.ReleaseJobKey)
	bump := main.Steps[2]
	if bump.Env["MAJOR_VERSION"] != "1" || bump.Env["PRERELEASE"] != "pre" {
		t.Errorf("unexpected bump env for main: %v", bump.Env)
	}
	if bump.Env["VERSION_FILE"] != "dist/version.txt" {
		t.Errorf("expected version file in bump env, got %v", bump.Env)
	}

	second, _ := syn.Workflows[1].Job(release.ReleaseJobKey)
	bump = second.Steps[2]
	if bump.Env["MAJOR_VERSION"] != "2" {
		t.Errorf("unexpected bump env for 2.x: %v", bump.Env)
	}
	if bump.Env["TAG_PREFIX"] != "2-x-" {
		t.Errorf("expected derived tag prefix in bump env, got %v", bump.Env)
	}
}

func TestAddJobs_AdditiveAcrossCalls(t *testing.T) {
	r := newRelease(t, defaultOptions())

	job := types.Job{
		RunsOn: "ubuntu-latest",
		Steps:  []types.Step{{Name: "Noop", Run: "true"}},
	}

	if err := r.AddJobs(map[string]types.Job{"lint": job}); err != nil {
		t.Fatalf("first AddJobs failed: %v", err)
	}
	if err := r.AddJobs(map[string]types.Job{"docs": job, "bench": job}); err != nil {
		t.Fatalf("second AddJobs failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	keys := []string{}
	for _, kj := range syn.Workflows[0].Jobs() {
		keys = append(keys, kj.Key)
	}
	// release first, then composer jobs: call order, sorted within a call
	expected := []string{"release", "lint", "bench", "docs"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d jobs, got %v", len(expected), keys)
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Fatalf("unexpected job order: got %v, want %v", keys, expected)
		}
	}
}

func TestAddJobs_DuplicateKeyRejected(t *testing.T) {
	r := newRelease(t, defaultOptions())

	job := types.Job{RunsOn: "ubuntu-latest", Steps: []types.Step{{Run: "true"}}}
	if err := r.AddJobs(map[string]types.Job{"lint": job}); err != nil {
		t.Fatalf("AddJobs failed: %v", err)
	}
	if err := r.AddJobs(map[string]types.Job{"lint": job}); err == nil {
		t.Fatal("expected duplicate job key error")
	}
}

func TestAddJobs_RejectedCallLeavesComposerUntouched(t *testing.T) {
	r := newRelease(t, defaultOptions())

	job := types.Job{RunsOn: "ubuntu-latest", Steps: []types.Step{{Run: "true"}}}
	if err := r.AddJobs(map[string]types.Job{"lint": job}); err != nil {
		t.Fatalf("AddJobs failed: %v", err)
	}

	// "bench" sorts before the colliding "lint"; a failed call must not
	// register any of its keys
	if err := r.AddJobs(map[string]types.Job{"bench": job, "lint": job}); err == nil {
		t.Fatal("expected duplicate job key error")
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	var keys []string
	for _, kj := range syn.Workflows[0].Jobs() {
		keys = append(keys, kj.Key)
	}
	expected := []string{"release", "lint"}
	if len(keys) != len(expected) {
		t.Fatalf("expected jobs %v, got %v", expected, keys)
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected jobs %v, got %v", expected, keys)
		}
	}
}

func TestAddJobs_CollisionWithReleaseJob(t *testing.T) {
	r := newRelease(t, defaultOptions())

	job := types.Job{RunsOn: "ubuntu-latest", Steps: []types.Step{{Run: "true"}}}
	if err := r.AddJobs(map[string]types.Job{"release": job}); err != nil {
		t.Fatalf("AddJobs failed: %v", err)
	}

	// Collision with the built-in job surfaces at synthesis, before any output
	syn, err := r.Synthesize()
	if err == nil {
		t.Fatal("expected job key collision at synthesis")
	}
	if syn != nil {
		t.Error("failed synthesis must produce no output")
	}
}

func TestSynthesize_AppliesComposerToLaterBranches(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	job := types.Job{RunsOn: "ubuntu-latest", Steps: []types.Step{{Run: "true"}}}
	if err := r.AddJobs(map[string]types.Job{"lint": job}); err != nil {
		t.Fatalf("AddJobs failed: %v", err)
	}
	// Branch registered after the AddJobs call still receives the job
	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	for i, wf := range syn.Workflows {
		if _, ok := wf.Job("lint"); !ok {
			t.Errorf("workflow %d: expected composer job 'lint'", i)
		}
	}
}

func TestSynthesize_FailureIssue(t *testing.T) {
	opts := defaultOptions()
	opts.FailureIssue = true
	r := newRelease(t, opts)

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	job, ok := syn.Workflows[0].Job(release.FailureIssueJobKey)
	if !ok {
		t.Fatal("expected failure issue job")
	}
	if job.If != "failure()" {
		t.Errorf("expected failure() condition, got %q", job.If)
	}
	if job.Permissions[types.ScopeIssues] != types.PermissionWrite {
		t.Error("expected issues: write permission")
	}
	if !strings.Contains(job.Steps[0].Run, `"failed-release"`) {
		t.Errorf("expected default label in issue step, got %q", job.Steps[0].Run)
	}
}

func TestSynthesize_FailureIssueCustomLabel(t *testing.T) {
	opts := defaultOptions()
	opts.FailureIssue = true
	opts.FailureIssueLabel = "release-broke"
	r := newRelease(t, opts)

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	job, _ := syn.Workflows[0].Job(release.FailureIssueJobKey)
	if !strings.Contains(job.Steps[0].Run, `"release-broke"`) {
		t.Errorf("expected custom label, got %q", job.Steps[0].Run)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	build := func() [][]byte {
		opts := defaultOptions()
		opts.MajorVersion = types.IntPtr(1)
		opts.FailureIssue = true
		r := newRelease(t, opts)

		if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
			t.Fatalf("AddBranch failed: %v", err)
		}
		if err := r.Publishers().PublishToNpm(nil); err != nil {
			t.Fatalf("PublishToNpm failed: %v", err)
		}
		if err := r.Publishers().PublishToPypi(nil); err != nil {
			t.Fatalf("PublishToPypi failed: %v", err)
		}
		if err := r.AddJobs(map[string]types.Job{
			"lint": {RunsOn: "ubuntu-latest", Steps: []types.Step{{Run: "true"}}},
		}); err != nil {
			t.Fatalf("AddJobs failed: %v", err)
		}

		syn, err := r.Synthesize()
		if err != nil {
			t.Fatalf("Synthesize failed: %v", err)
		}

		var out [][]byte
		for _, wf := range syn.Workflows {
			data, err := wf.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			out = append(out, data)
		}
		tasksData, err := syn.Tasks.Encode()
		if err != nil {
			t.Fatalf("task graph Encode failed: %v", err)
		}
		return append(out, tasksData)
	}

	first := build()
	for i := 0; i < 5; i++ {
		next := build()
		if len(next) != len(first) {
			t.Fatal("output document count changed between runs")
		}
		for j := range first {
			if !bytes.Equal(first[j], next[j]) {
				t.Fatalf("document %d differs between synthesis runs", j)
			}
		}
	}
}

func TestSynthesize_TaskGraph(t *testing.T) {
	r := newRelease(t, defaultOptions())
	if err := r.Publishers().PublishToNpm(nil); err != nil {
		t.Fatalf("PublishToNpm failed: %v", err)
	}

	syn, err := r.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	root, ok := syn.Tasks.Task("release")
	if !ok {
		t.Fatal("expected a release task")
	}

	spawns := []string{}
	for _, step := range root.Steps {
		spawns = append(spawns, step.Spawn)
	}
	want := []string{"release:bump", "build", "release:tag", "release:publish:npm"}
	if len(spawns) != len(want) {
		t.Fatalf("unexpected release task steps: %v", spawns)
	}
	for i := range want {
		if spawns[i] != want[i] {
			t.Fatalf("unexpected release task steps: got %v, want %v", spawns, want)
		}
	}

	bump, ok := syn.Tasks.Task("release:bump")
	if !ok {
		t.Fatal("expected a release:bump task")
	}
	if bump.Env["VERSION_FILE"] != "dist/version.txt" {
		t.Errorf("expected version file in bump task env, got %v", bump.Env)
	}
}

func TestBranches_RegistrationOrder(t *testing.T) {
	opts := defaultOptions()
	opts.MajorVersion = types.IntPtr(1)
	r := newRelease(t, opts)

	if err := r.AddBranch("3.x", types.BranchOptions{MajorVersion: types.IntPtr(3)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}
	if err := r.AddBranch("2.x", types.BranchOptions{MajorVersion: types.IntPtr(2)}); err != nil {
		t.Fatalf("AddBranch failed: %v", err)
	}

	got := r.Branches()
	want := []string{"main", "3.x", "2.x"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected branch order: got %v, want %v", got, want)
		}
	}
}
