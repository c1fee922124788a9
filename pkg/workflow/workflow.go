// Package workflow models CI workflow documents and their ordered YAML encoding
package workflow

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wojtekgalaj/projen/pkg/types"
)

// PushTrigger fires a workflow on pushes to the listed branches
type PushTrigger struct {
	Branches []string
}

// ScheduleEntry fires a workflow on a cron expression
type ScheduleEntry struct {
	Cron string
}

// Triggers represents the "on" section of a workflow document
type Triggers struct {
	Push     *PushTrigger
	Schedule []ScheduleEntry
}

// KeyedJob pairs a job key with its job, preserving insertion order
type KeyedJob struct {
	Key string
	Job types.Job
}

// Workflow is one ordered workflow document: a name, its triggers and an
// ordered mapping of job key to job
type Workflow struct {
	Name string
	On   Triggers
	jobs []KeyedJob
}

// New creates an empty workflow with the given name
func New(name string) *Workflow {
	return &Workflow{Name: name}
}

// AddJob appends a job under the given key. Keys must be unique within
// the document; a collision is a configuration error.
func (w *Workflow) AddJob(key string, job types.Job) error {
	if key == "" {
		return fmt.Errorf("job key must not be empty")
	}
	for _, kj := range w.jobs {
		if kj.Key == key {
			return fmt.Errorf("duplicate job key %q in workflow %q", key, w.Name)
		}
	}
	w.jobs = append(w.jobs, KeyedJob{Key: key, Job: job})
	return nil
}

// Jobs returns the jobs in insertion order
func (w *Workflow) Jobs() []KeyedJob {
	out := make([]KeyedJob, len(w.jobs))
	copy(out, w.jobs)
	return out
}

// Job returns the job registered under key, if any
func (w *Workflow) Job(key string) (types.Job, bool) {
	for _, kj := range w.jobs {
		if kj.Key == key {
			return kj.Job, true
		}
	}
	return types.Job{}, false
}

// FileName returns the workflow file path below the repository root
func (w *Workflow) FileName() string {
	return fmt.Sprintf(".github/workflows/%s.yml", w.Name)
}

// Encode renders the workflow as an ordered YAML document. Maps are encoded
// with sorted keys so repeated synthesis is byte-for-byte identical.
func (w *Workflow) Encode() ([]byte, error) {
	doc := mappingNode()
	appendScalar(doc, "name", w.Name)

	on := mappingNode()
	if w.On.Push != nil {
		push := mappingNode()
		push.Content = append(push.Content, scalarNode("branches"), sequenceOfScalars(w.On.Push.Branches))
		on.Content = append(on.Content, scalarNode("push"), push)
	}
	if len(w.On.Schedule) > 0 {
		schedule := &yaml.Node{Kind: yaml.SequenceNode}
		for _, entry := range w.On.Schedule {
			item := mappingNode()
			appendScalar(item, "cron", entry.Cron)
			schedule.Content = append(schedule.Content, item)
		}
		on.Content = append(on.Content, scalarNode("schedule"), schedule)
	}
	doc.Content = append(doc.Content, scalarNode("on"), on)

	jobs := mappingNode()
	for _, kj := range w.jobs {
		jobNode, err := encodeJob(kj.Job)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", kj.Key, err)
		}
		jobs.Content = append(jobs.Content, scalarNode(kj.Key), jobNode)
	}
	doc.Content = append(doc.Content, scalarNode("jobs"), jobs)

	return yaml.Marshal(doc)
}

func encodeJob(job types.Job) (*yaml.Node, error) {
	node := mappingNode()

	if job.Name != "" {
		appendScalar(node, "name", job.Name)
	}
	appendScalar(node, "runs-on", job.RunsOn)

	if len(job.Permissions) > 0 {
		perms := mappingNode()
		for _, scope := range sortedKeys(job.Permissions) {
			appendScalar(perms, scope, string(job.Permissions[scope]))
		}
		node.Content = append(node.Content, scalarNode("permissions"), perms)
	}

	if len(job.Needs) > 0 {
		node.Content = append(node.Content, scalarNode("needs"), sequenceOfScalars(job.Needs))
	}
	if job.If != "" {
		appendScalar(node, "if", job.If)
	}
	if len(job.Env) > 0 {
		node.Content = append(node.Content, scalarNode("env"), stringMapNode(job.Env))
	}

	if len(job.Steps) == 0 {
		return nil, fmt.Errorf("job has no steps")
	}
	steps := &yaml.Node{Kind: yaml.SequenceNode}
	for _, step := range job.Steps {
		steps.Content = append(steps.Content, encodeStep(step))
	}
	node.Content = append(node.Content, scalarNode("steps"), steps)

	return node, nil
}

func encodeStep(step types.Step) *yaml.Node {
	node := mappingNode()
	if step.Name != "" {
		appendScalar(node, "name", step.Name)
	}
	if step.If != "" {
		appendScalar(node, "if", step.If)
	}
	if step.Uses != "" {
		appendScalar(node, "uses", step.Uses)
	}
	if len(step.With) > 0 {
		node.Content = append(node.Content, scalarNode("with"), stringMapNode(step.With))
	}
	if step.Run != "" {
		appendScalar(node, "run", step.Run)
	}
	if len(step.Env) > 0 {
		node.Content = append(node.Content, scalarNode("env"), stringMapNode(step.Env))
	}
	return node
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}

func appendScalar(node *yaml.Node, key, value string) {
	node.Content = append(node.Content, scalarNode(key), scalarNode(value))
}

func sequenceOfScalars(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		seq.Content = append(seq.Content, scalarNode(v))
	}
	return seq
}

func stringMapNode(m map[string]string) *yaml.Node {
	node := mappingNode()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendScalar(node, k, m[k])
	}
	return node
}

func sortedKeys(m map[string]types.Permission) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
