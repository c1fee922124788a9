// Package tasks declares the local release task graph consumed by the
// external task-execution engine. Nothing here executes; it is pure shape.
package tasks

import (
	"encoding/json"
	"fmt"
)

// GraphFileName is where the task graph is persisted below the project root
const GraphFileName = ".release/tasks.json"

// TaskStep is one unit inside a task: either a shell execution or a spawn
// of another named task
type TaskStep struct {
	Exec  string `json:"exec,omitempty"`
	Spawn string `json:"spawn,omitempty"`
}

// Task is an opaque named unit of work with ordered steps
type Task struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Steps       []TaskStep        `json:"steps"`
}

// Graph is an ordered collection of tasks
type Graph struct {
	tasks []Task
}

// NewGraph creates an empty task graph
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a task. Task names are unique within a graph.
func (g *Graph) Add(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	for _, t := range g.tasks {
		if t.Name == task.Name {
			return fmt.Errorf("duplicate task name %q", task.Name)
		}
	}
	g.tasks = append(g.tasks, task)
	return nil
}

// Tasks returns the tasks in insertion order
func (g *Graph) Tasks() []Task {
	out := make([]Task, len(g.tasks))
	copy(out, g.tasks)
	return out
}

// Task returns the task with the given name, if present
func (g *Graph) Task(name string) (Task, bool) {
	for _, t := range g.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Encode renders the graph as indented JSON with stable ordering
func (g *Graph) Encode() ([]byte, error) {
	doc := struct {
		Tasks []Task `json:"tasks"`
	}{Tasks: g.tasks}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode task graph: %w", err)
	}
	return append(data, '\n'), nil
}
