// Package agent runs small role-playing LLM agents over a sequence of
// tasks. A Crew hands each Task to its Agent in order and collects the
// outputs.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTaskOutput is returned when a crew result holds no task output.
	ErrNoTaskOutput = errors.New("crew result has no task output")

	ErrNoAgents = errors.New("crew has no agents")
	ErrNoTasks  = errors.New("crew has no tasks")
)

// Agent is a persona bound to a language model.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	LLM       LLM
}

// systemPrompt describes the agent's persona and the shape of the answer
// expected for one task.
func (a *Agent) systemPrompt(expectedOutput string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are %s. %s\n", a.Role, a.Backstory))
	sb.WriteString(fmt.Sprintf("Your personal goal is: %s\n", a.Goal))
	if expectedOutput != "" {
		sb.WriteString("\nThe expected criteria for your final answer: ")
		sb.WriteString(expectedOutput)
		sb.WriteString("\nReply with the final answer only.")
	}

	return sb.String()
}

// Execute runs a single task. taskContext carries the outputs of earlier
// tasks in the same crew and may be empty.
func (a *Agent) Execute(
	ctx context.Context, task Task, taskContext string,
) (TaskOutput, error) {
	if a.LLM == nil {
		return TaskOutput{}, fmt.Errorf("agent %q has no LLM", a.Role)
	}

	user := task.Description
	if taskContext != "" {
		user += "\n\nThis is the context you're working with:\n" + taskContext
	}

	answer, err := a.LLM.Complete(ctx, Prompt{
		System: a.systemPrompt(task.ExpectedOutput),
		User:   user,
	})
	if err != nil {
		return TaskOutput{}, fmt.Errorf("agent %q executing task: %w", a.Role, err)
	}

	return TaskOutput{
		Description: task.Description,
		Agent:       a.Role,
		Raw:         strings.TrimSpace(answer),
	}, nil
}

// Task is a unit of work for an agent.
type Task struct {
	Description    string
	ExpectedOutput string

	// Agent runs the task; nil means the crew's first agent.
	Agent *Agent
}

// SummarizeEmailTask returns the task asking agent for a short summary of
// an email body.
func SummarizeEmailTask(a *Agent, body string) Task {
	return Task{
		Description:    "Summarize the email content:\n" + body,
		ExpectedOutput: "Short and clean summary of the email.",
		Agent:          a,
	}
}

// TaskOutput is the result of one task.
type TaskOutput struct {
	Description string
	Agent       string
	Raw         string
}

// CrewOutput collects the results of a crew run. Raw is the output of the
// last task.
type CrewOutput struct {
	Raw         string
	TasksOutput []TaskOutput
}

// String returns the final raw output.
func (o *CrewOutput) String() string {
	if o == nil {
		return ""
	}
	return o.Raw
}

// Summary returns the output of the first task.
func (o *CrewOutput) Summary() (string, error) {
	if o == nil || len(o.TasksOutput) == 0 {
		return "", ErrNoTaskOutput
	}
	return o.TasksOutput[0].Raw, nil
}

// Crew runs its tasks sequentially, feeding each task the outputs of the
// ones before it.
type Crew struct {
	Agents []*Agent
	Tasks  []Task
}

// Kickoff runs every task in order. It stops at the first failing task
// and returns the outputs gathered so far along with the error.
func (c *Crew) Kickoff(ctx context.Context) (*CrewOutput, error) {
	if len(c.Agents) == 0 {
		return nil, ErrNoAgents
	}
	if len(c.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	out := &CrewOutput{TasksOutput: make([]TaskOutput, 0, len(c.Tasks))}
	var previous []string

	for i, task := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		a := task.Agent
		if a == nil {
			a = c.Agents[0]
		}

		result, err := a.Execute(ctx, task, strings.Join(previous, "\n\n"))
		if err != nil {
			return out, fmt.Errorf("task %d: %w", i+1, err)
		}

		out.TasksOutput = append(out.TasksOutput, result)
		out.Raw = result.Raw
		previous = append(previous, result.Raw)
	}

	return out, nil
}
