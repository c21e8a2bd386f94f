package core

import "fmt"

// FinishType classifies how a task ended.
type FinishType string

// Finish types for TaskResult.
const (
	FinishSuccess FinishType = "success"
	FinishFailure FinishType = "failure"
)

// TaskSpec names a task together with its bound parameters. It is used when
// spawning agents and when delegating work to a child agent.
type TaskSpec struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// TaskDefinition opens an agent's history: the task it was created to solve.
type TaskDefinition struct {
	Task        string         `json:"task"`
	Description string         `json:"description,omitempty"`
	Prompt      string         `json:"prompt"`
	Params      map[string]any `json:"params,omitempty"`
}

// Kind implements Payload.
func (TaskDefinition) Kind() Kind { return KindTaskDefinition }

// Validate implements Payload.
func (p TaskDefinition) Validate() error {
	if p.Task == "" {
		return &ValidationError{Field: "task", Message: "task name is required"}
	}
	if p.Prompt == "" {
		return &ValidationError{Field: "prompt", Message: "prompt text is required"}
	}
	return nil
}

// AskOracle records the prompt sent to the oracle, including the rendered
// text and the template inputs so the exchange can be audited and replayed.
type AskOracle struct {
	PromptType string         `json:"prompt_type"`
	Template   string         `json:"template,omitempty"`
	Rendered   string         `json:"rendered"`
	ToolUseID  string         `json:"tool_use_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

// Kind implements Payload.
func (AskOracle) Kind() Kind { return KindAskOracle }

// Validate implements Payload.
func (p AskOracle) Validate() error {
	if p.Rendered == "" {
		return &ValidationError{Field: "rendered", Message: "rendered prompt is required"}
	}
	return nil
}

// OracleToolCall is the tool invocation surfaced inside an oracle response.
type OracleToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// OracleResponse captures what the oracle answered. Exhausted retries are
// recorded here with IsError set rather than raised, so the agent's own
// subsequent reasoning can observe and react to the failure.
type OracleResponse struct {
	Content      string          `json:"content,omitempty"`
	Structured   map[string]any  `json:"structured,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	ToolCall     *OracleToolCall `json:"tool_call,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Kind implements Payload.
func (OracleResponse) Kind() Kind { return KindOracleResponse }

// Validate implements Payload.
func (p OracleResponse) Validate() error {
	if p.IsError && p.ErrorMessage == "" {
		return &ValidationError{Field: "error_message", Message: "error responses must carry a message"}
	}
	if !p.IsError && p.Content == "" && p.ToolCall == nil && p.Structured == nil {
		return &ValidationError{Field: "content", Message: "response must carry content, structure or a tool call"}
	}
	if p.ToolCall != nil && p.ToolCall.Name == "" {
		return &ValidationError{Field: "tool_call.name", Message: "tool call must name a tool"}
	}
	return nil
}

// ToolCall requests execution of a named tool with parsed arguments.
type ToolCall struct {
	Tool   string         `json:"tool"`
	CallID string         `json:"call_id"`
	Args   map[string]any `json:"args,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Kind implements Payload.
func (ToolCall) Kind() Kind { return KindToolCall }

// Validate implements Payload.
func (p ToolCall) Validate() error {
	if p.Tool == "" {
		return &ValidationError{Field: "tool", Message: "tool name is required"}
	}
	if p.CallID == "" {
		return &ValidationError{Field: "call_id", Message: "call id is required"}
	}
	return nil
}

// ToolResult records the outcome of a tool call. A populated NextTool forms a
// deterministic pipeline: the step loop pushes the chained ToolCall without
// an intervening oracle round-trip. AskHuman carries a nested human request
// that is pushed right after the result. NextTool and AskHuman are mutually
// exclusive.
type ToolResult struct {
	Tool         string         `json:"tool"`
	CallID       string         `json:"call_id"`
	Result       any            `json:"result,omitempty"`
	IsError      bool           `json:"is_error,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	NextTool     string         `json:"next_tool,omitempty"`
	NextToolArgs map[string]any `json:"next_tool_args,omitempty"`
	AskHuman     *AskHuman      `json:"ask_human,omitempty"`
}

// Kind implements Payload.
func (ToolResult) Kind() Kind { return KindToolResult }

// Validate implements Payload.
func (p ToolResult) Validate() error {
	if p.Tool == "" {
		return &ValidationError{Field: "tool", Message: "tool name is required"}
	}
	if p.CallID == "" {
		return &ValidationError{Field: "call_id", Message: "call id is required"}
	}
	if p.NextTool != "" && p.AskHuman != nil {
		return &ValidationError{Field: "next_tool", Message: "next_tool and ask_human are mutually exclusive"}
	}
	if p.AskHuman != nil {
		return p.AskHuman.Validate()
	}
	return nil
}

// AgentCall records that a child agent was spawned to handle a delegated task.
type AgentCall struct {
	Config  string   `json:"config"`
	Task    TaskSpec `json:"task"`
	ChildID string   `json:"child_id"`
}

// Kind implements Payload.
func (AgentCall) Kind() Kind { return KindAgentCall }

// Validate implements Payload.
func (p AgentCall) Validate() error {
	if p.Config == "" {
		return &ValidationError{Field: "config", Message: "child config name is required"}
	}
	if p.Task.Name == "" {
		return &ValidationError{Field: "task.name", Message: "child task name is required"}
	}
	if p.ChildID == "" {
		return &ValidationError{Field: "child_id", Message: "child agent id is required"}
	}
	return nil
}

// AgentResult resolves a Waiting: it references the TaskResult interaction of
// the finished child.
type AgentResult struct {
	ChildID  string `json:"child_id"`
	ResultID int64  `json:"result_id"`
}

// Kind implements Payload.
func (AgentResult) Kind() Kind { return KindAgentResult }

// Validate implements Payload.
func (p AgentResult) Validate() error {
	if p.ChildID == "" {
		return &ValidationError{Field: "child_id", Message: "child agent id is required"}
	}
	if p.ResultID <= 0 {
		return &ValidationError{Field: "result_id", Message: "result interaction id is required"}
	}
	return nil
}

// AskHuman suspends the agent until a HumanResponse is externally appended.
type AskHuman struct {
	Question string `json:"question"`
}

// Kind implements Payload.
func (AskHuman) Kind() Kind { return KindAskHuman }

// Validate implements Payload.
func (p AskHuman) Validate() error {
	if p.Question == "" {
		return &ValidationError{Field: "question", Message: "question is required"}
	}
	return nil
}

// HumanResponse resumes an agent blocked on AskHuman.
type HumanResponse struct {
	Response string `json:"response"`
}

// Kind implements Payload.
func (HumanResponse) Kind() Kind { return KindHumanResponse }

// Validate implements Payload.
func (p HumanResponse) Validate() error {
	if p.Response == "" {
		return &ValidationError{Field: "response", Message: "response is required"}
	}
	return nil
}

// ExternalInput injects out-of-band input into an agent's history.
type ExternalInput struct {
	Source string `json:"source,omitempty"`
	Input  any    `json:"input"`
}

// Kind implements Payload.
func (ExternalInput) Kind() Kind { return KindExternalInput }

// Validate implements Payload.
func (p ExternalInput) Validate() error {
	if p.Input == nil {
		return &ValidationError{Field: "input", Message: "input is required"}
	}
	return nil
}

// WaitCondition names the evaluator that decides when a Waiting resolves,
// plus its parameters. The agent-result evaluator is built in; others are an
// extension point.
type WaitCondition struct {
	Evaluator string         `json:"evaluator"`
	Params    map[string]any `json:"params,omitempty"`
}

// EvaluatorAgentResult is the built-in wait evaluator used by delegation: the
// condition resolves when the child named in Params["child_id"] reaches a
// TaskResult.
const EvaluatorAgentResult = "agent_result"

// ChildID returns the child agent id for agent-result conditions.
func (c WaitCondition) ChildID() string {
	if c.Evaluator != EvaluatorAgentResult {
		return ""
	}
	id, _ := c.Params["child_id"].(string)
	return id
}

// Waiting is a persisted suspension marker. The agent cannot make progress
// past it; only the session resolves it (or reports it cancelled). A stack
// holds at most one unresolved Waiting, always at its tail.
type Waiting struct {
	Status     string        `json:"status"`
	Condition  WaitCondition `json:"condition"`
	ResumeHint string        `json:"resume_hint,omitempty"`
}

// Kind implements Payload.
func (Waiting) Kind() Kind { return KindWaiting }

// Validate implements Payload.
func (p Waiting) Validate() error {
	if p.Condition.Evaluator == "" {
		return &ValidationError{Field: "condition.evaluator", Message: "wait evaluator is required"}
	}
	return nil
}

// TaskResult ends a task with a finish type, a summary and the raw result.
type TaskResult struct {
	FinishType FinishType `json:"finish_type"`
	Summary    string     `json:"summary"`
	Result     any        `json:"result,omitempty"`
}

// Kind implements Payload.
func (TaskResult) Kind() Kind { return KindTaskResult }

// Validate implements Payload.
func (p TaskResult) Validate() error {
	if p.FinishType != FinishSuccess && p.FinishType != FinishFailure {
		return &ValidationError{Field: "finish_type", Message: "finish_type must be success or failure", Value: string(p.FinishType)}
	}
	return nil
}

// TaskChain bridges two tasks in a declared task_sequence: it records which
// task comes next, the full sequence, the position reached and the previous
// task's result.
type TaskChain struct {
	NextTask       string   `json:"next_task"`
	TaskSequence   []string `json:"task_sequence"`
	Index          int      `json:"index"`
	ConfigOverride string   `json:"config_override,omitempty"`
	PrevResult     any      `json:"prev_result,omitempty"`
}

// Kind implements Payload.
func (TaskChain) Kind() Kind { return KindTaskChain }

// Validate implements Payload.
func (p TaskChain) Validate() error {
	if p.NextTask == "" {
		return &ValidationError{Field: "next_task", Message: "next task name is required"}
	}
	if p.Index < 0 || p.Index >= len(p.TaskSequence) {
		return &ValidationError{Field: "index", Message: "index out of sequence range", Value: p.Index}
	}
	return nil
}

// String renders a short human-readable tag for logs.
func (p ToolCall) String() string { return fmt.Sprintf("%s(%s)", p.Tool, p.CallID) }
