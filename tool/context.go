package tool

import (
	"github.com/loomlabs/loom/artifact"
	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/logging"
)

// Delegation is a tool's request to hand a task to a child agent. The
// session resolves it after the calling agent's step completes.
type Delegation struct {
	Config string
	Task   core.TaskSpec
}

// ForkRequest is a tool's request to fork the calling agent's stack into an
// independent branch agent under a new branch tag.
type ForkRequest struct {
	Branch      string
	Instruction string
}

// Actions accumulates the flow-control side effects a tool requested during
// one invocation.
type Actions struct {
	Delegation *Delegation
	Fork       *ForkRequest
}

// Context carries the per-invocation capabilities handed to a tool: identity
// of the calling agent, access-checked blackboard, the artifact registry and
// flow-control action recording. One Context serves exactly one invocation
// and is not shared across goroutines.
type Context struct {
	AgentID       string
	CallID        string
	InteractionID int64 // id of the ToolCall interaction being served
	Board         *core.Blackboard
	ACL           core.NamespaceSet
	Artifacts     *artifact.Registry
	Log           logging.Logger

	actions Actions
}

// Logger returns the invocation logger, falling back to a no-op.
func (c *Context) Logger() logging.Logger {
	if c.Log == nil {
		return logging.NoOpLogger{}
	}
	return c.Log
}

// Delegate records a delegation request for the session to resolve.
func (c *Context) Delegate(config string, task core.TaskSpec) {
	c.actions.Delegation = &Delegation{Config: config, Task: task}
}

// Fork records a branch-fork request for the session to resolve.
func (c *Context) Fork(branch, instruction string) {
	c.actions.Fork = &ForkRequest{Branch: branch, Instruction: instruction}
}

// Actions returns the accumulated flow-control requests.
func (c *Context) Actions() Actions {
	return c.actions
}

// GetState reads a blackboard key under the caller's namespace grants.
func (c *Context) GetState(namespace, key string) (any, bool, error) {
	return c.Board.Get(c.AgentID, c.ACL, namespace, key)
}

// SetState writes a blackboard key under the caller's namespace grants.
func (c *Context) SetState(namespace, key string, value any) error {
	return c.Board.Set(c.AgentID, c.ACL, namespace, key, value)
}

// StateKeys lists the keys of a namespace under the caller's grants.
func (c *Context) StateKeys(namespace string) ([]string, error) {
	return c.Board.Keys(c.AgentID, c.ACL, namespace)
}

// SaveArtifact creates a long-term memory record linked to the calling
// interaction.
func (c *Context) SaveArtifact(artifactType, content string) (string, error) {
	return c.Artifacts.Create(c.AgentID, artifactType, content, c.InteractionID)
}
