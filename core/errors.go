package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a malformed interaction, task or tool input. It is
// always raised before anything is committed: a failing validation leaves the
// arena, the stacks and the store untouched.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// PermissionError reports a shared-state access outside the caller's allowed
// namespace set. The blackboard is left unchanged.
type PermissionError struct {
	AgentID   string
	Namespace string
	Op        string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: agent %q may not %s namespace %q", e.AgentID, e.Op, e.Namespace)
}

// ReplayError reports a corrupted persisted stream. It is fatal: resume is
// aborted rather than continued from inconsistent state.
type ReplayError struct {
	RecordID int64
	Reason   string
	Err      error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("replay error at record %d: %s: %v", e.RecordID, e.Reason, e.Err)
	}
	return fmt.Sprintf("replay error at record %d: %s", e.RecordID, e.Reason)
}

// Unwrap exposes the wrapped cause.
func (e *ReplayError) Unwrap() error { return e.Err }

// BlockedAgent describes one agent that cannot make progress, for stuck and
// cancellation reports.
type BlockedAgent struct {
	AgentID string
	Kind    Kind   // tail kind that blocks the agent (AskHuman or Waiting)
	Detail  string // question text or wait condition description
}

// StuckSessionError reports a session where no agent can be advanced yet
// unresolved suspensions remain. It is surfaced to the operator, never
// swallowed.
type StuckSessionError struct {
	SessionID string
	Blocked   []BlockedAgent
}

// Error implements the error interface.
func (e *StuckSessionError) Error() string {
	parts := make([]string, len(e.Blocked))
	for i, b := range e.Blocked {
		parts[i] = fmt.Sprintf("%s blocked on %s (%s)", b.AgentID, b.Kind, b.Detail)
	}
	return fmt.Sprintf("session %s stuck: %s", e.SessionID, strings.Join(parts, "; "))
}

// CancelledError reports a terminated session. Outstanding Waiting
// interactions are left unresolved but listed explicitly; they are never
// silently finalized as success.
type CancelledError struct {
	SessionID string
	Waiting   []BlockedAgent
	Err       error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("session %s cancelled with %d unresolved suspension(s): %v", e.SessionID, len(e.Waiting), e.Err)
}

// Unwrap exposes the context cancellation cause.
func (e *CancelledError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPermission reports whether err is (or wraps) a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
