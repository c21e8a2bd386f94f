// Package loom provides a high-level façade over the execution engine:
// durable, resumable sessions of tool-using reasoning agents. Most
// applications interact with this package by:
//  1. Loading declarative definitions (configs, tasks, templates) from YAML
//  2. Creating a Loom via New() (optionally overriding the in-memory store,
//     the tool set or the logger)
//  3. Running tasks with Run, or resuming an interrupted session with Resume
//
// The façade delegates scheduling to session.Session while keeping setup
// ergonomics concise. All defaults are safe for local development; durable
// deployments supply the SQLite store and a structured logger.
package loom

import (
	"context"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/logging"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/registry"
	"github.com/loomlabs/loom/session"
	"github.com/loomlabs/loom/tool"
)

// Options configures a Loom instance.
type Options struct {
	// Store holds the durable record stream. Defaults to in-memory.
	Store core.Store

	// Oracle is the completion collaborator. Required.
	Oracle oracle.Oracle

	// Tools overrides the builtin tool registry.
	Tools *tool.Registry

	// Logger defaults to no-op.
	Logger logging.Logger

	// HumanResponder answers interactive agents blocked on AskHuman.
	HumanResponder session.HumanResponder
}

// Loom aggregates the loaded definitions and shared collaborators.
type Loom struct {
	env *session.Environment
}

// New creates a Loom over the given definition set.
func New(defs *registry.Set, optFns ...func(o *Options)) (*Loom, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	var envOpts []session.Option
	if opts.Store != nil {
		envOpts = append(envOpts, session.WithStore(opts.Store))
	}
	if opts.Oracle != nil {
		envOpts = append(envOpts, session.WithOracle(opts.Oracle))
	}
	if opts.Tools != nil {
		envOpts = append(envOpts, session.WithTools(opts.Tools))
	}
	if opts.Logger != nil {
		envOpts = append(envOpts, session.WithLogger(opts.Logger))
	}
	if opts.HumanResponder != nil {
		envOpts = append(envOpts, session.WithHumanResponder(opts.HumanResponder))
	}

	env, err := session.NewEnvironment(defs, envOpts...)
	if err != nil {
		return nil, err
	}
	return &Loom{env: env}, nil
}

// Environment exposes the shared environment for advanced wiring.
func (l *Loom) Environment() *session.Environment { return l.env }

// NewSession creates an empty session for manual agent management.
func (l *Loom) NewSession() (*session.Session, error) {
	return session.New(l.env)
}

// Run spawns one agent for (config, task) and drives the session to
// quiescence, returning the session and the root agent's result.
func (l *Loom) Run(ctx context.Context, configName, taskName string, params map[string]any) (*session.Session, core.TaskResult, error) {
	sess, err := session.New(l.env)
	if err != nil {
		return nil, core.TaskResult{}, err
	}
	agentID, err := sess.Spawn(configName, taskName, params)
	if err != nil {
		return nil, core.TaskResult{}, err
	}
	if err := sess.Run(ctx); err != nil {
		return sess, core.TaskResult{}, err
	}
	return sess, sess.Results()[agentID], nil
}

// Resume reconstructs a persisted session from the store and drives it to
// quiescence.
func (l *Loom) Resume(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := session.Restore(l.env, sessionID)
	if err != nil {
		return nil, err
	}
	return sess, sess.Run(ctx)
}
