package session

import (
	"encoding/json"
	"fmt"

	"github.com/loomlabs/loom/agent"
	"github.com/loomlabs/loom/artifact"
	"github.com/loomlabs/loom/core"
)

// Restore rebuilds a session from its persisted record stream. The
// reconstruction is deterministic and idempotent: replaying the same stream
// always yields an equivalent arena, stacks, agents and artifacts, without
// re-journaling anything. A corrupted stream aborts with a ReplayError.
//
// Blackboard contents are not part of the persistence contract and start
// empty on a restored session.
func Restore(env *Environment, sessionID string) (*Session, error) {
	journal := core.NewJournal(env.store, sessionID)
	s := &Session{
		id:        sessionID,
		env:       env,
		journal:   journal,
		arena:     core.NewArena(),
		board:     core.NewBlackboard(),
		artifacts: artifact.NewRegistry(journal),
		logger:    env.logger,
		agents:    make(map[string]*agent.Agent),
	}

	sawSession := false
	agentRecs := make(map[string]core.AgentRecord)
	stackIDs := make(map[string][]int64)
	var agentOrder []string

	for rec, err := range env.store.List(core.Filter{SessionID: sessionID}) {
		if err != nil {
			return nil, &core.ReplayError{Reason: "listing records", Err: err}
		}
		switch rec.Kind {
		case core.RecordSession:
			if sawSession {
				return nil, replayErr(rec, "duplicate session record", nil)
			}
			sawSession = true

		case core.RecordAgent:
			var ar core.AgentRecord
			if err := json.Unmarshal(rec.Payload, &ar); err != nil {
				return nil, replayErr(rec, "undecodable agent record", err)
			}
			if _, dup := agentRecs[ar.AgentID]; dup {
				return nil, replayErr(rec, "duplicate agent "+ar.AgentID, nil)
			}
			agentRecs[ar.AgentID] = ar
			stackIDs[ar.AgentID] = append([]int64(nil), ar.PrefixIDs...)
			agentOrder = append(agentOrder, ar.AgentID)

		case core.RecordInteraction:
			var it core.Interaction
			if err := json.Unmarshal(rec.Payload, &it); err != nil {
				return nil, replayErr(rec, "undecodable interaction", err)
			}
			if _, known := agentRecs[rec.AgentID]; !known {
				return nil, replayErr(rec, "interaction for unknown agent "+rec.AgentID, nil)
			}
			if err := s.arena.Restore(it); err != nil {
				return nil, replayErr(rec, "arena restore", err)
			}
			stackIDs[rec.AgentID] = append(stackIDs[rec.AgentID], it.ID)

		case core.RecordArtifact:
			var a artifact.Artifact
			if err := json.Unmarshal(rec.Payload, &a); err != nil {
				return nil, replayErr(rec, "undecodable artifact", err)
			}
			s.artifacts.Restore(a)

		case core.RecordFeedback:
			var f core.FeedbackRecord
			if err := json.Unmarshal(rec.Payload, &f); err != nil {
				return nil, replayErr(rec, "undecodable feedback", err)
			}
			if err := s.artifacts.RestoreFeedback(f); err != nil {
				return nil, replayErr(rec, "feedback for unknown artifact", err)
			}

		default:
			return nil, replayErr(rec, fmt.Sprintf("unknown record kind %q", rec.Kind), nil)
		}
	}
	if !sawSession {
		return nil, &core.ReplayError{Reason: "no session record for " + sessionID}
	}

	for _, id := range agentOrder {
		ar := agentRecs[id]
		cfg, err := env.defs.Configs.MustGet(ar.Config, "config")
		if err != nil {
			return nil, &core.ReplayError{Reason: "agent " + id, Err: err}
		}
		task, err := env.defs.Tasks.MustGet(ar.Task, "task")
		if err != nil {
			return nil, &core.ReplayError{Reason: "agent " + id, Err: err}
		}
		ids := stackIDs[id]
		if len(ids) == 0 {
			// Creation record written but the opening push never landed:
			// nothing to resume.
			s.logger.Warn("skipping agent with empty stack", "agent_id", id)
			continue
		}
		stack := core.RestoreStack(id, ar.Branch, s.arena, journal, ids)
		s.register(agent.Resume(id, cfg, task, stack, s.deps()))
	}

	s.logger.Info("session restored", "session_id", sessionID,
		"agents", len(s.order), "interactions", s.arena.Len())
	return s, nil
}

func replayErr(rec core.Record, reason string, err error) *core.ReplayError {
	return &core.ReplayError{RecordID: rec.ID, Reason: reason, Err: err}
}
