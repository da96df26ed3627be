package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// ConfirmRequest describes the remote tool call awaiting user approval.
type ConfirmRequest struct {
	Server     string
	Tool       string
	ToolCallID string
	Arguments  json.RawMessage
}

// ConfirmAnswer is the user's choice at the approval prompt.
type ConfirmAnswer int

const (
	AnswerDeny ConfirmAnswer = iota
	AnswerAllowOnce
	AnswerAllowAlways
)

// Confirmer asks the user to approve a prompted tool call. Implementations
// are interactive; a nil Confirmer means the run has no way to ask.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (ConfirmAnswer, error)
}

// SessionApprovals remembers allow-always answers for the life of the
// process. It never persists.
type SessionApprovals struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
}

func NewSessionApprovals() *SessionApprovals {
	return &SessionApprovals{allowed: make(map[string]struct{})}
}

// Allow records an allow-always answer for server:tool.
func (s *SessionApprovals) Allow(server, tool string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[QualifiedName(server, tool)] = struct{}{}
}

// Allowed reports whether server:tool was approved for the session.
func (s *SessionApprovals) Allowed(server, tool string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[QualifiedName(server, tool)]
	return ok
}

// Gate is the single pre-execution check for remote tool calls. It combines
// the pure policy, the session's allow-always memory, and the interactive
// confirmer. The confirmer is consulted at most once per call and only when
// the policy answers prompt.
type Gate struct {
	policy    *Policy
	session   *SessionApprovals
	confirmer Confirmer
	logger    *slog.Logger
}

func NewGate(policy *Policy, confirmer Confirmer, logger *slog.Logger) *Gate {
	if policy == nil {
		policy = NewPolicy(PolicyConfig{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		policy:    policy,
		session:   NewSessionApprovals(),
		confirmer: confirmer,
		logger:    logger.With("component", "security_gate"),
	}
}

// Policy exposes the underlying policy, mainly for timeout lookups.
func (g *Gate) Policy() *Policy {
	return g.policy
}

// Authorize decides whether the call may execute. It returns the effective
// decision together with nil for allowed calls, ToolBlockedError for
// denylisted calls, and ToolDeniedError for refused or unanswerable prompts.
// A cancelled prompt propagates the context error instead.
func (g *Gate) Authorize(ctx context.Context, req ConfirmRequest) (Decision, error) {
	decision := g.policy.Evaluate(req.Tool, req.Server, req.Arguments)
	switch decision {
	case DecisionDeny:
		return DecisionDeny, &ToolBlockedError{Server: req.Server, Tool: req.Tool}
	case DecisionAllow:
		return DecisionAllow, nil
	}

	if g.session.Allowed(req.Server, req.Tool) {
		return DecisionAllow, nil
	}

	if g.confirmer == nil {
		return DecisionDeny, &ToolDeniedError{
			Server: req.Server,
			Tool:   req.Tool,
			Reason: "approval required but no interactive prompt is available",
		}
	}

	answer, err := g.confirmer.Confirm(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return DecisionDeny, ctx.Err()
		}
		g.logger.Warn("approval prompt failed", "server", req.Server, "tool", req.Tool, "error", err)
		return DecisionDeny, &ToolDeniedError{
			Server: req.Server,
			Tool:   req.Tool,
			Reason: "approval prompt failed",
		}
	}

	switch answer {
	case AnswerAllowAlways:
		g.session.Allow(req.Server, req.Tool)
		g.logger.Debug("tool approved for session", "server", req.Server, "tool", req.Tool)
		return DecisionAllow, nil
	case AnswerAllowOnce:
		return DecisionAllow, nil
	default:
		return DecisionDeny, &ToolDeniedError{
			Server: req.Server,
			Tool:   req.Tool,
			Reason: "denied at approval prompt",
		}
	}
}
