package security

import (
	"encoding/json"
	"strings"
	"time"
)

// Decision classifies what happens to a remote tool call before execution.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionPrompt Decision = "prompt"
	DecisionDeny   Decision = "deny"
)

// DefaultToolTimeout bounds a remote tool call when the server has no
// configured override.
const DefaultToolTimeout = 30 * time.Second

// PolicyConfig is the user-authored security policy for remote tools.
// Patterns match on "server:tool" and support "server:*", bare tool names,
// "*", and prefix*/*suffix globs.
type PolicyConfig struct {
	DefaultDecision Decision                 `json:"default_decision"`
	Allowlist       []string                 `json:"allowlist"`
	Denylist        []string                 `json:"denylist"`
	DefaultTimeout  time.Duration            `json:"default_timeout"`
	ServerTimeouts  map[string]time.Duration `json:"server_timeouts"`
}

// Policy evaluates remote tool calls against allow and deny lists. Evaluate
// is pure: it reads no clock, performs no I/O, and mutates nothing, so the
// same call always classifies the same way.
type Policy struct {
	defaultDecision Decision
	allowlist       []string
	denylist        []string
	defaultTimeout  time.Duration
	serverTimeouts  map[string]time.Duration
}

// NewPolicy normalizes config into an immutable policy. An unset default
// decision falls back to prompt.
func NewPolicy(config PolicyConfig) *Policy {
	defaultDecision := config.DefaultDecision
	switch defaultDecision {
	case DecisionAllow, DecisionPrompt, DecisionDeny:
	default:
		defaultDecision = DecisionPrompt
	}

	defaultTimeout := config.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultToolTimeout
	}

	serverTimeouts := make(map[string]time.Duration, len(config.ServerTimeouts))
	for server, timeout := range config.ServerTimeouts {
		if timeout > 0 {
			serverTimeouts[server] = timeout
		}
	}

	return &Policy{
		defaultDecision: defaultDecision,
		allowlist:       append([]string(nil), config.Allowlist...),
		denylist:        append([]string(nil), config.Denylist...),
		defaultTimeout:  defaultTimeout,
		serverTimeouts:  serverTimeouts,
	}
}

// Evaluate classifies one remote tool call. The denylist wins over the
// allowlist; anything matched by neither takes the policy default. args is
// carried for rules that inspect payloads; the list rules ignore it.
func (p *Policy) Evaluate(toolName, serverName string, args json.RawMessage) Decision {
	target := QualifiedName(serverName, toolName)
	if matchesPattern(p.denylist, target) {
		return DecisionDeny
	}
	if matchesPattern(p.allowlist, target) {
		return DecisionAllow
	}
	return p.defaultDecision
}

// TimeoutFor returns the execution budget for calls to the named server.
func (p *Policy) TimeoutFor(serverName string) time.Duration {
	if timeout, ok := p.serverTimeouts[serverName]; ok {
		return timeout
	}
	return p.defaultTimeout
}

// matchesPattern checks target ("server:tool") against each pattern, also
// matching patterns written against the bare tool name.
func matchesPattern(patterns []string, target string) bool {
	toolOnly := target
	if idx := strings.IndexByte(target, ':'); idx >= 0 {
		toolOnly = target[idx+1:]
	}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if pattern == "*" {
			return true
		}
		if matchOne(pattern, target) || matchOne(pattern, toolOnly) {
			return true
		}
	}
	return false
}

func matchOne(pattern, value string) bool {
	if pattern == value {
		return true
	}
	if len(pattern) > 1 && strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	}
	if len(pattern) > 1 && strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(value, pattern[1:])
	}
	return false
}
