package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedConfirmer struct {
	answer ConfirmAnswer
	err    error
	calls  int
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmAnswer, error) {
	c.calls++
	if c.err != nil {
		return AnswerDeny, c.err
	}
	return c.answer, nil
}

func promptPolicy() *Policy {
	return NewPolicy(PolicyConfig{DefaultDecision: DecisionPrompt})
}

func TestAuthorizeAllowSkipsPrompt(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: AnswerDeny}
	gate := NewGate(NewPolicy(PolicyConfig{Allowlist: []string{"github:get_issue"}}), confirmer, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "get_issue"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Equal(t, 0, confirmer.calls)
}

func TestAuthorizeDenySkipsPrompt(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: AnswerAllowOnce}
	gate := NewGate(NewPolicy(PolicyConfig{Denylist: []string{"github:delete_repo"}}), confirmer, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "delete_repo"})
	assert.Equal(t, DecisionDeny, decision)
	assert.Equal(t, 0, confirmer.calls)

	var blocked *ToolBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "github", blocked.Server)
	assert.Equal(t, "delete_repo", blocked.Tool)
}

func TestAuthorizePromptConsultsConfirmerOnce(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: AnswerAllowOnce}
	gate := NewGate(promptPolicy(), confirmer, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "create_issue"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Equal(t, 1, confirmer.calls)

	// Allow-once does not stick: the next identical call prompts again.
	_, err = gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "create_issue"})
	require.NoError(t, err)
	assert.Equal(t, 2, confirmer.calls)
}

func TestAuthorizeAllowAlwaysSticksForSession(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: AnswerAllowAlways}
	gate := NewGate(promptPolicy(), confirmer, nil)

	req := ConfirmRequest{Server: "github", Tool: "create_issue"}
	decision, err := gate.Authorize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Equal(t, 1, confirmer.calls)

	for i := 0; i < 3; i++ {
		decision, err = gate.Authorize(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, DecisionAllow, decision)
	}
	assert.Equal(t, 1, confirmer.calls)

	// A different tool on the same server still prompts.
	_, _ = gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "close_issue"})
	assert.Equal(t, 2, confirmer.calls)
}

func TestAuthorizeUserDenial(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: AnswerDeny}
	gate := NewGate(promptPolicy(), confirmer, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "create_issue"})
	assert.Equal(t, DecisionDeny, decision)

	var denied *ToolDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "create_issue", denied.Tool)
}

func TestAuthorizeNilConfirmerMapsPromptToDeny(t *testing.T) {
	gate := NewGate(promptPolicy(), nil, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "create_issue"})
	assert.Equal(t, DecisionDeny, decision)

	var denied *ToolDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestAuthorizeCancelledPromptPropagatesContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	confirmer := &scriptedConfirmer{err: context.Canceled}
	gate := NewGate(promptPolicy(), confirmer, nil)

	cancel()
	_, err := gate.Authorize(ctx, ConfirmRequest{Server: "github", Tool: "create_issue"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAuthorizePromptFailureDenies(t *testing.T) {
	confirmer := &scriptedConfirmer{err: errors.New("tty unavailable")}
	gate := NewGate(promptPolicy(), confirmer, nil)

	decision, err := gate.Authorize(context.Background(), ConfirmRequest{Server: "github", Tool: "create_issue"})
	assert.Equal(t, DecisionDeny, decision)

	var denied *ToolDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestSessionApprovals(t *testing.T) {
	session := NewSessionApprovals()
	assert.False(t, session.Allowed("github", "get_issue"))

	session.Allow("github", "get_issue")
	assert.True(t, session.Allowed("github", "get_issue"))
	assert.False(t, session.Allowed("github", "set_issue"))
	assert.False(t, session.Allowed("jira", "get_issue"))
}
