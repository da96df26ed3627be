package dialog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skald-dev/skald/src/security"
	"github.com/skald-dev/skald/src/theme"
)

// maxArgumentPreview bounds how much of the tool arguments the approval box
// shows so a large payload cannot flood the terminal.
const maxArgumentPreview = 600

// ApprovalDialog asks the user to approve a tool invocation on the terminal.
// It implements security.Confirmer.
type ApprovalDialog struct {
	in  *bufio.Reader
	out io.Writer
}

// NewApprovalDialog returns a dialog reading answers from stdin and writing
// the prompt to stderr, keeping stdout free for assistant output.
func NewApprovalDialog() *ApprovalDialog {
	return &ApprovalDialog{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
	}
}

// NewApprovalDialogWithStreams builds a dialog over explicit streams.
func NewApprovalDialogWithStreams(in io.Reader, out io.Writer) *ApprovalDialog {
	return &ApprovalDialog{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm renders the approval box and blocks until the user answers or ctx
// is cancelled. EOF on the input stream is reported as an error so callers
// can treat a non-interactive session as a denial.
func (d *ApprovalDialog) Confirm(ctx context.Context, req security.ConfirmRequest) (security.ConfirmAnswer, error) {
	fmt.Fprintln(d.out, renderRequest(req))
	fmt.Fprint(d.out, promptLine())

	type readResult struct {
		line string
		err  error
	}
	answerCh := make(chan readResult, 1)
	go func() {
		line, err := d.in.ReadString('\n')
		answerCh <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(d.out)
		return security.AnswerDeny, ctx.Err()
	case res := <-answerCh:
		if res.err != nil && res.line == "" {
			return security.AnswerDeny, fmt.Errorf("read approval answer: %w", res.err)
		}
		return ParseAnswer(res.line), nil
	}
}

// ParseAnswer maps a typed answer line to a ConfirmAnswer. Anything that is
// not an explicit yes is a denial.
func ParseAnswer(line string) security.ConfirmAnswer {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return security.AnswerAllowOnce
	case "a", "always":
		return security.AnswerAllowAlways
	default:
		return security.AnswerDeny
	}
}

func renderRequest(req security.ConfirmRequest) string {
	title := lipgloss.NewStyle().Foreground(theme.CurrentTheme.Warning).Bold(true)
	label := lipgloss.NewStyle().Foreground(theme.CurrentTheme.TextMuted)
	value := lipgloss.NewStyle().Foreground(theme.CurrentTheme.Text)

	lines := []string{title.Render("Tool approval required")}
	lines = append(lines, label.Render("tool:   ")+value.Render(req.Tool))
	if req.Server != "" {
		lines = append(lines, label.Render("server: ")+value.Render(req.Server))
	}
	if args := formatArguments(req.Arguments); args != "" {
		lines = append(lines, label.Render("args:   ")+value.Render(args))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.CurrentTheme.Warning).
		Padding(0, 1)
	return box.Render(strings.Join(lines, "\n"))
}

func promptLine() string {
	muted := lipgloss.NewStyle().Foreground(theme.CurrentTheme.TextMuted)
	return muted.Render("[y] allow once  [a] always allow  [N] deny") + " > "
}

func formatArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	out := string(raw)
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err == nil {
		out = buf.String()
	}
	if len(out) > maxArgumentPreview {
		out = out[:maxArgumentPreview] + "..."
	}
	return out
}

var _ security.Confirmer = (*ApprovalDialog)(nil)
