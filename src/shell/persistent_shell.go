package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// PersistentShell wraps a long-lived bash process. Commands run inside the
// same process, so the working directory, environment variables, and other
// shell state carry over from one command to the next.
type PersistentShell struct {
	mu sync.Mutex

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	stdoutPipe io.ReadCloser
	stderrPipe io.ReadCloser

	// stderr is drained by a background goroutine so the pipe never fills
	// and blocks the shell.
	errMu  sync.Mutex
	errBuf strings.Builder

	currentDir  string
	originalDir string
	sessionID   string
	logger      *slog.Logger
	closed      bool
}

// ShellResult holds the outcome of one command execution.
type ShellResult struct {
	Output      string
	Error       string
	ExitCode    int
	WorkingDir  string
	CommandLine string
}

// NewPersistentShell starts a bash process with prompts and history disabled.
// The directory the process starts in becomes the session's original
// directory, which commands are not allowed to escape.
func NewPersistentShell(logger *slog.Logger) (*PersistentShell, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cmd := exec.Command("bash", "--norc", "--noprofile", "-s")
	cmd.Dir = workDir
	// Blank out anything that could inject prompt text into the output stream.
	cmd.Env = append(os.Environ(),
		"PS1=",
		"PS2=",
		"PS4=",
		"PROMPT_COMMAND=",
		"TERM=dumb",
		"BASH_ENV=",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		stderrPipe.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	ps := &PersistentShell{
		cmd:         cmd,
		stdin:       stdin,
		stdout:      bufio.NewReader(stdoutPipe),
		stdoutPipe:  stdoutPipe,
		stderrPipe:  stderrPipe,
		currentDir:  workDir,
		originalDir: workDir,
		sessionID:   fmt.Sprintf("shell_%d", cmd.Process.Pid),
		logger:      logger,
	}

	ps.logger.Info("starting persistent shell session", "session_id", ps.sessionID, "working_dir", workDir)

	go ps.drainStderr()

	// Stable locale, no history, error on unset variables.
	setup := strings.Join([]string{
		"set -u",
		"export LC_ALL=C",
		"export LANG=C",
		"unset HISTFILE",
		"set +o history",
	}, "\n") + "\n"
	if _, err := ps.stdin.Write([]byte(setup)); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to initialize shell: %w", err)
	}

	return ps, nil
}

// drainStderr accumulates stderr output until the pipe closes.
func (ps *PersistentShell) drainStderr() {
	reader := bufio.NewReader(ps.stderrPipe)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			ps.errMu.Lock()
			ps.errBuf.WriteString(line)
			ps.errMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// takeStderr returns everything stderr produced since the last call.
func (ps *PersistentShell) takeStderr() string {
	ps.errMu.Lock()
	defer ps.errMu.Unlock()
	out := ps.errBuf.String()
	ps.errBuf.Reset()
	return out
}

// procAlive checks whether the bash process still responds to signal 0.
// The caller must hold ps.mu.
func (ps *PersistentShell) procAlive() error {
	if ps.cmd.Process == nil {
		return nil
	}
	if err := ps.cmd.Process.Signal(syscall.Signal(0)); err != nil {
		return fmt.Errorf("shell process has died: %w", err)
	}
	return nil
}

// Alive reports whether the session can still accept commands.
func (ps *PersistentShell) Alive() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return !ps.closed && ps.procAlive() == nil
}

// ExecuteCommand runs a command in the shell and blocks until the shell
// reports its exit status or the timeout elapses. A zero timeout defaults to
// 30 seconds. On timeout or cancellation the session is torn down, because
// the still-running command would otherwise corrupt the output stream of
// whatever runs next.
func (ps *PersistentShell) ExecuteCommand(ctx context.Context, command string, timeout time.Duration) (*ShellResult, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, fmt.Errorf("shell session is closed")
	}
	if err := ps.procAlive(); err != nil {
		ps.logger.Error("shell process is dead", "error", err)
		ps.closed = true
		return nil, err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ps.logger.Info("executing command", "command", command, "session_id", ps.sessionID)

	// The sentinel line marks the end of the command output and carries the
	// exit status.
	sentinel := fmt.Sprintf("__SKALD_DONE_%d__", time.Now().UnixNano())
	if _, err := ps.stdin.Write([]byte(fmt.Sprintf("%s\necho \"%s:$?\"\n", command, sentinel))); err != nil {
		ps.logger.Error("failed to write command", "error", err)
		ps.closed = true
		return nil, fmt.Errorf("failed to write command: %w", err)
	}

	resultCh := make(chan *ShellResult, 1)
	errCh := make(chan error, 1)

	go func() {
		var output strings.Builder
		exitCode := 0

		for {
			select {
			case <-ctx.Done():
				errCh <- fmt.Errorf("timeout reading output")
				return
			default:
			}

			line, err := ps.stdout.ReadString('\n')
			if err != nil {
				errCh <- fmt.Errorf("error reading stdout: %w", err)
				return
			}

			// The sentinel may share a line with output that lacked a
			// trailing newline.
			if idx := strings.Index(line, sentinel); idx >= 0 {
				if head := line[:idx]; head != "" {
					output.WriteString(head)
				}
				tail := strings.TrimSpace(line[idx+len(sentinel):])
				if code, convErr := strconv.Atoi(strings.TrimPrefix(tail, ":")); convErr == nil {
					exitCode = code
				}
				break
			}
			output.WriteString(line)
		}

		resultCh <- &ShellResult{
			Output:      strings.TrimSuffix(output.String(), "\n"),
			ExitCode:    exitCode,
			CommandLine: command,
		}
	}()

	select {
	case result := <-resultCh:
		if err := ps.refreshWorkingDir(ctx); err != nil {
			ps.logger.Warn("failed to update working directory", "error", err)
		}
		result.WorkingDir = ps.currentDir
		// Snapshot stderr after the pwd round trip so late writes from the
		// command are included.
		result.Error = strings.TrimSuffix(ps.takeStderr(), "\n")
		ps.logger.Info("command completed", "command", command, "exit_code", result.ExitCode, "working_dir", ps.currentDir)
		return result, nil

	case err := <-errCh:
		ps.logger.Error("command execution error", "command", command, "error", err)
		if ctx.Err() != nil {
			ps.closeLocked(true)
		}
		return nil, err

	case <-ctx.Done():
		ps.logger.Error("command aborted", "command", command, "timeout", timeout, "cause", ctx.Err())
		ps.closeLocked(true)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("command timed out after %v", timeout)
	}
}

// refreshWorkingDir asks the shell for its current directory and updates the
// cached value. The caller must hold ps.mu.
func (ps *PersistentShell) refreshWorkingDir(ctx context.Context) error {
	if ps.closed {
		return fmt.Errorf("shell session is closed")
	}

	marker := fmt.Sprintf("__SKALD_PWD_%d__", time.Now().UnixNano())
	if _, err := ps.stdin.Write([]byte(fmt.Sprintf("pwd\necho '%s'\n", marker))); err != nil {
		return fmt.Errorf("failed to write pwd command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var pwd string
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout getting working directory")
		default:
		}

		line, err := ps.stdout.ReadString('\n')
		if err != nil {
			return fmt.Errorf("error reading pwd: %w", err)
		}

		switch line = strings.TrimSpace(line); {
		case line == marker:
			if pwd == "" {
				return fmt.Errorf("pwd produced no output")
			}
			if pwd != ps.currentDir {
				ps.logger.Info("working directory changed", "old", ps.currentDir, "new", pwd)
				ps.currentDir = pwd
			}
			return nil
		case line != "":
			pwd = line
		}
	}
}

// GetCurrentDirectory returns the cached current working directory.
func (ps *PersistentShell) GetCurrentDirectory() string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.currentDir
}

// GetWorkingDirectory queries the shell for its actual current directory.
func (ps *PersistentShell) GetWorkingDirectory(ctx context.Context) (string, error) {
	if err := ps.UpdateWorkingDirectory(ctx); err != nil {
		return "", err
	}
	return ps.GetCurrentDirectory(), nil
}

// UpdateWorkingDirectory queries the shell for its current directory and
// refreshes the cached value.
func (ps *PersistentShell) UpdateWorkingDirectory(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.refreshWorkingDir(ctx)
}

// GetOriginalDirectory returns the directory the session was created in.
func (ps *PersistentShell) GetOriginalDirectory() string {
	return ps.originalDir
}

// IsPathWithinOriginal reports whether the current directory is still inside
// the original directory.
func (ps *PersistentShell) IsPathWithinOriginal() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	abs, err := filepath.Abs(ps.currentDir)
	if err != nil {
		return false
	}
	origAbs, err := filepath.Abs(ps.originalDir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(origAbs, abs)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// ResetToOriginalDirectory changes the shell back to its original directory.
func (ps *PersistentShell) ResetToOriginalDirectory(ctx context.Context) error {
	ps.logger.Warn("resetting to original directory", "current", ps.GetCurrentDirectory(), "original", ps.originalDir)

	result, err := ps.ExecuteCommand(ctx, fmt.Sprintf("cd %q", ps.originalDir), 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to reset to original directory: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("cd command failed: %s", result.Error)
	}
	return nil
}

// dangerousPatterns are substrings that disqualify a command outright.
var dangerousPatterns = []string{
	// filesystem destruction
	"rm -rf", "rm -r", "mkfs", "fdisk", "dd if=", ">/dev/",
	// privilege escalation and user management
	"sudo", "su ", "chmod 777", "chown", "passwd", "adduser", "deluser",
	"userdel", "usermod", "groupadd", "groupdel", "visudo",
	// network access
	"curl", "wget", "nc ", "netcat", "ssh", "scp", "rsync", "ftp",
	"telnet", "rsh", "rcp",
	// process and system control
	"kill -9", "killall", "pkill", "systemctl", "service", "init",
	"mount", "umount", "reboot", "shutdown", "halt", "poweroff",
	// scheduling
	"crontab", "at ", "batch",
}

// ValidateCommand rejects commands that are empty, try to leave the project
// directory, or match the dangerous-command list.
func (ps *PersistentShell) ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("empty command not allowed")
	}

	if err := ps.checkChangeDir(command); err != nil {
		return err
	}

	lower := strings.ToLower(command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("dangerous command not allowed: %s", command)
		}
	}
	return nil
}

// checkChangeDir blocks cd to absolute paths outside the original directory.
func (ps *PersistentShell) checkChangeDir(command string) error {
	parts := strings.Fields(command)
	for i, part := range parts {
		if part != "cd" || i+1 >= len(parts) {
			continue
		}
		target := parts[i+1]
		if target == "/" {
			return fmt.Errorf("cannot navigate to root directory")
		}
		if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, ps.originalDir) {
			return fmt.Errorf("cannot navigate to absolute path outside project directory: %s", target)
		}
	}
	return nil
}

// Close asks the shell to exit and releases its pipes.
func (ps *PersistentShell) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.closeLocked(false)
}

// closeLocked shuts the session down. With force set the process is killed
// instead of being asked to exit, for when a command is still running. The
// caller must hold ps.mu.
func (ps *PersistentShell) closeLocked(force bool) error {
	if ps.closed {
		return nil
	}

	ps.logger.Info("closing persistent shell session", "session_id", ps.sessionID, "forced", force)
	ps.closed = true

	if ps.stdin != nil {
		if !force {
			ps.stdin.Write([]byte("exit\n"))
		}
		ps.stdin.Close()
	}
	if force && ps.cmd != nil && ps.cmd.Process != nil {
		ps.cmd.Process.Kill()
	}
	if ps.stdoutPipe != nil {
		ps.stdoutPipe.Close()
	}
	if ps.stderrPipe != nil {
		ps.stderrPipe.Close()
	}
	if ps.cmd != nil && ps.cmd.Process != nil {
		ps.cmd.Wait()
	}
	return nil
}

// GetSessionID returns the unique session identifier.
func (ps *PersistentShell) GetSessionID() string {
	return ps.sessionID
}
