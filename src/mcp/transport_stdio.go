package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

const maxMessageSize = 1024 * 1024

// StdioTransport speaks newline-delimited JSON-RPC over the stdin/stdout of
// a child process.
type StdioTransport struct {
	cmd     *exec.Cmd
	logger  *slog.Logger
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	scanner *bufio.Scanner
	encoder *json.Encoder

	mu     sync.Mutex
	closed atomic.Bool

	stderrBuf []byte
	stderrMu  sync.Mutex
}

// NewStdioTransport launches the server process and wires its pipes.
func NewStdioTransport(config ServerConfig, logger *slog.Logger) (*StdioTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(config.Command, config.Args...)
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", config.Command, err)
	}

	t := &StdioTransport{
		cmd:       cmd,
		logger:    logger,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		scanner:   bufio.NewScanner(stdout),
		encoder:   json.NewEncoder(stdin),
		stderrBuf: make([]byte, 0, 4096),
	}
	t.scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	go t.readStderr()

	return t, nil
}

// readStderr drains the child's stderr so it cannot block, keeping a copy
// for diagnostics.
func (t *StdioTransport) readStderr() {
	buf := make([]byte, 4096)
	for {
		n, err := t.stderr.Read(buf)
		if n > 0 {
			t.stderrMu.Lock()
			t.stderrBuf = append(t.stderrBuf, buf[:n]...)
			t.stderrMu.Unlock()
			t.logger.Debug("mcp server stderr", "output", string(buf[:n]))
		}
		if err != nil {
			if err != io.EOF && !t.closed.Load() {
				t.logger.Error("error reading stderr", "error", err)
			}
			return
		}
	}
}

// Send writes one message as a single line.
func (t *StdioTransport) Send(ctx context.Context, message *Message) error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	message.Jsonrpc = "2.0"
	if err := t.encoder.Encode(message); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return nil
}

// Receive reads the next line and decodes it. The read itself cannot be
// interrupted, so cancellation abandons it; the transport is torn down as a
// whole on close.
func (t *StdioTransport) Receive(ctx context.Context) (*Message, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	type scanResult struct {
		msg *Message
		err error
	}
	resultCh := make(chan scanResult, 1)

	go func() {
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				resultCh <- scanResult{nil, fmt.Errorf("scanner error: %w", err)}
			} else {
				resultCh <- scanResult{nil, io.EOF}
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(t.scanner.Bytes(), &msg); err != nil {
			resultCh <- scanResult{nil, fmt.Errorf("failed to unmarshal message: %w", err)}
			return
		}
		resultCh <- scanResult{&msg, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.msg, result.err
	}
}

// Close terminates the child process, interrupt first, kill if it does not
// exit promptly.
func (t *StdioTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil {
		t.stdin.Close()
	}

	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Signal(os.Interrupt)

		done := make(chan error, 1)
		go func() {
			done <- t.cmd.Wait()
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.cmd.Process.Kill()
			<-done
		}
	}

	if t.stdout != nil {
		t.stdout.Close()
	}
	if t.stderr != nil {
		t.stderr.Close()
	}

	t.stderrMu.Lock()
	if len(t.stderrBuf) > 0 {
		t.logger.Debug("mcp server final stderr", "output", string(t.stderrBuf))
	}
	t.stderrMu.Unlock()

	return nil
}

// Stderr returns the accumulated stderr output.
func (t *StdioTransport) Stderr() []byte {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()

	out := make([]byte, len(t.stderrBuf))
	copy(out, t.stderrBuf)
	return out
}
