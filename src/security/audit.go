package security

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAuditBufferSize    = 256
	defaultAuditFlushInterval = 2 * time.Second
)

// Audit outcomes. Exactly one entry is recorded per remote invocation
// attempt, whatever its fate.
const (
	OutcomeExecuted  = "executed"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeDenied    = "denied"
	OutcomeBlocked   = "blocked"
	OutcomeCancelled = "cancelled"
)

// AuditLogEntry is one remote tool invocation attempt.
type AuditLogEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	SessionID  string          `json:"session_id,omitempty"`
	ServerName string          `json:"server_name"`
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Decision   Decision        `json:"decision"`
	Outcome    string          `json:"outcome"`
	Args       json.RawMessage `json:"args,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// AuditConfig configures the audit trail for remote tool calls.
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	Path          string        `json:"path"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// AuditLogger records remote tool invocations as line-delimited JSON. Log
// never fails and never blocks the conversation loop: entries are buffered
// and written by a background goroutine, and sink errors are swallowed and
// counted. Close drains the buffer.
type AuditLogger struct {
	enabled       bool
	output        io.WriteCloser
	ownsOutput    bool
	writer        *swallowWriter
	slogger       *slog.Logger
	buffer        chan *AuditLogEntry
	done          chan struct{}
	wg            sync.WaitGroup
	flushInterval time.Duration
}

// NewAuditLogger opens the audit sink. A disabled config returns an inert
// logger whose Log is a no-op. An empty path writes to stderr.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if !config.Enabled {
		return &AuditLogger{}, nil
	}

	if config.BufferSize <= 0 {
		config.BufferSize = defaultAuditBufferSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaultAuditFlushInterval
	}

	var output io.WriteCloser
	ownsOutput := false
	if config.Path == "" {
		output = os.Stderr
	} else {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
		f, err := os.OpenFile(config.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		output = f
		ownsOutput = true
	}

	writer := &swallowWriter{inner: output}
	l := &AuditLogger{
		enabled:       true,
		output:        output,
		ownsOutput:    ownsOutput,
		writer:        writer,
		slogger:       slog.New(slog.NewJSONHandler(writer, nil)).With("component", "audit"),
		buffer:        make(chan *AuditLogEntry, config.BufferSize),
		done:          make(chan struct{}),
		flushInterval: config.FlushInterval,
	}

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Enabled reports whether entries are being recorded.
func (l *AuditLogger) Enabled() bool {
	return l.enabled
}

// Log records one invocation attempt. It never returns an error and never
// blocks: when the buffer is full the entry is written inline instead of
// dropped.
func (l *AuditLogger) Log(entry *AuditLogEntry) {
	if !l.enabled || entry == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	select {
	case l.buffer <- entry:
	default:
		l.writeEntry(entry)
	}
}

// SinkFailures reports how many writes the sink has swallowed.
func (l *AuditLogger) SinkFailures() int64 {
	if l.writer == nil {
		return 0
	}
	return l.writer.failures.Load()
}

// Close drains buffered entries and closes the sink.
func (l *AuditLogger) Close() error {
	if !l.enabled {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	if l.ownsOutput {
		return l.output.Close()
	}
	return nil
}

func (l *AuditLogger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.buffer:
			l.writeEntry(entry)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

func (l *AuditLogger) flushBuffer() {
	for {
		select {
		case entry := <-l.buffer:
			l.writeEntry(entry)
		default:
			return
		}
	}
}

func (l *AuditLogger) writeEntry(entry *AuditLogEntry) {
	attrs := []any{
		"timestamp", entry.Timestamp.Format(time.RFC3339Nano),
		"server_name", entry.ServerName,
		"tool_name", entry.ToolName,
		"decision", string(entry.Decision),
		"outcome", entry.Outcome,
	}
	if entry.SessionID != "" {
		attrs = append(attrs, "session_id", entry.SessionID)
	}
	if entry.ToolCallID != "" {
		attrs = append(attrs, "tool_call_id", entry.ToolCallID)
	}
	if len(entry.Args) > 0 {
		attrs = append(attrs, "args", string(entry.Args))
	}
	if entry.DurationMs > 0 {
		attrs = append(attrs, "duration_ms", entry.DurationMs)
	}
	if entry.Error != "" {
		attrs = append(attrs, "error", entry.Error)
	}
	l.slogger.Info("tool_invocation", attrs...)
}

// swallowWriter absorbs sink errors so audit writes can never surface a
// failure into the conversation loop. Failures are counted and warned about
// once per burst.
type swallowWriter struct {
	inner    io.Writer
	failures atomic.Int64
	failing  atomic.Bool
}

func (w *swallowWriter) Write(p []byte) (int, error) {
	if _, err := w.inner.Write(p); err != nil {
		w.failures.Add(1)
		if !w.failing.Swap(true) {
			slog.Warn("audit sink write failed, entries are being dropped", "error", err)
		}
		return len(p), nil
	}
	w.failing.Store(false)
	return len(p), nil
}
