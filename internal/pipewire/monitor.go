package pipewire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// DefaultDumpPath is the pw-dump binary looked up in PATH
const DefaultDumpPath = "pw-dump"

// Invoker runs callbacks on the event loop goroutine
type Invoker interface {
	Invoke(fn func()) bool
}

// Monitor follows the PipeWire registry through `pw-dump --monitor` and
// feeds what it sees into a Core. When the stream ends for any reason other
// than ctx being cancelled, a fatal core error (id 0) is emitted.
type Monitor struct {
	path   string
	core   *Core
	logger *zap.Logger
	feed   *feed
}

// NewMonitor creates a monitor that runs the pw-dump binary at path
func NewMonitor(path string, core *Core, logger *zap.Logger) *Monitor {
	if path == "" {
		path = DefaultDumpPath
	}
	logger = logger.Named("pw-dump")
	return &Monitor{
		path:   path,
		core:   core,
		logger: logger,
		feed:   newFeed(core, logger),
	}
}

// Start launches pw-dump and returns once it is running. Registry events are
// delivered through invoker.
func (m *Monitor) Start(ctx context.Context, invoker Invoker) error {
	cmd := exec.CommandContext(ctx, m.path, "--monitor", "--no-colors")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open pw-dump output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", m.path, err)
	}

	m.logger.Info("Watching PipeWire registry",
		zap.String("path", m.path),
		zap.Int("pid", cmd.Process.Pid))

	go m.watch(ctx, cmd, stdout, &stderr, invoker)
	return nil
}

func (m *Monitor) watch(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer, invoker Invoker) {
	decodeErr := m.Consume(stdout, invoker)
	if decodeErr != nil {
		cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return
	}

	message := "pw-dump exited"
	switch {
	case decodeErr != nil:
		message = decodeErr.Error()
	case waitErr != nil:
		message = fmt.Sprintf("pw-dump exited: %v", waitErr)
	}
	if detail := strings.TrimSpace(stderr.String()); detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}

	invoker.Invoke(func() {
		m.core.Error(0, 0, -int(syscall.EPIPE), message)
	})
}

// Consume decodes a pw-dump stream from r and applies every batch on the
// loop. It returns when the stream ends, fails to decode, or the loop quits.
func (m *Monitor) Consume(r io.Reader, invoker Invoker) error {
	return decodeStream(r, func(batch []dumpObject) bool {
		return invoker.Invoke(func() {
			for _, obj := range batch {
				m.feed.apply(obj)
			}
		})
	})
}
