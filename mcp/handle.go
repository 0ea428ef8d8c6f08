package mcp

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"

	"toolchat/config"
)

// DefaultCloseGrace is how long Close waits for the provider to exit after
// its stdin is closed before killing it.
const DefaultCloseGrace = time.Second

type handleState int

const (
	handleIdle handleState = iota
	handleConnected
	handleClosed
)

// Handle owns one tool-provider subprocess and its pipes. It is connected
// at most once and closed exactly once; Close is safe in every state.
type Handle struct {
	name   string
	server config.ServerConfig
	logger *slog.Logger
	grace  time.Duration

	mu     sync.Mutex
	state  handleState
	cmd    *exec.Cmd
	tr     *transport.Stdio
	stdout *os.File
	stderr *os.File
	exited chan struct{}
}

func NewHandle(name string, server config.ServerConfig, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{
		name:   name,
		server: server,
		logger: logger.With("server", name),
		grace:  DefaultCloseGrace,
	}
}

// Connect spawns the provider and returns a started JSON-RPC transport
// over its stdio.
func (h *Handle) Connect(ctx context.Context) (transport.Interface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case handleConnected:
		return nil, &TransportError{Server: h.name, Op: "connect", Err: errors.New("already connected")}
	case handleClosed:
		return nil, &TransportError{Server: h.name, Op: "connect", Err: ErrClosed}
	}

	command, err := h.server.ResolveCommand()
	if err != nil {
		return nil, &TransportError{Server: h.name, Op: "resolve command", Err: err}
	}

	// stdout and stderr are plain os pipes so that Wait never closes the
	// read side before buffered output is consumed
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &TransportError{Server: h.name, Op: "create stdout pipe", Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeQuietly(stdoutR, stdoutW)
		return nil, &TransportError{Server: h.name, Op: "create stderr pipe", Err: err}
	}

	cmd := exec.Command(command, h.server.Args...)
	cmd.Env = h.server.Environ()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		closeQuietly(stdoutR, stdoutW, stderrR, stderrW)
		return nil, &TransportError{Server: h.name, Op: "create stdin pipe", Err: err}
	}

	h.logger.Debug("[MCP] spawning provider", "command", command, "args", h.server.Args)

	if err := cmd.Start(); err != nil {
		closeQuietly(stdoutR, stdoutW, stderrR, stderrW)
		return nil, &TransportError{Server: h.name, Op: "spawn", Err: err}
	}
	closeQuietly(stdoutW, stderrW)

	h.logger.Debug("[MCP] provider started", "pid", cmd.Process.Pid)

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		h.logger.Debug("[MCP] provider exited", "err", err)
		close(exited)
	}()
	go h.drainStderr(stderrR)

	tr := transport.NewIO(newFrameTap(stdoutR, h.logger), stdin, stderrR)
	if err := tr.Start(ctx); err != nil {
		_ = cmd.Process.Kill()
		<-exited
		closeQuietly(stdoutR, stderrR)
		return nil, &TransportError{Server: h.name, Op: "start transport", Err: err}
	}

	h.cmd = cmd
	h.tr = tr
	h.stdout = stdoutR
	h.stderr = stderrR
	h.exited = exited
	h.state = handleConnected
	return tr, nil
}

// Exited is closed once the provider process has exited. It is nil before
// Connect.
func (h *Handle) Exited() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// Close tears the provider down: transport first, then the process, with a
// kill after the grace period. It never fails; problems are logged so they
// cannot mask the caller's own error.
func (h *Handle) Close() {
	h.mu.Lock()
	prev := h.state
	h.state = handleClosed
	cmd, tr, exited := h.cmd, h.tr, h.exited
	stdout, stderr := h.stdout, h.stderr
	h.mu.Unlock()

	switch prev {
	case handleIdle:
		h.logger.Debug("[MCP] close on handle that was never connected")
		return
	case handleClosed:
		return
	}

	if tr != nil {
		if err := tr.Close(); err != nil {
			h.logger.Warn("[MCP] error closing transport", "err", err)
		}
	}

	select {
	case <-exited:
	case <-time.After(h.grace):
		h.logger.Warn("[MCP] provider did not exit after stdin closed, killing", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.logger.Warn("[MCP] error killing provider", "err", err)
		}
		select {
		case <-exited:
		case <-time.After(h.grace):
			h.logger.Error("[MCP] provider still running after kill", "pid", cmd.Process.Pid)
		}
	}

	closeQuietly(stdout, stderr)
	h.logger.Debug("[MCP] handle closed")
}

func (h *Handle) drainStderr(r *os.File) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.logger.Debug("[MCP] provider stderr", "line", scanner.Text())
	}
}

func closeQuietly(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
