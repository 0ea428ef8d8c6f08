package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"toolchat/config"
)

// ErrManagerClosed is returned for calls made after Shutdown.
var ErrManagerClosed = errors.New("tool manager is shut down")

// Manager routes tool discovery and calls to one Client per configured
// stdio server.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
	names   []string
	failed  map[string]error
	logger  *slog.Logger

	base     context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	closed   bool
}

// NewManager builds clients for every stdio server. Options apply to each
// client. Servers with another transport are skipped.
func NewManager(servers *config.ServersConfig, opts ...Option) *Manager {
	probe := &Client{logger: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}

	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients: make(map[string]*Client),
		failed:  make(map[string]error),
		logger:  probe.logger.With("component", "mcp"),
		base:    base,
		cancel:  cancel,
	}

	if servers == nil {
		return m
	}

	for _, name := range servers.ListServers() {
		server, _ := servers.Server(name)
		if server.Transport != config.TransportStdio {
			m.logger.Warn("[MCP] skipping server with unsupported transport", "server", name, "transport", server.Transport)
			continue
		}
		m.clients[name] = NewClient(name, server, opts...)
		m.names = append(m.names, name)
	}
	return m
}

// Servers returns the names of the usable servers in sorted order.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.names...)
}

func (m *Manager) Client(name string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[name]
	return c, ok
}

// ListTools discovers tools on every server in parallel. Tools from
// servers that failed are missing from the result and their errors are
// returned alongside, one per failed server.
func (m *Manager) ListTools(ctx context.Context) ([]NamedTool, []error) {
	ctx, release, err := m.track(ctx)
	if err != nil {
		return nil, []error{err}
	}
	defer release()

	names := m.Servers()
	results := make([]ToolListResult, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		client, _ := m.Client(name)
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			results[i] = c.DiscoverTools(ctx)
		}(i, client)
	}
	wg.Wait()

	var tools []NamedTool
	var errs []error

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, name := range names {
		res := results[i]
		if res.Type == ResultError {
			m.failed[name] = res.Err
			errs = append(errs, fmt.Errorf("server %s: %w", name, res.Err))
			continue
		}
		delete(m.failed, name)
		for _, t := range res.Tools {
			tools = append(tools, NamedTool{Server: name, Tool: t})
		}
	}

	m.logger.Debug("[MCP] listed tools", "servers", len(names), "tools", len(tools), "failed", len(errs))
	return tools, errs
}

// FailedServers returns the servers whose last discovery failed.
func (m *Manager) FailedServers() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]error, len(m.failed))
	for k, v := range m.failed {
		out[k] = v
	}
	return out
}

// CallTool invokes a namespaced tool ("server__tool").
func (m *Manager) CallTool(ctx context.Context, namespaced string, args map[string]any, thoughtID string) ToolCallResult {
	server, tool := ParseToolName(namespaced)
	client, ok := m.Client(server)
	if !ok {
		err := fmt.Errorf("%w: %q (tool %s)", ErrUnknownServer, server, namespaced)
		return CallFailure{Message: err.Error(), Err: err, Thought: thoughtID}
	}

	ctx, release, err := m.track(ctx)
	if err != nil {
		return CallFailure{Message: err.Error(), Err: err, Thought: thoughtID}
	}
	defer release()

	return client.CallTool(ctx, CallToolParams{
		Name:      tool,
		Arguments: args,
		ThoughtID: thoughtID,
	})
}

// Shutdown cancels in-flight calls and waits for their providers to be
// torn down, or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Debug("[MCP] Shutdown: cancelling in-flight calls")
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("[MCP] Shutdown: all calls finished")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func (m *Manager) track(ctx context.Context) (context.Context, func(), error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, nil, ErrManagerClosed
	}

	m.inflight.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.base, cancel)
	return ctx, func() {
		stop()
		cancel()
		m.inflight.Done()
	}, nil
}
