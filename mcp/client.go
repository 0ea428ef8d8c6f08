package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"toolchat/config"
)

const maxToolPages = 100

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) { c.onProgress = fn }
}

// WithStateHook observes every lifecycle transition of every call.
func WithStateHook(fn func(State)) Option {
	return func(c *Client) { c.stateHook = fn }
}

func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.clientInfo = mcptypes.Implementation{Name: name, Version: version}
	}
}

// Client talks to one tool provider. Each call spawns the provider,
// performs the handshake, sends one request and tears the provider down
// again, so a failed or hung call cannot affect the next one. Calls on one
// Client are serialized; use one Client per provider for parallelism.
type Client struct {
	name       string
	server     config.ServerConfig
	logger     *slog.Logger
	timeout    time.Duration
	onProgress ProgressFunc
	stateHook  func(State)
	clientInfo mcptypes.Implementation

	mu sync.Mutex

	stateMu sync.Mutex
	state   State
}

func NewClient(name string, server config.ServerConfig, opts ...Option) *Client {
	c := &Client{
		name:       name,
		server:     server,
		logger:     slog.Default(),
		timeout:    DefaultRequestTimeout,
		clientInfo: mcptypes.Implementation{Name: "toolchat", Version: "1.0.0"},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "mcp", "server", name)
	return c
}

func (c *Client) Name() string { return c.name }

// State reports the lifecycle state of the current or most recent call.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()

	c.logger.Debug("[MCP] state", "state", s.String())
	if c.stateHook != nil {
		c.stateHook(s)
	}
}

// DiscoverTools lists the provider's tools, following pagination cursors.
func (c *Client) DiscoverTools(ctx context.Context) ToolListResult {
	var tools []mcptypes.Tool

	err := c.withSession(ctx, func(corr *Correlator) error {
		seen := map[string]bool{}
		cursor := ""
		for page := 0; page < maxToolPages; page++ {
			args := map[string]any{}
			if cursor != "" {
				args["cursor"] = cursor
			}

			res, err := SendAs[mcptypes.ListToolsResult](ctx, corr, Request{
				Method:    string(mcptypes.MethodToolsList),
				Arguments: args,
			}, ListToolsResultSchema, CallOptions{})
			if err != nil {
				return err
			}
			tools = append(tools, res.Tools...)

			next := string(res.NextCursor)
			if next == "" || seen[next] {
				return nil
			}
			seen[next] = true
			cursor = next
		}
		c.logger.Warn("[MCP] tools/list pagination limit reached", "pages", maxToolPages)
		return nil
	})

	if err != nil {
		c.logger.Warn("[MCP] tool discovery failed", "err", err)
		return ToolListResult{Type: ResultError, Err: err}
	}

	c.logger.Debug("[MCP] discovered tools", "count", len(tools))
	return ToolListResult{Type: ResultSuccess, Tools: tools}
}

// CallTool invokes one tool. Call failures and provider-reported tool
// errors both come back as CallFailure.
func (c *Client) CallTool(ctx context.Context, params CallToolParams) ToolCallResult {
	if params.Name == "" {
		return CallFailure{Message: "tool name is required", Thought: params.ThoughtID}
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	var result *mcptypes.CallToolResult
	err := c.withSession(ctx, func(corr *Correlator) error {
		raw, err := corr.Send(ctx, Request{
			Method:    string(mcptypes.MethodToolsCall),
			Arguments: map[string]any{"name": params.Name, "arguments": args},
			Token:     params.ProgressToken,
		}, CallToolResultSchema, CallOptions{})
		if err != nil {
			return err
		}

		result, err = mcptypes.ParseCallToolResult(&raw)
		if err != nil {
			return &ProtocolError{Method: string(mcptypes.MethodToolsCall), Message: "cannot decode result", Err: err}
		}
		return nil
	})

	switch {
	case err != nil:
		c.logger.Warn("[MCP] tool call failed", "tool", params.Name, "err", err)
		return CallFailure{Message: err.Error(), Err: err, Thought: params.ThoughtID}
	case result.IsError:
		msg := contentText(result.Content)
		if msg == "" {
			msg = "tool reported an error"
		}
		return CallFailure{Message: msg, Thought: params.ThoughtID}
	}

	return CallSuccess{Result: result, Thought: params.ThoughtID}
}

// Call invokes an arbitrary method under the same connect/close bracket.
func (c *Client) Call(ctx context.Context, method string, params map[string]any, schema *Schema, opts CallOptions) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.withSession(ctx, func(corr *Correlator) error {
		var err error
		raw, err = corr.Send(ctx, Request{Method: method, Arguments: params}, schema, opts)
		return err
	})
	return raw, err
}

func (c *Client) withSession(ctx context.Context, fn func(*Correlator) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle := NewHandle(c.name, c.server, c.logger)
	defer func() {
		handle.Close()
		c.setState(StateClosed)
	}()

	c.setState(StateConnecting)
	tr, err := handle.Connect(ctx)
	if err != nil {
		c.setState(StateFailed)
		return err
	}

	corr := NewCorrelator(tr, CorrelatorConfig{
		Server:     c.name,
		Exited:     handle.Exited(),
		Timeout:    c.timeout,
		Logger:     c.logger,
		OnProgress: c.onProgress,
	})

	if err := c.initialize(ctx, corr); err != nil {
		c.setState(StateFailed)
		return err
	}

	c.setState(StateAwaitingResponse)
	if err := fn(corr); err != nil {
		c.setState(StateFailed)
		return err
	}

	c.setState(StateCompleted)
	return nil
}

func (c *Client) initialize(ctx context.Context, corr *Correlator) error {
	res, err := SendAs[mcptypes.InitializeResult](ctx, corr, Request{
		Method: string(mcptypes.MethodInitialize),
		Arguments: map[string]any{
			"protocolVersion": mcptypes.LATEST_PROTOCOL_VERSION,
			"capabilities":    map[string]any{},
			"clientInfo":      c.clientInfo,
		},
	}, InitializeResultSchema, CallOptions{})
	if err != nil {
		return err
	}

	c.logger.Debug("[MCP] initialized", "provider", res.ServerInfo.Name, "version", res.ServerInfo.Version, "protocol", res.ProtocolVersion)

	if err := corr.Notify(ctx, "notifications/initialized"); err != nil {
		return err
	}
	return nil
}
