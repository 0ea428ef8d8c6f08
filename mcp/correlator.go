package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// DefaultRequestTimeout is used when neither the call nor the correlator
// names a timeout.
const DefaultRequestTimeout = 60 * time.Second

const methodProgress = "notifications/progress"

// exitGrace is how long a request waits for a response the transport may
// still be delivering once the provider has exited.
const exitGrace = 100 * time.Millisecond

// Request is one outgoing call. Token, when empty, is generated; it is the
// JSON-RPC id and the progress token of the call.
type Request struct {
	Method    string
	Arguments map[string]any
	Token     string
}

type CallOptions struct {
	// Timeout bounds the wait for a response. Zero means the correlator
	// default.
	Timeout time.Duration
}

// Progress is a provider progress notification for an in-flight call.
type Progress struct {
	Token    string
	Progress float64
	Total    float64
	Message  string
}

type ProgressFunc func(Progress)

// Correlator matches requests to responses over one transport, enforces a
// deadline per request and validates each result against a schema.
type Correlator struct {
	server     string
	tr         transport.Interface
	exited     <-chan struct{}
	timeout    time.Duration
	logger     *slog.Logger
	onProgress ProgressFunc
}

// CorrelatorConfig configures a Correlator. Exited, when non-nil, is
// closed when the provider goes away; requests still waiting on it shortly
// after fail.
type CorrelatorConfig struct {
	Server     string
	Exited     <-chan struct{}
	Timeout    time.Duration
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// NewCorrelator wraps a started transport.
func NewCorrelator(tr transport.Interface, cfg CorrelatorConfig) *Correlator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	c := &Correlator{
		server:     cfg.Server,
		tr:         tr,
		exited:     cfg.Exited,
		timeout:    timeout,
		logger:     logger,
		onProgress: cfg.OnProgress,
	}
	tr.SetNotificationHandler(c.handleNotification)
	return c
}

// Send transmits req and waits for its response. The result is returned
// only if it satisfies schema; a nil schema accepts any result.
func (c *Correlator) Send(ctx context.Context, req Request, schema *Schema, opts CallOptions) (json.RawMessage, error) {
	if req.Method == "" {
		return nil, errors.New("request method must not be empty")
	}

	token := req.Token
	if token == "" {
		token = uuid.NewString()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := mcptypes.NewRequestId(token)
	rpc := transport.JSONRPCRequest{
		JSONRPC: mcptypes.JSONRPC_VERSION,
		ID:      id,
		Method:  req.Method,
		Params:  withProgressToken(req.Arguments, token),
	}

	c.logger.Debug("[MCP] -> request", "method", req.Method, "token", token, "timeout", timeout)

	type outcome struct {
		resp *transport.JSONRPCResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.tr.SendRequest(ctx, rpc)
		done <- outcome{resp, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-c.exited:
		select {
		case out = <-done:
		case <-time.After(exitGrace):
			return nil, &TransportError{Server: c.server, Op: req.Method, Err: ErrProviderExited}
		}
	}

	if out.err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			c.logger.Warn("[MCP] request timed out", "method", req.Method, "token", token, "timeout", timeout)
			return nil, &TimeoutError{Method: req.Method, Timeout: timeout}
		case ctx.Err() != nil:
			return nil, fmt.Errorf("request %s: %w", req.Method, ctx.Err())
		}
		return nil, &TransportError{Server: c.server, Op: req.Method, Err: out.err}
	}

	resp := out.resp
	switch {
	case resp == nil:
		return nil, &ProtocolError{Method: req.Method, Message: "empty response"}
	case resp.Error != nil:
		return nil, &ProtocolError{Method: req.Method, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if schema != nil {
		if err := schema.Validate(resp.Result); err != nil {
			c.logger.Warn("[MCP] response failed validation", "method", req.Method, "err", err)
			return nil, &ProtocolError{Method: req.Method, Message: "response does not match schema", Err: err}
		}
	}

	c.logger.Debug("[MCP] <- result", "method", req.Method, "token", token, "bytes", len(resp.Result))
	return resp.Result, nil
}

// SendAs is Send followed by decoding the validated result into T.
func SendAs[T any](ctx context.Context, c *Correlator, req Request, schema *Schema, opts CallOptions) (T, error) {
	var zero T
	raw, err := c.Send(ctx, req, schema, opts)
	if err != nil {
		return zero, err
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, &ProtocolError{Method: req.Method, Message: "cannot decode result", Err: err}
	}
	return result, nil
}

// Notify sends a notification; no response is expected.
func (c *Correlator) Notify(ctx context.Context, method string) error {
	n := mcptypes.JSONRPCNotification{
		JSONRPC:      mcptypes.JSONRPC_VERSION,
		Notification: mcptypes.Notification{Method: method},
	}
	if err := c.tr.SendNotification(ctx, n); err != nil {
		return &TransportError{Server: c.server, Op: method, Err: err}
	}
	return nil
}

func (c *Correlator) handleNotification(n mcptypes.JSONRPCNotification) {
	if n.Method != methodProgress {
		c.logger.Debug("[MCP] notification", "method", n.Method)
		return
	}

	fields := n.Params.AdditionalFields
	p := Progress{Token: fmt.Sprint(fields["progressToken"])}
	if v, ok := fields["progress"].(float64); ok {
		p.Progress = v
	}
	if v, ok := fields["total"].(float64); ok {
		p.Total = v
	}
	if v, ok := fields["message"].(string); ok {
		p.Message = v
	}

	c.logger.Debug("[MCP] progress", "token", p.Token, "progress", p.Progress, "total", p.Total, "message", p.Message)
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

// withProgressToken copies args and sets _meta.progressToken unless the
// caller already set one.
func withProgressToken(args map[string]any, token string) map[string]any {
	params := make(map[string]any, len(args)+1)
	for k, v := range args {
		params[k] = v
	}

	meta := map[string]any{}
	if existing, ok := params["_meta"].(map[string]any); ok {
		for k, v := range existing {
			meta[k] = v
		}
	}
	if _, ok := meta["progressToken"]; !ok {
		meta["progressToken"] = token
	}
	params["_meta"] = meta
	return params
}
