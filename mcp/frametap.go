package mcp

import (
	"bytes"
	"io"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"
)

// frameTap sits between the provider's stdout and the JSON-RPC reader. It
// passes bytes through unchanged and inspects each complete line so that a
// second response for an id that was already answered is logged; the
// reader drops such frames.
type frameTap struct {
	r      io.Reader
	logger *slog.Logger

	mu      sync.Mutex
	partial []byte
	seen    map[string]struct{}
}

func newFrameTap(r io.Reader, logger *slog.Logger) *frameTap {
	return &frameTap{
		r:      r,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

func (t *frameTap) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.observe(p[:n])
	}
	return n, err
}

func (t *frameTap) observe(chunk []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial = append(t.partial, chunk...)
	for {
		idx := bytes.IndexByte(t.partial, '\n')
		if idx < 0 {
			return
		}
		line := bytes.TrimSpace(t.partial[:idx])
		t.partial = t.partial[idx+1:]
		if len(line) > 0 {
			t.inspect(line)
		}
	}
}

func (t *frameTap) inspect(line []byte) {
	if !gjson.ValidBytes(line) {
		t.logger.Debug("[MCP] non-JSON line on stdout", "line", string(line))
		return
	}

	res := gjson.GetManyBytes(line, "id", "method")
	id, method := res[0], res[1]

	switch {
	case method.Exists():
		t.logger.Debug("[MCP] <- message", "method", method.String())
	case id.Exists():
		if _, dup := t.seen[id.Raw]; dup {
			t.logger.Warn("[MCP] discarding duplicate response", "id", id.String())
			return
		}
		t.seen[id.Raw] = struct{}{}
		t.logger.Debug("[MCP] <- response", "id", id.String())
	}
}
