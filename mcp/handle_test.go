package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolchat/config"
)

func TestHandleCloseNeverConnected(t *testing.T) {
	h := NewHandle("idle", fakeServer(modeNormal), nil)

	h.Close()
	h.Close()

	_, err := h.Connect(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHandleConnectAndCloseTwice(t *testing.T) {
	h := NewHandle("fake", fakeServer(modeNormal), nil)

	tr, err := h.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tr)
	require.NotNil(t, h.Exited())

	_, err = h.Connect(context.Background())
	var te *TransportError
	assert.ErrorAs(t, err, &te)

	h.Close()
	h.Close()

	select {
	case <-h.Exited():
	default:
		t.Fatal("provider still running after close")
	}
}

func TestHandleKillsProviderThatIgnoresEOF(t *testing.T) {
	h := NewHandle("stubborn", fakeServer(modeStubborn), nil)
	h.grace = 100 * time.Millisecond

	_, err := h.Connect(context.Background())
	require.NoError(t, err)

	start := time.Now()
	h.Close()
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-h.Exited():
	default:
		t.Fatal("provider was not killed")
	}
}

func TestHandleUnreachableCommand(t *testing.T) {
	h := NewHandle("missing", config.ServerConfig{
		Transport: config.TransportStdio,
		Command:   "toolchat-no-such-provider-binary",
	}, nil)
	defer h.Close()

	start := time.Now()
	_, err := h.Connect(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "missing", te.Server)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFrameTapPassesBytesThrough(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":"string:a","result":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`,
		`{"jsonrpc":"2.0","id":"string:a","result":{"late":true}}`,
		`not json`,
		`{"jsonrpc":"2.0","id":7,"result":{}}`,
	}, "\n") + "\n"

	tap := newFrameTap(iotestOneByteReader(input), slog.New(slog.DiscardHandler))
	out, err := io.ReadAll(tap)
	require.NoError(t, err)

	assert.Equal(t, input, string(out))
	assert.Len(t, tap.seen, 2)
	assert.Empty(t, tap.partial)
}

// iotestOneByteReader forces frames to arrive split across reads.
func iotestOneByteReader(s string) io.Reader {
	return &oneByteReader{r: strings.NewReader(s)}
}

type oneByteReader struct{ r io.Reader }

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		raw     string
		wantErr bool
	}{
		{name: "empty", schema: AnyResultSchema, raw: "", wantErr: true},
		{name: "not json", schema: AnyResultSchema, raw: "{", wantErr: true},
		{name: "any object", schema: AnyResultSchema, raw: `{"a":1}`},
		{name: "list ok", schema: ListToolsResultSchema, raw: `{"tools":[{"name":"x","inputSchema":{"type":"object"}}]}`},
		{name: "list missing tools", schema: ListToolsResultSchema, raw: `{}`, wantErr: true},
		{name: "list tool without schema", schema: ListToolsResultSchema, raw: `{"tools":[{"name":"x"}]}`, wantErr: true},
		{name: "call ok", schema: CallToolResultSchema, raw: `{"content":[{"type":"text","text":"hi"}],"isError":false}`},
		{name: "call content not array", schema: CallToolResultSchema, raw: `{"content":"hi"}`, wantErr: true},
		{name: "call isError not bool", schema: CallToolResultSchema, raw: `{"content":[],"isError":"yes"}`, wantErr: true},
		{name: "initialize missing version", schema: InitializeResultSchema, raw: `{"capabilities":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithProgressToken(t *testing.T) {
	args := map[string]any{"name": "echo"}
	params := withProgressToken(args, "tok")

	assert.Equal(t, map[string]any{"progressToken": "tok"}, params["_meta"])
	assert.NotContains(t, args, "_meta", "caller arguments must not be mutated")

	params = withProgressToken(map[string]any{
		"_meta": map[string]any{"progressToken": "mine", "other": 1},
	}, "tok")
	assert.Equal(t, map[string]any{"progressToken": "mine", "other": 1}, params["_meta"])
}

func TestErrorTaxonomy(t *testing.T) {
	timeout := &TimeoutError{Method: "tools/call", Timeout: time.Second}
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.True(t, IsCallError(timeout))

	wrapped := errors.Join(errors.New("context"), &TransportError{Server: "s", Op: "spawn", Err: io.EOF})
	assert.True(t, IsCallError(wrapped))
	assert.ErrorIs(t, wrapped, io.EOF)

	assert.True(t, IsCallError(&ProtocolError{Method: "tools/list", Code: -32601, Message: "nope"}))
	assert.False(t, IsCallError(errors.New("plain")))
	assert.False(t, IsCallError(ErrUnknownServer))
}
