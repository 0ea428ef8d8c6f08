package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func toolNames(res ToolListResult) []string {
	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		names = append(names, t.Name)
	}
	return names
}

func TestClientDiscoverTools(t *testing.T) {
	rec := &stateRecorder{}
	c := NewClient("fake", fakeServer(modeNormal), WithStateHook(rec.record))

	res := c.DiscoverTools(context.Background())
	require.Equal(t, ResultSuccess, res.Type, "err: %v", res.Err)
	assert.Equal(t, []string{"echo", "fail"}, toolNames(res))
	assert.Equal(t, []string{"text"}, res.Tools[0].InputSchema.Required)

	assert.Equal(t, []State{StateConnecting, StateAwaitingResponse, StateCompleted, StateClosed}, rec.get())
	assert.Equal(t, StateClosed, c.State())
}

func TestClientCallTool(t *testing.T) {
	c := NewClient("fake", fakeServer(modeNormal))

	res := c.CallTool(context.Background(), CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "hello"},
		ThoughtID: "thought-1",
	})

	success, ok := res.(CallSuccess)
	require.True(t, ok, "expected success, got %#v", res)
	assert.Equal(t, "hello", success.Text())
	assert.Equal(t, "thought-1", success.ThoughtID())
	assert.False(t, success.Result.IsError)
}

func TestClientCallToolReportedError(t *testing.T) {
	c := NewClient("fake", fakeServer(modeNormal))

	res := c.CallTool(context.Background(), CallToolParams{Name: "fail", ThoughtID: "t"})

	failure, ok := res.(CallFailure)
	require.True(t, ok, "expected failure, got %#v", res)
	assert.Equal(t, "boom", failure.Message)
	assert.NoError(t, failure.Err)
	assert.Equal(t, "t", failure.ThoughtID())
}

func TestClientCallToolRequiresName(t *testing.T) {
	rec := &stateRecorder{}
	c := NewClient("fake", fakeServer(modeNormal), WithStateHook(rec.record))

	res := c.CallTool(context.Background(), CallToolParams{})
	_, ok := res.(CallFailure)
	assert.True(t, ok)
	assert.Empty(t, rec.get(), "no provider should be spawned")
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		timeout  time.Duration
		validate func(t *testing.T, err error)
	}{
		{
			name: "malformed result",
			mode: modeMalformed,
			validate: func(t *testing.T, err error) {
				var pe *ProtocolError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "tools/list", pe.Method)
				assert.Equal(t, "response does not match schema", pe.Message)
			},
		},
		{
			name: "json-rpc error",
			mode: modeRPCError,
			validate: func(t *testing.T, err error) {
				var pe *ProtocolError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, -32601, pe.Code)
				assert.Equal(t, "method not found", pe.Message)
			},
		},
		{
			name:    "hang",
			mode:    modeHang,
			timeout: 200 * time.Millisecond,
			validate: func(t *testing.T, err error) {
				var te *TimeoutError
				require.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Equal(t, 200*time.Millisecond, te.Timeout)
			},
		},
		{
			name: "exit before handshake",
			mode: modeExit,
			validate: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
			},
		},
		{
			name: "exit during request",
			mode: modeCrash,
			validate: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stateRecorder{}
			opts := []Option{WithStateHook(rec.record)}
			if tt.timeout > 0 {
				opts = append(opts, WithTimeout(tt.timeout))
			}
			c := NewClient("fake", fakeServer(tt.mode), opts...)

			res := c.DiscoverTools(context.Background())
			require.Equal(t, ResultError, res.Type)
			require.Error(t, res.Err)
			assert.True(t, IsCallError(res.Err))
			tt.validate(t, res.Err)

			states := rec.get()
			require.NotEmpty(t, states)
			assert.Equal(t, StateConnecting, states[0])
			assert.Contains(t, states, StateFailed)
			assert.Equal(t, StateClosed, states[len(states)-1])
			assert.NotContains(t, states, StateCompleted)
		})
	}
}

func TestClientCallToolFailureKeepsTaxonomy(t *testing.T) {
	c := NewClient("fake", fakeServer(modeHang), WithTimeout(150*time.Millisecond))

	res := c.CallTool(context.Background(), CallToolParams{Name: "echo", ThoughtID: "t1"})

	failure, ok := res.(CallFailure)
	require.True(t, ok)
	assert.Equal(t, "t1", failure.ThoughtID())
	var te *TimeoutError
	assert.ErrorAs(t, failure.Err, &te)
	assert.NotEmpty(t, failure.Message)
}

func TestClientDuplicateResponseFirstWins(t *testing.T) {
	c := NewClient("fake", fakeServer(modeDuplicate))

	res := c.DiscoverTools(context.Background())
	require.Equal(t, ResultSuccess, res.Type, "err: %v", res.Err)
	assert.Equal(t, []string{"echo"}, toolNames(res))

	// a later call starts from a fresh provider
	res = c.DiscoverTools(context.Background())
	require.Equal(t, ResultSuccess, res.Type)
	assert.Equal(t, []string{"echo"}, toolNames(res))
}

func TestClientResponseBeforeExit(t *testing.T) {
	for i := 0; i < 5; i++ {
		c := NewClient("fake", fakeServer(modeReplyExit))
		res := c.DiscoverTools(context.Background())
		require.Equal(t, ResultSuccess, res.Type, "run %d: %v", i, res.Err)
		assert.Equal(t, []string{"echo", "fail"}, toolNames(res))
	}
}

func TestClientProgress(t *testing.T) {
	var mu sync.Mutex
	var got []Progress
	c := NewClient("fake", fakeServer(modeProgress), WithProgress(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
	}))

	res := c.CallTool(context.Background(), CallToolParams{
		Name:          "echo",
		Arguments:     map[string]any{"text": "hi"},
		ProgressToken: "tok-1",
	})
	_, ok := res.(CallSuccess)
	require.True(t, ok, "expected success, got %#v", res)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "tok-1", got[0].Token)
	assert.Equal(t, float64(1), got[0].Progress)
	assert.Equal(t, float64(2), got[0].Total)
	assert.Equal(t, "halfway", got[0].Message)
}

func TestClientCallGenericMethod(t *testing.T) {
	c := NewClient("fake", fakeServer(modeNormal))

	raw, err := c.Call(context.Background(), "ping", nil, AnyResultSchema, CallOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	_, err = c.Call(context.Background(), "", nil, nil, CallOptions{})
	assert.Error(t, err)
}

func TestClientContextCancelled(t *testing.T) {
	c := NewClient("fake", fakeServer(modeHang))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res := c.DiscoverTools(ctx)
	require.Equal(t, ResultError, res.Type)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, StateClosed, c.State())
}
