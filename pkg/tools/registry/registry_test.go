package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
)

// mockProvider implements FunctionProvider for testing.
type mockProvider struct {
	name       string
	toolDefs   []provider.FunctionDefinition
	execFn     func(context.Context, tools.ToolCall, tools.Env) (*tools.Result, error)
	collectors []prometheus.Collector
	closeErr   error
	closed     bool
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Tools() []provider.FunctionDefinition { return m.toolDefs }
func (m *mockProvider) Collectors() []prometheus.Collector { return m.collectors }
func (m *mockProvider) Close() error { m.closed = true; return m.closeErr }

func (m *mockProvider) Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
	if m.execFn != nil {
		return m.execFn(ctx, call, env)
	}
	return &tools.Result{RawContent: "default"}, nil
}

var _ FunctionProvider = (*mockProvider)(nil)

func defs(names ...string) []provider.FunctionDefinition {
	out := make([]provider.FunctionDefinition, len(names))
	for i, n := range names {
		out[i] = provider.FunctionDefinition{Name: n}
	}
	return out
}

func TestDispatch(t *testing.T) {
	d := New(time.Second)
	var gotEnv tools.Env
	err := d.Register(&mockProvider{
		name:     "weather",
		toolDefs: defs("get_current_weather"),
		execFn: func(_ context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
			gotEnv = env
			return &tools.Result{RawContent: "sunny " + call.Arguments}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := d.Dispatch(context.Background(),
		tools.ToolCall{ID: "call_1", Name: "get_current_weather", Arguments: `{"city":"Oslo"}`},
		tools.Env{TurnID: "turn_1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.ToolName != "get_current_weather" || res.RawContent != `sunny {"city":"Oslo"}` {
		t.Errorf("result = %+v", res)
	}
	if gotEnv.TurnID != "turn_1" {
		t.Errorf("env not forwarded: %+v", gotEnv)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := New(time.Second)
	_ = d.Register(&mockProvider{name: "weather", toolDefs: defs("get_current_weather")})

	_, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "get_current_wether"}, tools.Env{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindToolNotFound {
		t.Fatalf("error = %v, want tool_not_found", err)
	}
	if !strings.Contains(apiErr.Message, `did you mean "get_current_weather"`) {
		t.Errorf("message = %q", apiErr.Message)
	}

	_, err = d.Dispatch(context.Background(), tools.ToolCall{Name: "get_stock_price"}, tools.Env{})
	if !errors.As(err, &apiErr) || strings.Contains(apiErr.Message, "did you mean") {
		t.Errorf("unrelated name should not get a suggestion: %v", err)
	}
}

func TestDispatchBadArguments(t *testing.T) {
	d := New(time.Second)
	called := false
	_ = d.Register(&mockProvider{
		name:     "p",
		toolDefs: defs("t"),
		execFn: func(context.Context, tools.ToolCall, tools.Env) (*tools.Result, error) {
			called = true
			return &tools.Result{}, nil
		},
	})

	for _, args := range []string{`not json`, `["a"]`, `"str"`} {
		_, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "t", Arguments: args}, tools.Env{})
		if !errors.Is(err, &api.Error{Kind: api.ErrorKindSchemaMismatch}) {
			t.Errorf("args %q: error = %v, want schema_mismatch", args, err)
		}
	}
	if called {
		t.Error("provider must not run with invalid arguments")
	}

	// Empty arguments are treated as an empty object.
	if _, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "t"}, tools.Env{}); err != nil {
		t.Errorf("empty arguments: %v", err)
	}
}

func TestDispatchNormalizesErrors(t *testing.T) {
	d := New(time.Second)
	_ = d.Register(&mockProvider{
		name:     "p",
		toolDefs: defs("plain", "typed"),
		execFn: func(_ context.Context, call tools.ToolCall, _ tools.Env) (*tools.Result, error) {
			if call.Name == "typed" {
				return nil, api.NewProviderRejection("openweathermap", 401, "invalid key", false)
			}
			return nil, errors.New("boom")
		},
	})

	_, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "plain"}, tools.Env{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindTransport || apiErr.Provider != "plain" {
		t.Errorf("plain error = %+v", apiErr)
	}

	_, err = d.Dispatch(context.Background(), tools.ToolCall{Name: "typed"}, tools.Env{})
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindProviderRejection {
		t.Errorf("typed error = %+v", apiErr)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := New(time.Second)
	_ = d.Register(&mockProvider{
		name:     "p",
		toolDefs: defs("explode"),
		execFn: func(context.Context, tools.ToolCall, tools.Env) (*tools.Result, error) {
			panic("kaboom")
		},
	})

	res, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "explode"}, tools.Env{})
	if res != nil || err == nil {
		t.Fatalf("Dispatch = %v, %v; want error", res, err)
	}
	if !strings.Contains(err.Error(), "failed unexpectedly") {
		t.Errorf("error = %v", err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := New(20 * time.Millisecond)
	_ = d.Register(&mockProvider{
		name:     "p",
		toolDefs: defs("slow"),
		execFn: func(ctx context.Context, _ tools.ToolCall, _ tools.Env) (*tools.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	_, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "slow"}, tools.Env{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindTransport || apiErr.Message != "request timed out" {
		t.Errorf("error = %v, want transport timeout", err)
	}
}

func TestDispatchNilResult(t *testing.T) {
	d := New(time.Second)
	_ = d.Register(&mockProvider{
		name:     "p",
		toolDefs: defs("nothing"),
		execFn: func(context.Context, tools.ToolCall, tools.Env) (*tools.Result, error) {
			return nil, nil
		},
	})
	_, err := d.Dispatch(context.Background(), tools.ToolCall{Name: "nothing"}, tools.Env{})
	if !errors.Is(err, &api.Error{Kind: api.ErrorKindSchemaMismatch}) {
		t.Errorf("error = %v, want schema_mismatch", err)
	}
}

func TestRegisterConflict(t *testing.T) {
	d := New(0)
	if err := d.Register(&mockProvider{name: "a", toolDefs: defs("x", "y")}); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	err := d.Register(&mockProvider{name: "b", toolDefs: defs("z", "x")})
	if err == nil || !strings.Contains(err.Error(), `already registered by "a"`) {
		t.Fatalf("error = %v", err)
	}
	if d.Has("z") {
		t.Error("conflicting provider must not be partially registered")
	}
	if got := len(d.Definitions()); got != 2 {
		t.Errorf("Definitions len = %d, want 2", got)
	}
}

func TestRegisterCollectors(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "chorus_registry_test_total", Help: "test"})
	d := New(0)
	if err := d.Register(&mockProvider{name: "a", toolDefs: defs("a1"), collectors: []prometheus.Collector{c}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Registering the same collector again is tolerated.
	if err := New(0).Register(&mockProvider{name: "a", toolDefs: defs("a1"), collectors: []prometheus.Collector{c}}); err != nil {
		t.Errorf("re-register: %v", err)
	}
}

func TestClose(t *testing.T) {
	d := New(0)
	a := &mockProvider{name: "a", toolDefs: defs("a1")}
	b := &mockProvider{name: "b", toolDefs: defs("b1"), closeErr: errors.New("close failed")}
	_ = d.Register(a)
	_ = d.Register(b)

	if err := d.Close(); err == nil {
		t.Error("expected joined close error")
	}
	if !a.closed || !b.closed {
		t.Error("all providers should be closed")
	}
}
