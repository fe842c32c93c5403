package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/engine"
)

func runTurn(t *testing.T, r TurnRunner, ctx context.Context) error {
	t.Helper()
	return r.RunTurn(ctx, "conv_test", engine.Utterance{Text: "hi"}, engine.DiscardSink{})
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next TurnRunner) TurnRunner {
			return TurnRunnerFunc(func(ctx context.Context, id string, u engine.Utterance, sink engine.RenderSink) error {
				order = append(order, name+":before")
				err := next.RunTurn(ctx, id, u, sink)
				order = append(order, name+":after")
				return err
			})
		}
	}

	handler := TurnRunnerFunc(func(context.Context, string, engine.Utterance, engine.RenderSink) error {
		order = append(order, "handler")
		return nil
	})

	runTurn(t, Chain(mw("first"), mw("second"), mw("third"))(handler), context.Background())

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}
	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := TurnRunnerFunc(func(context.Context, string, engine.Utterance, engine.RenderSink) error {
		panic("test panic")
	})

	err := runTurn(t, Recovery()(handler), context.Background())
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T: %v", err, err)
	}
	if apiErr.Kind != api.ErrorKindTransport {
		t.Errorf("error kind = %q, want %q", apiErr.Kind, api.ErrorKindTransport)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
}

func TestRecoveryPassesThroughErrors(t *testing.T) {
	want := api.NewTurnInFlightError("conv_test")
	handler := TurnRunnerFunc(func(context.Context, string, engine.Utterance, engine.RenderSink) error {
		return want
	})

	if err := runTurn(t, Recovery()(handler), context.Background()); err != want {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string
	handler := TurnRunnerFunc(func(ctx context.Context, _ string, _ engine.Utterance, _ engine.RenderSink) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	runTurn(t, RequestID()(handler), context.Background())

	if len(capturedID) != 36 {
		t.Errorf("request ID = %q, want a UUID", capturedID)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string
	handler := TurnRunnerFunc(func(ctx context.Context, _ string, _ engine.Utterance, _ engine.RenderSink) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	runTurn(t, RequestID()(handler), ctx)

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := TurnRunnerFunc(func(ctx context.Context, _ string, _ engine.Utterance, _ engine.RenderSink) error {
		ids[RequestIDFromContext(ctx)] = true
		return nil
	})

	wrapped := RequestID()(handler)
	for range 100 {
		runTurn(t, wrapped, context.Background())
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := TurnRunnerFunc(func(context.Context, string, engine.Utterance, engine.RenderSink) error {
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	Logging(logger)(handler).RunTurn(ctx, "conv_log", engine.Utterance{Text: "hi", BackendID: "gpt-4"}, engine.DiscardSink{})

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "conversation_id=conv_log", "backend=gpt-4", "turn served"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnRejection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := TurnRunnerFunc(func(context.Context, string, engine.Utterance, engine.RenderSink) error {
		return api.NewNotFoundError("conversation conv_x not found")
	})

	runTurn(t, Logging(logger)(handler), context.Background())

	output := buf.String()
	if !strings.Contains(output, "turn rejected") {
		t.Errorf("log output missing 'turn rejected' in:\n%s", output)
	}
	if !strings.Contains(output, "conv_x not found") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
