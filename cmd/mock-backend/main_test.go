package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/provider/openaicompat"
	"github.com/rhuss/chorus/pkg/provider/openaiimage"
	"github.com/rhuss/chorus/pkg/tools/builtins/flight"
	"github.com/rhuss/chorus/pkg/tools/builtins/weather"
)

func newMock(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newMux())
	t.Cleanup(ts.Close)
	return ts
}

func collect(t *testing.T, ch <-chan provider.ChatEvent) (string, *provider.ToolCallSignal, provider.ChatEvent) {
	t.Helper()
	var text strings.Builder
	var call *provider.ToolCallSignal
	var last provider.ChatEvent
	for ev := range ch {
		switch ev.Type {
		case provider.ChatEventTextDelta:
			text.WriteString(ev.Delta)
		case provider.ChatEventToolCall:
			call = ev.ToolCall
		}
		last = ev
	}
	return text.String(), call, last
}

func TestChatStreamsText(t *testing.T) {
	ts := newMock(t)
	c := openaicompat.NewClient("openai", ts.URL+"/v1", "key", time.Second)

	ch, err := c.StreamChat(context.Background(), &provider.ChatRequest{
		Model:    "mock",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	text, call, last := collect(t, ch)
	if text != "Hello, nice day!" || call != nil || last.Type != provider.ChatEventDone {
		t.Errorf("text=%q call=%v last=%v", text, call, last.Type)
	}
}

func TestChatFunctionCall(t *testing.T) {
	ts := newMock(t)
	c := openaicompat.NewClient("openai", ts.URL+"/v1", "key", time.Second)

	ch, err := c.StreamChat(context.Background(), &provider.ChatRequest{
		Model:     "mock",
		Messages:  []api.Message{{Role: api.RoleUser, Content: "What is the weather in Paris?"}},
		Functions: []provider.FunctionDefinition{{Name: "get_current_weather"}},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	_, call, _ := collect(t, ch)
	if call == nil || call.Name != "get_current_weather" || call.Arguments != `{"city":"Paris"}` {
		t.Errorf("tool call = %+v", call)
	}
}

func TestChatSummarizesFunctionResult(t *testing.T) {
	ts := newMock(t)
	c := openaicompat.NewClient("openai", ts.URL+"/v1", "key", time.Second)

	ch, err := c.StreamChat(context.Background(), &provider.ChatRequest{
		Model: "mock",
		Messages: []api.Message{
			{Role: api.RoleUser, Content: "weather?"},
			{Role: api.RoleFunction, Name: "get_current_weather", Content: "rainy"},
		},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	text, _, _ := collect(t, ch)
	if text != "Here is what get_current_weather returned: rainy" {
		t.Errorf("text = %q", text)
	}
}

func TestChatPolicyRejection(t *testing.T) {
	ts := newMock(t)
	c := openaicompat.NewClient("openai", ts.URL+"/v1", "key", time.Second)

	_, err := c.StreamChat(context.Background(), &provider.ChatRequest{
		Model:    "mock",
		Messages: []api.Message{{Role: api.RoleUser, Content: "break the policy"}},
	})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindProviderRejection || !apiErr.PolicyViolation {
		t.Fatalf("err = %v, want a policy rejection", err)
	}
}

func TestImageGeneration(t *testing.T) {
	ts := newMock(t)
	a := openaiimage.New(ts.URL+"/v1", "key", time.Second)

	img, err := a.GenerateImage(context.Background(), "a red fox", "dall-e-3")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !strings.HasPrefix(img.URL, "data:image/png;base64,") || img.RevisedPrompt != "a red fox (dall-e-3)" {
		t.Errorf("image = %+v", img)
	}
}

func TestWeatherAndFlight(t *testing.T) {
	ts := newMock(t)
	ctx := context.Background()

	report, err := weather.NewOpenWeatherMap(ts.URL, "key", ts.Client()).Current(ctx, "Oslo", weather.Celsius)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if report.City != "Oslo" || report.Temperature != 7.5 || report.Humidity != 81 {
		t.Errorf("report = %+v", report)
	}
	if _, err := weather.NewOpenWeatherMap(ts.URL, "key", ts.Client()).Current(ctx, "Atlantis", weather.Celsius); err == nil {
		t.Error("expected an error for an unknown city")
	}

	info, err := flight.NewAviationStack(ts.URL, "key", ts.Client()).Flight(ctx, "BA142")
	if err != nil {
		t.Fatalf("Flight: %v", err)
	}
	if info.FlightNumber != "BA142" || info.Departure.IATA != "LHR" || info.Arrival.IATA != "DEL" {
		t.Errorf("info = %+v", info)
	}
}
