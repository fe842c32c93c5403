package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/tools"
)

const osloReply = `{"name":"Oslo","weather":[{"description":"light rain","icon":"10d"}],"main":{"temp":7.46,"humidity":81}}`

func newMockOWM(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %q, want /weather", r.URL.Path)
		}
		queries = append(queries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func TestWeather_Execute(t *testing.T) {
	srv, queries := newMockOWM(t, http.StatusOK, osloReply)
	p := New(NewOpenWeatherMap(srv.URL, "k", srv.Client()))

	var progress []string
	env := tools.Env{Progress: func(_ context.Context, text string, _ any) {
		progress = append(progress, text)
	}}

	res, err := p.Execute(context.Background(),
		tools.ToolCall{ID: "call_1", Name: toolName, Arguments: `{"city":"Oslo"}`}, env)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(progress) != 1 || !strings.Contains(progress[0], "Oslo") {
		t.Errorf("progress = %v", progress)
	}
	q := (*queries)[0]
	for _, want := range []string{"q=Oslo", "units=metric", "appid=k"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}

	rep, ok := res.Fragment.Data.(*Report)
	if !ok {
		t.Fatalf("Data = %T, want *Report", res.Fragment.Data)
	}
	if rep.City != "Oslo" || rep.Description != "light rain" || rep.Icon != "10d" || rep.Humidity != 81 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Temperature != 7.46 || rep.Unit != Celsius {
		t.Errorf("temperature = %v %s", rep.Temperature, rep.Unit)
	}
	if !strings.HasSuffix(rep.IconURL, "/img/wn/10d@2x.png") {
		t.Errorf("IconURL = %q", rep.IconURL)
	}
	if !strings.Contains(res.RawContent, `"city":"Oslo"`) {
		t.Errorf("RawContent = %s", res.RawContent)
	}
	if res.Fragment.Text != "Oslo: light rain, 7.5°C, humidity 81%" {
		t.Errorf("Text = %q", res.Fragment.Text)
	}
}

func TestWeather_Fahrenheit(t *testing.T) {
	srv, queries := newMockOWM(t, http.StatusOK, osloReply)
	p := New(NewOpenWeatherMap(srv.URL, "k", srv.Client()))

	res, err := p.Execute(context.Background(),
		tools.ToolCall{Name: toolName, Arguments: `{"city":"Oslo","unit":"fahrenheit"}`}, tools.Env{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains((*queries)[0], "units=imperial") {
		t.Errorf("query = %q", (*queries)[0])
	}
	if !strings.Contains(res.Fragment.Text, "°F") {
		t.Errorf("Text = %q", res.Fragment.Text)
	}
}

func TestWeather_InvalidArguments(t *testing.T) {
	p := New(NewOpenWeatherMap("http://unused.invalid", "k", nil))

	tests := []struct {
		name string
		args string
	}{
		{"not json", `{"city":`},
		{"empty city", `{"city":"  "}`},
		{"bad unit", `{"city":"Oslo","unit":"kelvin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Execute(context.Background(), tools.ToolCall{Name: toolName, Arguments: tt.args}, tools.Env{})
			if !errors.Is(err, &api.Error{Kind: api.ErrorKindSchemaMismatch}) {
				t.Errorf("err = %v, want schema_mismatch", err)
			}
		})
	}
}

func TestWeather_CityNotFound(t *testing.T) {
	srv, _ := newMockOWM(t, http.StatusNotFound, `{"cod":"404","message":"city not found"}`)
	p := New(NewOpenWeatherMap(srv.URL, "k", srv.Client()))

	_, err := p.Execute(context.Background(), tools.ToolCall{Name: toolName, Arguments: `{"city":"Atlantis"}`}, tools.Env{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if apiErr.Kind != api.ErrorKindProviderRejection || apiErr.Status != http.StatusNotFound {
		t.Errorf("err = %+v", apiErr)
	}
	if apiErr.Message != "city not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestWeather_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p := New(NewOpenWeatherMap(srv.URL, "k", http.DefaultClient))

	_, err := p.Execute(context.Background(), tools.ToolCall{Name: toolName, Arguments: `{"city":"Paris"}`}, tools.Env{})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if apiErr.Kind != api.ErrorKindTransport || apiErr.Provider != "openweathermap" {
		t.Errorf("err = %+v, want openweathermap transport_error", apiErr)
	}
}

func TestWeather_MalformedReply(t *testing.T) {
	srv, _ := newMockOWM(t, http.StatusOK, `{"name":"Oslo","weather":[]}`)
	p := New(NewOpenWeatherMap(srv.URL, "k", srv.Client()))

	_, err := p.Execute(context.Background(), tools.ToolCall{Name: toolName, Arguments: `{"city":"Oslo"}`}, tools.Env{})
	if !errors.Is(err, &api.Error{Kind: api.ErrorKindSchemaMismatch}) {
		t.Errorf("err = %v, want schema_mismatch", err)
	}
}

func TestWeather_Tools(t *testing.T) {
	p := New(nil)
	defs := p.Tools()
	if len(defs) != 1 || defs[0].Name != "get_current_weather" {
		t.Fatalf("Tools() = %+v", defs)
	}
	if !strings.Contains(string(defs[0].Parameters), `"required":["city"]`) {
		t.Errorf("parameters = %s", defs[0].Parameters)
	}
	if len(p.Collectors()) != 1 {
		t.Errorf("Collectors() = %d, want 1", len(p.Collectors()))
	}
}
