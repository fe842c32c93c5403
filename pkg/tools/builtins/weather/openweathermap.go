package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rhuss/chorus/pkg/api"
)

const (
	// DefaultOpenWeatherMapURL is the current-weather endpoint.
	DefaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5"

	sourceName = "openweathermap"
)

// OpenWeatherMap implements Adapter against the OpenWeatherMap API.
type OpenWeatherMap struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewOpenWeatherMap creates an adapter. An empty baseURL selects the public API.
func NewOpenWeatherMap(baseURL, apiKey string, client *http.Client) *OpenWeatherMap {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherMapURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenWeatherMap{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: client,
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
}

type owmError struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}

// Current fetches the current weather for city.
func (o *OpenWeatherMap) Current(ctx context.Context, city string, unit Unit) (*Report, error) {
	units := "metric"
	if unit == Fahrenheit {
		units = "imperial"
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("units", units)
	q.Set("appid", o.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, api.NewTransportError(sourceName, fmt.Sprintf("creating request: %s", err))
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, api.Normalize(sourceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, api.NewTransportError(sourceName, "reading response: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var e owmError
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return nil, api.NewProviderRejection(sourceName, resp.StatusCode, e.Message, false)
		}
		return nil, api.NewTransportError(sourceName, fmt.Sprintf("weather service returned status %d", resp.StatusCode))
	}

	var r owmResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, api.NewSchemaMismatch(sourceName, "decoding weather response: "+err.Error())
	}
	if len(r.Weather) == 0 || r.Main == nil {
		return nil, api.NewSchemaMismatch(sourceName, "weather response is missing conditions")
	}

	rep := &Report{
		City:        r.Name,
		Description: r.Weather[0].Description,
		Icon:        r.Weather[0].Icon,
		Temperature: r.Main.Temp,
		Humidity:    r.Main.Humidity,
		Unit:        unit,
	}
	if rep.Icon != "" {
		rep.IconURL = "https://openweathermap.org/img/wn/" + rep.Icon + "@2x.png"
	}
	if rep.City == "" {
		rep.City = city
	}
	return rep, nil
}
