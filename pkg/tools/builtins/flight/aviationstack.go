package flight

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

// DefaultAviationStackURL is the public AviationStack API root.
const DefaultAviationStackURL = "https://api.aviationstack.com/v1"

const sourceName = "aviationstack"

// Endpoint is one end of a flight.
type Endpoint struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata,omitempty"`
	Terminal  string `json:"terminal,omitempty"`
	Gate      string `json:"gate,omitempty"`
	Scheduled string `json:"scheduled,omitempty"`
}

// Info describes a flight.
type Info struct {
	FlightNumber string   `json:"flightNumber"`
	Airline      string   `json:"airline,omitempty"`
	Status       string   `json:"status,omitempty"`
	Departure    Endpoint `json:"departure"`
	Arrival      Endpoint `json:"arrival"`
}

// Lookup finds flight information by flight number.
type Lookup interface {
	Flight(ctx context.Context, number string) (*Info, error)
}

// AviationStack implements Lookup against the AviationStack API.
type AviationStack struct {
	BaseURL    string
	AccessKey  string
	HTTPClient *http.Client
}

// NewAviationStack creates a client. An empty baseURL selects the public API.
func NewAviationStack(baseURL, accessKey string, client *http.Client) *AviationStack {
	if baseURL == "" {
		baseURL = DefaultAviationStackURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &AviationStack{BaseURL: strings.TrimRight(baseURL, "/"), AccessKey: accessKey, HTTPClient: client}
}

type asResponse struct {
	Data []struct {
		FlightStatus string `json:"flight_status"`
		Departure    asEnd  `json:"departure"`
		Arrival      asEnd  `json:"arrival"`
		Airline      struct {
			Name string `json:"name"`
		} `json:"airline"`
		Flight struct {
			IATA string `json:"iata"`
		} `json:"flight"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type asEnd struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata"`
	Terminal  string `json:"terminal"`
	Gate      string `json:"gate"`
	Scheduled string `json:"scheduled"`
}

func (e asEnd) endpoint() Endpoint {
	return Endpoint{Airport: e.Airport, IATA: e.IATA, Terminal: e.Terminal, Gate: e.Gate, Scheduled: e.Scheduled}
}

// Flight returns the most recent record for number.
func (a *AviationStack) Flight(ctx context.Context, number string) (*Info, error) {
	q := url.Values{}
	q.Set("access_key", a.AccessKey)
	q.Set("flight_iata", number)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/flights?"+q.Encode(), nil)
	if err != nil {
		return nil, api.NewTransportError(sourceName, fmt.Sprintf("creating request: %s", err))
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, api.Normalize(sourceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return nil, api.NewTransportError(sourceName, "reading response: "+err.Error())
	}

	var r asResponse
	decodeErr := json.Unmarshal(body, &r)

	// AviationStack reports some errors with a 200 status.
	if decodeErr == nil && r.Error != nil {
		status := resp.StatusCode
		if status == http.StatusOK {
			status = http.StatusBadRequest
		}
		return nil, api.NewProviderRejection(sourceName, status, r.Error.Message, false)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, api.NewTransportError(sourceName, fmt.Sprintf("flight service returned status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, api.NewSchemaMismatch(sourceName, "decoding flight response: "+decodeErr.Error())
	}
	if len(r.Data) == 0 {
		return nil, api.NewProviderRejection(sourceName, http.StatusNotFound, fmt.Sprintf("no flight found for %s", number), false)
	}

	d := r.Data[0]
	info := &Info{
		FlightNumber: d.Flight.IATA,
		Airline:      d.Airline.Name,
		Status:       d.FlightStatus,
		Departure:    d.Departure.endpoint(),
		Arrival:      d.Arrival.endpoint(),
	}
	if info.FlightNumber == "" {
		info.FlightNumber = number
	}
	return info, nil
}
