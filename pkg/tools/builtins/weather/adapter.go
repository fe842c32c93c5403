package weather

import "context"

// Unit selects the temperature scale.
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// Report is the current weather for one place.
type Report struct {
	City        string  `json:"city"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	IconURL     string  `json:"icon_url,omitempty"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Unit        Unit    `json:"unit"`
}

// Adapter looks up current weather. Errors should be *api.Error.
type Adapter interface {
	Current(ctx context.Context, city string, unit Unit) (*Report, error)
}
