package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultLat      = 52.52
	DefaultLon      = 13.41
	DefaultTimezone = "Europe/Berlin"

	openMeteoURL = "https://api.open-meteo.com/v1/forecast"
	weatherTTL   = 300 * time.Second
)

// WeatherQuery locates a forecast.
type WeatherQuery struct {
	Lat      float64
	Lon      float64
	Timezone string
}

// Weather is the current conditions plus a short daily forecast.
type Weather struct {
	Temp      float64
	Feels     float64
	Code      int
	IsDay     bool
	WindSpeed float64
	// HasRange is false when the upstream sent no daily min/max.
	HasRange bool
	Min, Max float64
	HasRain  bool
	// RainChance is today's maximum precipitation probability in percent.
	RainChance float64
	Updated    time.Time
	Hourly     []HourlyTemp
	Daily      []DayForecast
}

type HourlyTemp struct {
	At   time.Time
	Temp float64
}

type DayForecast struct {
	Date time.Time
	Code int
	Max  float64
	Min  float64
}

// WeatherSource returns current weather. Implementations return ErrNoData
// rather than a partially filled Weather when the current temperature is
// unknown.
type WeatherSource interface {
	Weather(ctx context.Context, q WeatherQuery) (*Weather, error)
}

// OpenMeteo reads forecasts from the open-meteo API.
type OpenMeteo struct {
	Fetcher *Fetcher
	// BaseURL overrides the forecast endpoint.
	BaseURL string
}

type openMeteoResponse struct {
	Current struct {
		Time        string   `json:"time"`
		Temperature *float64 `json:"temperature_2m"`
		Apparent    *float64 `json:"apparent_temperature"`
		WeatherCode *int     `json:"weather_code"`
		WindSpeed   *float64 `json:"windspeed_10m"`
		IsDay       *int     `json:"is_day"`
	} `json:"current"`
	Daily struct {
		Time       []string   `json:"time"`
		Max        []float64  `json:"temperature_2m_max"`
		Min        []float64  `json:"temperature_2m_min"`
		RainChance []*float64 `json:"precipitation_probability_max"`
		Code       []int      `json:"weather_code"`
	} `json:"daily"`
	Hourly struct {
		Time []string  `json:"time"`
		Temp []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

func (o *OpenMeteo) Weather(ctx context.Context, q WeatherQuery) (*Weather, error) {
	if q.Timezone == "" {
		q.Timezone = DefaultTimezone
	}
	base := o.BaseURL
	if base == "" {
		base = openMeteoURL
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("current", "temperature_2m,apparent_temperature,weather_code,windspeed_10m,is_day")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weather_code")
	params.Set("hourly", "temperature_2m")
	params.Set("timezone", q.Timezone)

	var resp openMeteoResponse
	if err := o.Fetcher.JSON(ctx, base+"?"+params.Encode(), weatherTTL, &resp); err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}
	return resp.toWeather(location(q.Timezone))
}

func (r *openMeteoResponse) toWeather(loc *time.Location) (*Weather, error) {
	cur := r.Current
	if cur.Temperature == nil {
		return nil, fmt.Errorf("weather: %w: no current temperature", ErrNoData)
	}
	w := &Weather{Temp: *cur.Temperature, Feels: *cur.Temperature, IsDay: true}
	if cur.Apparent != nil {
		w.Feels = *cur.Apparent
	}
	if cur.WeatherCode != nil {
		w.Code = *cur.WeatherCode
	} else {
		w.Code = -1
	}
	if cur.WindSpeed != nil {
		w.WindSpeed = *cur.WindSpeed
	}
	if cur.IsDay != nil {
		w.IsDay = *cur.IsDay != 0
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", cur.Time, loc); err == nil {
		w.Updated = t
	}

	d := r.Daily
	if len(d.Min) > 0 && len(d.Max) > 0 {
		w.HasRange = true
		w.Min, w.Max = d.Min[0], d.Max[0]
	}
	if len(d.RainChance) > 0 && d.RainChance[0] != nil {
		w.HasRain = true
		w.RainChance = *d.RainChance[0]
	}
	n := min(len(d.Time), len(d.Code), len(d.Max), len(d.Min))
	for i := 0; i < n; i++ {
		date, err := time.ParseInLocation("2006-01-02", d.Time[i], loc)
		if err != nil {
			continue
		}
		w.Daily = append(w.Daily, DayForecast{Date: date, Code: d.Code[i], Max: d.Max[i], Min: d.Min[i]})
	}

	h := r.Hourly
	for i := 0; i < min(len(h.Time), len(h.Temp)); i++ {
		at, err := time.ParseInLocation("2006-01-02T15:04", h.Time[i], loc)
		if err != nil {
			continue
		}
		w.Hourly = append(w.Hourly, HourlyTemp{At: at, Temp: h.Temp[i]})
	}
	return w, nil
}

func location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StubWeather is fixed sample data for previews, with forecast days
// starting the day after now.
func StubWeather(now time.Time) *Weather {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daily := []DayForecast{
		{Code: 1, Max: 3, Min: -2},
		{Code: 2, Max: 4, Min: -1},
		{Code: 3, Max: 5, Min: 0},
		{Code: 45, Max: 2, Min: -1},
		{Code: 61, Max: 1, Min: -2},
	}
	for i := range daily {
		daily[i].Date = day.AddDate(0, 0, i+1)
	}
	return &Weather{
		Temp:       2,
		Feels:      1,
		Code:       1,
		IsDay:      true,
		WindSpeed:  10,
		HasRange:   true,
		Min:        -3,
		Max:        4,
		HasRain:    true,
		RainChance: 20,
		Daily:      daily,
	}
}

// Condition groups WMO weather codes by how they are drawn.
type Condition int

const (
	ConditionUnknown Condition = iota
	ConditionClear
	ConditionPartlyCloudy
	ConditionCloudy
	ConditionFog
	ConditionRain
	ConditionSnow
	ConditionThunder
)

// ConditionOf classifies a WMO weather code.
func ConditionOf(code int) Condition {
	switch code {
	case 0, 1:
		return ConditionClear
	case 2:
		return ConditionPartlyCloudy
	case 3:
		return ConditionCloudy
	case 45, 48:
		return ConditionFog
	case 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 80, 81, 82:
		return ConditionRain
	case 71, 73, 75, 77, 85, 86:
		return ConditionSnow
	case 95, 96, 99:
		return ConditionThunder
	}
	return ConditionUnknown
}

var wmoLabels = map[int]string{
	0:  "Clear",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Rime fog",
	51: "Drizzle",
	53: "Drizzle",
	55: "Drizzle",
	56: "Freezing drizzle",
	57: "Freezing drizzle",
	61: "Rain",
	63: "Rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Freezing rain",
	71: "Snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Showers",
	81: "Showers",
	82: "Heavy showers",
	85: "Snow showers",
	86: "Heavy snow showers",
	95: "Thunder",
	96: "Thunder hail",
	99: "Thunder hail",
}

// Label returns a short English description of a WMO weather code.
func Label(code int) string {
	if code < 0 {
		return "Unknown"
	}
	if l, ok := wmoLabels[code]; ok {
		return l
	}
	return fmt.Sprintf("Code %d", code)
}

// Stub serves sample data for every source.
type Stub struct {
	Now func() time.Time
}

func (s Stub) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Stub) Weather(context.Context, WeatherQuery) (*Weather, error) {
	return StubWeather(s.now()), nil
}
