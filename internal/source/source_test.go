package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rook-computer/inkpanel/internal/cache"
)

func testFetcher(c cache.Cache) *Fetcher {
	return NewFetcher(c, WithRetry(2, time.Second), WithRetryWait(time.Millisecond, 5*time.Millisecond))
}

func TestFetcherRetriesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, `{"value": 7}`)
	}))
	defer srv.Close()

	f := testFetcher(cache.NewMemory())
	var got struct{ Value int }
	if err := f.JSON(context.Background(), srv.URL, time.Minute, &got); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if got.Value != 7 || hits.Load() != 2 {
		t.Fatalf("value=%d hits=%d, want 7 after one retry", got.Value, hits.Load())
	}

	got.Value = 0
	if err := f.JSON(context.Background(), srv.URL, time.Minute, &got); err != nil {
		t.Fatalf("JSON (cached): %v", err)
	}
	if got.Value != 7 || hits.Load() != 2 {
		t.Fatalf("cached read hit the server: hits=%d", hits.Load())
	}
}

func TestFetcherEmptyBodyIsNoData(t *testing.T) {
	for _, body := range []string{"", "null", "{}", " [] "} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		var v any
		err := testFetcher(nil).JSON(context.Background(), srv.URL, 0, &v)
		srv.Close()
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("body %q: err = %v, want ErrNoData", body, err)
		}
	}
}

func TestFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	var v any
	err := testFetcher(nil).JSON(context.Background(), srv.URL, 0, &v)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want HTTP 404", err)
	}
}

const openMeteoBody = `{
  "current": {"time": "2026-01-05T14:15", "temperature_2m": 3.4, "apparent_temperature": 0.9,
              "weather_code": 61, "windspeed_10m": 12.5, "is_day": 0},
  "daily": {"time": ["2026-01-05", "2026-01-06"], "temperature_2m_max": [4.1, 5.0],
            "temperature_2m_min": [-1.2, 0.3], "precipitation_probability_max": [80, null],
            "weather_code": [61, 3]},
  "hourly": {"time": ["2026-01-05T00:00", "2026-01-05T01:00"], "temperature_2m": [1.0, 0.5]}
}`

func TestOpenMeteo(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, openMeteoBody)
	}))
	defer srv.Close()

	src := &OpenMeteo{Fetcher: testFetcher(nil), BaseURL: srv.URL}
	w, err := src.Weather(context.Background(), WeatherQuery{Lat: 52.52, Lon: 13.41, Timezone: "UTC"})
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if !strings.Contains(query, "latitude=52.52") || !strings.Contains(query, "timezone=UTC") {
		t.Fatalf("query = %s", query)
	}
	if w.Temp != 3.4 || w.Feels != 0.9 || w.Code != 61 || w.IsDay {
		t.Fatalf("current = %+v", w)
	}
	if !w.HasRange || w.Min != -1.2 || w.Max != 4.1 {
		t.Fatalf("range = %v %v..%v", w.HasRange, w.Min, w.Max)
	}
	if !w.HasRain || w.RainChance != 80 {
		t.Fatalf("rain = %v %v", w.HasRain, w.RainChance)
	}
	if len(w.Daily) != 2 || w.Daily[1].Code != 3 {
		t.Fatalf("daily = %+v", w.Daily)
	}
	if len(w.Hourly) != 2 {
		t.Fatalf("hourly = %+v", w.Hourly)
	}
	if w.Updated.Hour() != 14 || w.Updated.Minute() != 15 {
		t.Fatalf("updated = %v", w.Updated)
	}
}

func TestOpenMeteoWithoutTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"current": {"weather_code": 1}}`)
	}))
	defer srv.Close()
	src := &OpenMeteo{Fetcher: testFetcher(nil), BaseURL: srv.URL}
	if _, err := src.Weather(context.Background(), WeatherQuery{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestLabelAndCondition(t *testing.T) {
	cases := []struct {
		code  int
		label string
		cond  Condition
	}{
		{0, "Clear", ConditionClear},
		{2, "Partly cloudy", ConditionPartlyCloudy},
		{3, "Overcast", ConditionCloudy},
		{48, "Rime fog", ConditionFog},
		{65, "Heavy rain", ConditionRain},
		{86, "Heavy snow showers", ConditionSnow},
		{99, "Thunder hail", ConditionThunder},
		{42, "Code 42", ConditionUnknown},
		{-1, "Unknown", ConditionUnknown},
	}
	for _, tc := range cases {
		if got := Label(tc.code); got != tc.label {
			t.Fatalf("Label(%d) = %q, want %q", tc.code, got, tc.label)
		}
		if got := ConditionOf(tc.code); got != tc.cond {
			t.Fatalf("ConditionOf(%d) = %d, want %d", tc.code, got, tc.cond)
		}
	}
}

func TestBVG(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stops", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "Genslerstr" {
			t.Errorf("stop query = %q", r.URL.Query().Get("query"))
		}
		fmt.Fprint(w, `[{"id": "de:11000:900160017", "name": "Genslerstr. (Berlin)"}]`)
	})
	mux.HandleFunc("/stops/900160017/departures", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"departures": [
			{"when": "2026-01-05T14:20:00+01:00", "direction": "S+U Hauptbahnhof", "line": {"name": "M5"}},
			{"when": null, "plannedWhen": "2026-01-05T14:25:00+01:00", "direction": "Zingster Str.", "line": {"name": "M6"}},
			{"when": null, "direction": "Nowhere", "line": {"name": "M5"}}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := &BVG{Fetcher: testFetcher(nil), BaseURL: srv.URL}
	board, err := src.Departures(context.Background(), TransitQuery{Stop: "Genslerstr"})
	if err != nil {
		t.Fatalf("Departures: %v", err)
	}
	if board.Stop != "Genslerstr. (Berlin)" || len(board.Departures) != 3 {
		t.Fatalf("board = %+v", board)
	}
	loc := time.FixedZone("CET", 3600)
	if got := board.Departures[1].Clock(loc); got != "14:25" {
		t.Fatalf("planned time = %s, want 14:25", got)
	}
	if got := board.Departures[2].Clock(loc); got != "--:--" {
		t.Fatalf("missing time = %s", got)
	}

	filtered, err := src.Departures(context.Background(), TransitQuery{Stop: "Genslerstr", Line: "M5", Max: 1})
	if err != nil {
		t.Fatalf("Departures: %v", err)
	}
	if len(filtered.Departures) != 1 || filtered.Departures[0].Line != "M5" {
		t.Fatalf("filtered = %+v", filtered.Departures)
	}
}

func TestBVGUnknownStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()
	src := &BVG{Fetcher: testFetcher(nil), BaseURL: srv.URL}
	if _, err := src.Departures(context.Background(), TransitQuery{Stop: "Atlantis"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestShortStopID(t *testing.T) {
	cases := map[string]string{
		"de:11000:900160017": "900160017",
		"900160017":          "900160017",
		"a:b":                "b",
	}
	for in, want := range cases {
		if got := shortStopID(in); got != want {
			t.Fatalf("shortStopID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStub(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s := Stub{Now: func() time.Time { return now }}
	board, _ := s.Departures(context.Background(), TransitQuery{Stop: "Alex", Max: 3})
	if board.Stop != "Alex" || len(board.Departures) != 3 {
		t.Fatalf("board = %+v", board)
	}
	if !board.Departures[0].When.After(now) {
		t.Fatalf("stub departures should be in the future")
	}
	w, _ := s.Weather(context.Background(), WeatherQuery{})
	if len(w.Daily) != 5 || !w.Daily[0].Date.Equal(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("stub daily = %+v", w.Daily)
	}
}
