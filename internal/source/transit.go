package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	bvgURL     = "https://v6.bvg.transport.rest"
	transitTTL = 60 * time.Second
	// DefaultMaxDepartures caps a board when the caller passes 0.
	DefaultMaxDepartures = 8
)

// Departure is one upcoming trip from a stop. A zero When means the
// upstream sent no time.
type Departure struct {
	When      time.Time
	Line      string
	Direction string
}

// Clock formats the departure time as HH:MM in loc, or "--:--".
func (d Departure) Clock(loc *time.Location) string {
	if d.When.IsZero() {
		return "--:--"
	}
	if loc != nil {
		return d.When.In(loc).Format("15:04")
	}
	return d.When.Format("15:04")
}

// Board is the departure list of one stop.
type Board struct {
	Stop       string
	Departures []Departure
}

// TransitQuery selects a stop by free-text name.
type TransitQuery struct {
	Stop string
	// Line keeps only departures of this line name when set.
	Line string
	Max  int
}

type TransitSource interface {
	Departures(ctx context.Context, q TransitQuery) (*Board, error)
}

// BVG reads Berlin public transport departures from transport.rest.
type BVG struct {
	Fetcher *Fetcher
	BaseURL string
	// Window is the look-ahead in minutes; 0 means a full day.
	Window int
}

type bvgStop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bvgDeparture struct {
	When        string `json:"when"`
	PlannedWhen string `json:"plannedWhen"`
	Direction   string `json:"direction"`
	Line        struct {
		Name string `json:"name"`
	} `json:"line"`
}

func (b *BVG) base() string {
	if b.BaseURL != "" {
		return strings.TrimRight(b.BaseURL, "/")
	}
	return bvgURL
}

func (b *BVG) Departures(ctx context.Context, q TransitQuery) (*Board, error) {
	stop, err := b.findStop(ctx, q.Stop)
	if err != nil {
		return nil, err
	}
	window := b.Window
	if window <= 0 {
		window = 1440
	}
	depURL := fmt.Sprintf("%s/stops/%s/departures?duration=%d", b.base(), url.PathEscape(shortStopID(stop.ID)), window)

	var raw json.RawMessage
	if err := b.Fetcher.JSON(ctx, depURL, transitTTL, &raw); err != nil {
		return nil, fmt.Errorf("transit %s: %w", stop.Name, err)
	}
	deps, err := decodeDepartures(raw)
	if err != nil {
		return nil, fmt.Errorf("transit %s: %w", stop.Name, err)
	}

	limit := q.Max
	if limit <= 0 {
		limit = DefaultMaxDepartures
	}
	board := &Board{Stop: stop.Name}
	for _, d := range deps {
		line := d.Line.Name
		if line == "" {
			line = "Tram"
		}
		if q.Line != "" && line != q.Line {
			continue
		}
		when := d.When
		if when == "" {
			when = d.PlannedWhen
		}
		dep := Departure{Line: line, Direction: d.Direction}
		if t, err := time.Parse(time.RFC3339, when); err == nil {
			dep.When = t
		}
		board.Departures = append(board.Departures, dep)
		if len(board.Departures) >= limit {
			break
		}
	}
	return board, nil
}

func (b *BVG) findStop(ctx context.Context, query string) (bvgStop, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return bvgStop{}, fmt.Errorf("transit: %w: empty stop name", ErrNoData)
	}
	stopsURL := fmt.Sprintf("%s/stops?query=%s&results=1", b.base(), url.QueryEscape(query))
	var stops []bvgStop
	if err := b.Fetcher.JSON(ctx, stopsURL, transitTTL, &stops); err != nil {
		return bvgStop{}, fmt.Errorf("transit %s: %w", query, err)
	}
	if len(stops) == 0 || stops[0].ID == "" {
		return bvgStop{}, fmt.Errorf("transit %s: %w: no stop id", query, ErrNoData)
	}
	if stops[0].Name == "" {
		stops[0].Name = query
	}
	return stops[0], nil
}

// shortStopID reduces an IFOPT id like de:11000:900110521 to the numeric
// station id the departures endpoint expects.
func shortStopID(id string) string {
	parts := strings.Split(id, ":")
	if len(parts) >= 3 {
		return parts[2]
	}
	return parts[len(parts)-1]
}

// decodeDepartures accepts both the bare array and the {"departures": []}
// envelope that newer API versions return.
func decodeDepartures(raw json.RawMessage) ([]bvgDeparture, error) {
	var list []bvgDeparture
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env struct {
		Departures []bvgDeparture `json:"departures"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode departures: %w", err)
	}
	return env.Departures, nil
}

var stubLines = []struct {
	offset    time.Duration
	line      string
	direction string
}{
	{2 * time.Minute, "M10", "S+U Hauptbahnhof"},
	{5 * time.Minute, "M5", "Zingster Str."},
	{9 * time.Minute, "M10", "Warschauer Str."},
	{12 * time.Minute, "M6", "S Hackescher Markt"},
	{17 * time.Minute, "M5", "S+U Hauptbahnhof"},
	{21 * time.Minute, "M10", "S+U Hauptbahnhof"},
	{26 * time.Minute, "M6", "Riesaer Str."},
	{31 * time.Minute, "M5", "Zingster Str."},
}

// StubBoard returns sample departures for stop, relative to now.
func StubBoard(stop string, now time.Time, limit int) *Board {
	if limit <= 0 {
		limit = DefaultMaxDepartures
	}
	board := &Board{Stop: stop}
	for _, l := range stubLines {
		if len(board.Departures) >= limit {
			break
		}
		board.Departures = append(board.Departures, Departure{When: now.Add(l.offset), Line: l.line, Direction: l.direction})
	}
	return board
}

func (s Stub) Departures(_ context.Context, q TransitQuery) (*Board, error) {
	return StubBoard(q.Stop, s.now(), q.Max), nil
}
