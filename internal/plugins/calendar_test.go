package plugins

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/source"
)

type fakeCalendar struct {
	events []source.Event
	err    error
	last   source.CalendarQuery
	calls  int
}

func (f *fakeCalendar) Events(_ context.Context, q source.CalendarQuery) ([]source.Event, error) {
	f.calls++
	f.last = q
	return f.events, f.err
}

func calendarConfig(p *Calendar, view string) map[string]any {
	cfg := p.Defaults()
	cfg["view"] = view
	cfg["tz"] = "UTC"
	return cfg
}

func TestCalendarViewsWithStubData(t *testing.T) {
	live := &fakeCalendar{}
	p := &Calendar{deps: Deps{Calendar: live, Location: time.UTC}}
	for _, view := range []string{"month", "week", "day", "bogus"} {
		t.Run(view, func(t *testing.T) {
			tc := newTile(t, 800, 480, true)
			if err := p.Render(tc, tc.Bounds, calendarConfig(p, view)); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if count(tc.Surface, palette.Yellow) == 0 {
				t.Fatalf("all-day card missing")
			}
			if count(tc.Surface, palette.Black) == 0 {
				t.Fatalf("nothing drawn")
			}
		})
	}
	if live.calls != 0 {
		t.Fatalf("preview render hit the live source")
	}
}

func TestCalendarDayViewPlacesTimedEvents(t *testing.T) {
	today := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	live := &fakeCalendar{events: []source.Event{
		{Title: "Dentist", Color: "green", Start: today.Add(10 * time.Hour), End: today.Add(11 * time.Hour)},
		{Title: "Tomorrow", Color: "orange", Start: today.Add(34 * time.Hour), End: today.Add(35 * time.Hour)},
	}}
	p := &Calendar{deps: Deps{Calendar: live, Weather: failingWeather{}, Location: time.UTC}}
	cfg := calendarConfig(p, "day")
	cfg["calendars"] = []any{map[string]any{"type": "local", "path": "/tmp/home.ics", "name": "Home"}}

	tc := newTile(t, 800, 480, false)
	if err := p.Render(tc, tc.Bounds, cfg); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(live.last.Calendars) != 1 || live.last.Calendars[0].Path != "/tmp/home.ics" || live.last.Calendars[0].Type != "local" {
		t.Fatalf("calendars = %+v", live.last.Calendars)
	}
	if !live.last.From.Equal(today) || !live.last.To.Equal(today.AddDate(0, 0, 1)) {
		t.Fatalf("range = %v .. %v, want one day", live.last.From, live.last.To)
	}
	if count(tc.Surface, palette.Green) == 0 {
		t.Fatalf("today's event not drawn")
	}
	if count(tc.Surface, palette.Orange) != 0 {
		t.Fatalf("tomorrow's event drawn in the day view")
	}
}

func TestCalendarMonthRange(t *testing.T) {
	live := &fakeCalendar{}
	p := &Calendar{deps: Deps{Calendar: live, Weather: failingWeather{}}}
	cfg := calendarConfig(p, "month")
	cfg["calendars"] = []any{"webcal://example.com/team.ics"}
	tc := newTile(t, 800, 480, false)
	if err := p.Render(tc, tc.Bounds, cfg); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !live.last.From.Equal(want) || !live.last.To.Equal(want.AddDate(0, 1, 0)) {
		t.Fatalf("range = %v .. %v", live.last.From, live.last.To)
	}
	if ref := live.last.Calendars[0]; ref.Type != source.CalendarICal || ref.URL != "webcal://example.com/team.ics" {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestCalendarErrors(t *testing.T) {
	p := &Calendar{deps: Deps{Calendar: &fakeCalendar{err: source.ErrNoData}, Weather: failingWeather{}}}

	tc := newTile(t, 400, 240, false)
	tc.Grid = render.GridInfo{Cols: 2, Rows: 2, ColSpan: 1, RowSpan: 1}
	if err := p.Render(tc, tc.Bounds, calendarConfig(p, "week")); !errors.Is(err, errCalendarFullscreen) {
		t.Fatalf("err = %v, want fullscreen error", err)
	}

	tc = newTile(t, 800, 480, false)
	if err := p.Render(tc, tc.Bounds, calendarConfig(p, "week")); !errors.Is(err, errNoCalendars) {
		t.Fatalf("err = %v, want no calendars", err)
	}

	cfg := calendarConfig(p, "week")
	cfg["calendars"] = []any{"https://example.com/a.ics"}
	if err := p.Render(tc, tc.Bounds, cfg); !errors.Is(err, source.ErrNoData) {
		t.Fatalf("err = %v, want the source error", err)
	}
}

func TestAssignLanes(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	at := func(title string, from, to float64) source.Event {
		return source.Event{
			Title: title,
			Start: day.Add(time.Duration(from * float64(time.Hour))),
			End:   day.Add(time.Duration(to * float64(time.Hour))),
		}
	}
	events := []source.Event{
		at("a", 9, 11),
		at("b", 10, 12),
		at("c", 11, 12),
		at("d", 13, 14),
		at("early", 5, 7),
		at("late", 21, 22),
		{Title: "all day", Start: day, End: day.AddDate(0, 0, 1), AllDay: true},
	}
	blocks := assignLanes(events, time.UTC, 6, 20)
	got := map[string]eventBlock{}
	for _, b := range blocks {
		got[b.Event.Title] = b
	}
	if len(blocks) != 5 {
		t.Fatalf("blocks = %d, want 5", len(blocks))
	}
	tests := []struct {
		title       string
		lane, lanes int
	}{
		{"a", 0, 2},
		{"b", 1, 2},
		{"c", 0, 2},
		{"d", 0, 1},
		{"early", 0, 1},
	}
	for _, tt := range tests {
		b := got[tt.title]
		if b.Lane != tt.lane || b.Lanes != tt.lanes {
			t.Fatalf("%s: lane %d of %d, want %d of %d", tt.title, b.Lane, b.Lanes, tt.lane, tt.lanes)
		}
	}
	if got["early"].Start != 6 || got["early"].End != 7 {
		t.Fatalf("early clipped to %v..%v", got["early"].Start, got["early"].End)
	}
}
