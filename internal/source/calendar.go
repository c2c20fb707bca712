package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/apognu/gocal"
)

const (
	googleCalendarURL = "https://www.googleapis.com/calendar/v3/calendars"
	calendarTTL       = 300 * time.Second
)

// Calendar source types.
const (
	CalendarICal   = "ical_url"
	CalendarLocal  = "local"
	CalendarGoogle = "google"
)

// calendarColors are handed out in order to calendars without a colour.
var calendarColors = []string{"blue", "red", "green", "orange", "yellow", "black"}

// Event is one calendar entry. All-day events start at local midnight of
// their day and span exactly that day; multi-day ones are split per day.
type Event struct {
	Title    string
	Calendar string
	Color    string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// Day returns the event's start date in loc, at midnight.
func (e Event) Day(loc *time.Location) time.Time {
	t := e.Start
	if loc != nil && !e.AllDay {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CalendarRef names one calendar feed. Only the fields of its Type are used.
type CalendarRef struct {
	Type       string
	Name       string
	Color      string
	URL        string
	Path       string
	CalendarID string
	APIKey     string
}

// CalendarQuery asks for the events between From and To.
type CalendarQuery struct {
	Calendars []CalendarRef
	From, To  time.Time
	Location  *time.Location
}

func (q CalendarQuery) location() *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return time.Local
}

// CalendarSource lists events. A non-nil error may come together with the
// events of the calendars that could be read.
type CalendarSource interface {
	Events(ctx context.Context, q CalendarQuery) ([]Event, error)
}

// Calendars reads iCalendar feeds over HTTP or from disk and Google
// calendars through the public events API.
type Calendars struct {
	Fetcher *Fetcher
	// GoogleBaseURL overrides the Google Calendar endpoint.
	GoogleBaseURL string
}

func (c *Calendars) Events(ctx context.Context, q CalendarQuery) ([]Event, error) {
	var events []Event
	var errs []error
	for i, ref := range q.Calendars {
		if ref.Color == "" {
			ref.Color = calendarColors[i%len(calendarColors)]
		}
		got, err := c.calendar(ctx, ref, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("calendar %s: %w", ref.label(i), err))
			continue
		}
		events = append(events, got...)
	}
	SortEvents(events)
	return events, errors.Join(errs...)
}

func (ref CalendarRef) label(i int) string {
	if ref.Name != "" {
		return ref.Name
	}
	return fmt.Sprintf("#%d", i+1)
}

func (c *Calendars) calendar(ctx context.Context, ref CalendarRef, q CalendarQuery) ([]Event, error) {
	switch strings.ToLower(ref.Type) {
	case CalendarICal, "":
		u := strings.TrimSpace(ref.URL)
		if u == "" {
			return nil, fmt.Errorf("%w: no url", ErrNoData)
		}
		if rest, ok := strings.CutPrefix(u, "webcal://"); ok {
			u = "https://" + rest
		}
		data, err := c.Fetcher.Bytes(ctx, u, "text/calendar", calendarTTL)
		if err != nil {
			return nil, err
		}
		return ParseICS(data, ref, q)
	case CalendarLocal:
		if ref.Path == "" {
			return nil, fmt.Errorf("%w: no path", ErrNoData)
		}
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, err
		}
		return ParseICS(data, ref, q)
	case CalendarGoogle:
		return c.google(ctx, ref, q)
	}
	return nil, fmt.Errorf("unknown calendar type %q", ref.Type)
}

// ParseICS expands the events of an iCalendar document that fall between
// q.From and q.To, recurring ones included.
func ParseICS(data []byte, ref CalendarRef, q CalendarQuery) ([]Event, error) {
	from, to := q.From, q.To
	parser := gocal.NewParser(bytes.NewReader(data))
	parser.Start, parser.End = &from, &to
	if err := parser.Parse(); err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	loc := q.location()
	var events []Event
	for _, e := range parser.Events {
		if e.Start == nil {
			continue
		}
		title := strings.TrimSpace(e.Summary)
		if title == "" {
			title = "Untitled"
		}
		end := *e.Start
		if e.End != nil {
			end = *e.End
		}
		if isDateValue(e.RawStart.Value) {
			first := dateIn(*e.Start, loc)
			last := first
			if e.End != nil {
				last = dateIn(end, loc).AddDate(0, 0, -1)
			}
			events = append(events, allDay(title, ref, first, last)...)
			continue
		}
		events = append(events, Event{
			Title:    title,
			Calendar: ref.Name,
			Color:    ref.Color,
			Start:    e.Start.In(loc),
			End:      end.In(loc),
		})
	}
	return events, nil
}

// isDateValue reports whether a DTSTART value is a bare date (YYYYMMDD).
func isDateValue(v string) bool {
	return len(strings.TrimSpace(v)) == 8
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// allDay emits one event per day from first to last inclusive. A range that
// ends before it starts yields the first day only.
func allDay(title string, ref CalendarRef, first, last time.Time) []Event {
	if last.Before(first) {
		last = first
	}
	var out []Event
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		out = append(out, Event{
			Title:    title,
			Calendar: ref.Name,
			Color:    ref.Color,
			Start:    day,
			End:      day.AddDate(0, 0, 1),
			AllDay:   true,
		})
	}
	return out
}

type googleEvents struct {
	Items []struct {
		Status  string     `json:"status"`
		Summary string     `json:"summary"`
		Start   googleTime `json:"start"`
		End     googleTime `json:"end"`
	} `json:"items"`
}

type googleTime struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
}

func (c *Calendars) google(ctx context.Context, ref CalendarRef, q CalendarQuery) ([]Event, error) {
	if ref.CalendarID == "" || ref.APIKey == "" {
		return nil, fmt.Errorf("%w: calendar_id and api_key are required", ErrNoData)
	}
	base := googleCalendarURL
	if c.GoogleBaseURL != "" {
		base = strings.TrimRight(c.GoogleBaseURL, "/")
	}
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("timeMin", q.From.Format(time.RFC3339))
	params.Set("timeMax", q.To.Format(time.RFC3339))
	params.Set("key", ref.APIKey)
	u := fmt.Sprintf("%s/%s/events?%s", base, url.PathEscape(ref.CalendarID), params.Encode())

	var resp googleEvents
	if err := c.Fetcher.JSON(ctx, u, calendarTTL, &resp); err != nil {
		return nil, err
	}
	return googleToEvents(resp, ref, q.location()), nil
}

func googleToEvents(resp googleEvents, ref CalendarRef, loc *time.Location) []Event {
	var events []Event
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		title := strings.TrimSpace(item.Summary)
		if title == "" {
			title = "Untitled"
		}
		if item.Start.Date != "" {
			first, err := time.ParseInLocation(time.DateOnly, item.Start.Date, loc)
			if err != nil {
				continue
			}
			last := first
			if end, err := time.ParseInLocation(time.DateOnly, item.End.Date, loc); err == nil {
				last = end.AddDate(0, 0, -1)
			}
			events = append(events, allDay(title, ref, first, last)...)
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			end = start
		}
		events = append(events, Event{
			Title:    title,
			Calendar: ref.Name,
			Color:    ref.Color,
			Start:    start.In(loc),
			End:      end.In(loc),
		})
	}
	return events
}

// SortEvents orders events by start, all-day entries first on their day.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.AllDay && !b.AllDay
	})
}

// StubEvents returns sample events starting at day (a local midnight).
func StubEvents(day time.Time) []Event {
	base := day.Add(8 * time.Hour)
	return []Event{
		{Title: "All day event", Calendar: "Personal", Color: "yellow", Start: day, End: day.AddDate(0, 0, 1), AllDay: true},
		{Title: "Design review", Calendar: "Work", Color: "blue", Start: base, End: base.Add(time.Hour)},
		{Title: "Focus time", Calendar: "Work", Color: "orange", Start: base.Add(3 * time.Hour), End: base.Add(5 * time.Hour)},
		{Title: "Gym", Calendar: "Personal", Color: "red", Start: base.Add(25 * time.Hour), End: base.Add(26 * time.Hour)},
	}
}

func (s Stub) Events(_ context.Context, q CalendarQuery) ([]Event, error) {
	return StubEvents(dateIn(q.From.In(q.location()), q.location())), nil
}
