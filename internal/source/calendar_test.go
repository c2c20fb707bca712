package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rook-computer/inkpanel/internal/cache"
)

const testICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//inkpanel//test//EN
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20260101T000000Z
DTSTART:20260105T090000Z
DTEND:20260105T093000Z
RRULE:FREQ=DAILY;COUNT=3
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:offsite@test
DTSTAMP:20260101T000000Z
DTSTART;VALUE=DATE:20260107
DTEND;VALUE=DATE:20260109
SUMMARY:Offsite
END:VEVENT
BEGIN:VEVENT
UID:later@test
DTSTAMP:20260101T000000Z
DTSTART:20260301T090000Z
DTEND:20260301T100000Z
SUMMARY:Too late
END:VEVENT
END:VCALENDAR
`

func weekQuery(refs ...CalendarRef) CalendarQuery {
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return CalendarQuery{Calendars: refs, From: from, To: from.AddDate(0, 0, 7), Location: time.UTC}
}

func titles(events []Event) map[string]int {
	out := map[string]int{}
	for _, e := range events {
		out[e.Title]++
	}
	return out
}

func TestParseICSExpandsRecurrencesAndAllDay(t *testing.T) {
	ref := CalendarRef{Name: "Work", Color: "blue"}
	events, err := ParseICS([]byte(testICS), ref, weekQuery())
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	got := titles(events)
	if got["Standup"] != 3 || got["Offsite"] != 2 || got["Too late"] != 0 {
		t.Fatalf("titles = %v", got)
	}
	for _, e := range events {
		if e.Calendar != "Work" || e.Color != "blue" {
			t.Fatalf("event lost its calendar: %+v", e)
		}
		if e.Title == "Offsite" {
			if !e.AllDay || e.Start.Hour() != 0 || e.End.Sub(e.Start) != 24*time.Hour {
				t.Fatalf("all-day event = %+v", e)
			}
		}
		if e.Title == "Standup" && (e.AllDay || e.End.Sub(e.Start) != 30*time.Minute) {
			t.Fatalf("timed event = %+v", e)
		}
	}
}

func TestCalendarsReadsFeedsAndKeepsGoing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Accept") != "text/calendar" {
			t.Errorf("accept = %q", r.Header.Get("Accept"))
		}
		fmt.Fprint(w, testICS)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "home.ics")
	if err := os.WriteFile(local, []byte(testICS), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Calendars{Fetcher: testFetcher(cache.NewMemory())}
	q := weekQuery(
		CalendarRef{Type: CalendarICal, Name: "Remote", URL: srv.URL},
		CalendarRef{Type: CalendarLocal, Name: "Home", Path: local},
		CalendarRef{Type: "carrier-pigeon", Name: "Broken"},
	)
	events, err := c.Events(context.Background(), q)
	if err == nil || !strings.Contains(err.Error(), "Broken") {
		t.Fatalf("err = %v, want the broken calendar named", err)
	}
	if got := titles(events); got["Standup"] != 6 {
		t.Fatalf("titles = %v", got)
	}
	if events[0].Color != "blue" {
		t.Fatalf("first calendar colour = %q, want the first default", events[0].Color)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Start.Before(events[i-1].Start) {
			t.Fatalf("events not sorted at %d", i)
		}
	}

	if _, err := c.Events(context.Background(), q); err == nil {
		t.Fatalf("broken calendar recovered")
	}
	if hits.Load() != 1 {
		t.Fatalf("feed fetched %d times, want one cached fetch", hits.Load())
	}
}

func TestCalendarsGoogle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/team@example.com/events" || r.URL.Query().Get("key") != "k" {
			t.Errorf("request = %s", r.URL)
		}
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Errorf("recurring events not expanded upstream")
		}
		fmt.Fprint(w, `{"items": [
			{"summary": "Planning", "start": {"dateTime": "2026-01-06T10:00:00+01:00"}, "end": {"dateTime": "2026-01-06T11:00:00+01:00"}},
			{"summary": "Holiday", "start": {"date": "2026-01-08"}, "end": {"date": "2026-01-10"}},
			{"summary": "Gone", "status": "cancelled", "start": {"date": "2026-01-08"}, "end": {"date": "2026-01-09"}}
		]}`)
	}))
	defer srv.Close()

	c := &Calendars{Fetcher: testFetcher(nil), GoogleBaseURL: srv.URL}
	events, err := c.Events(context.Background(), weekQuery(CalendarRef{Type: CalendarGoogle, CalendarID: "team@example.com", APIKey: "k"}))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	got := titles(events)
	if got["Planning"] != 1 || got["Holiday"] != 2 || got["Gone"] != 0 {
		t.Fatalf("titles = %v", got)
	}
	for _, e := range events {
		if e.Title == "Planning" && e.Start.Hour() != 9 {
			t.Fatalf("timed event not moved to the query location: %v", e.Start)
		}
	}
}

func TestCalendarsGoogleNeedsKey(t *testing.T) {
	c := &Calendars{Fetcher: testFetcher(nil)}
	_, err := c.Events(context.Background(), weekQuery(CalendarRef{Type: CalendarGoogle, CalendarID: "x"}))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestStubEvents(t *testing.T) {
	q := weekQuery()
	q.From = q.From.Add(13 * time.Hour)
	events, _ := Stub{}.Events(context.Background(), q)
	if len(events) != 4 || !events[0].AllDay {
		t.Fatalf("stub events = %+v", events)
	}
	if day := events[0].Day(time.UTC); !day.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("stub day = %v", day)
	}
}
