package plugins

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/source"
)

const (
	calendarPad      = 12
	calendarIconSize = 24
	monthCardsPerDay = 2
)

var (
	errCalendarFullscreen = errors.New("calendar needs a fullscreen 1x1 layout")
	errNoCalendars        = errors.New("no calendars configured")
)

var weekdayLabels = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// Calendar shows events from iCal feeds, local .ics files and Google
// calendars as a month grid, a multi-day week or a single day.
type Calendar struct {
	deps Deps
}

func (*Calendar) Name() string        { return "calendar" }
func (*Calendar) DisplayName() string { return "Calendar" }

func (*Calendar) Defaults() map[string]any {
	return map[string]any{
		"view":          "week",
		"calendars":     []any{},
		"tz":            source.DefaultTimezone,
		"show_calendar": false,
		"days_in_week":  7,
		"location":      "Berlin",
		"min_hour":      6,
		"max_hour":      20,
	}
}

func (*Calendar) Schema() Schema {
	colors := []string{"black", "blue", "red", "yellow", "orange", "green", "white"}
	return Schema{
		"view":          enum("View", "month", "week", "day"),
		"tz":            {Type: "string", Label: "Timezone"},
		"show_calendar": {Type: "boolean", Label: "Show Calendar Name"},
		"days_in_week":  number("Days in Week View", 3, 7),
		"location":      {Type: "string", Label: "Location"},
		"min_hour":      number("Grid Start Hour", 0, 23),
		"max_hour":      number("Grid End Hour", 1, 24),
		"calendars": {
			Type:     "list",
			Label:    "Calendars",
			ItemType: "object",
			Help:     "Add one or more sources. Fill only the fields that match the selected Type.",
			ItemFields: []ItemField{
				{Key: "type", Label: "Type", Type: "enum", Options: []string{source.CalendarICal, source.CalendarGoogle, source.CalendarLocal}},
				{Key: "name", Label: "Name", Type: "text", Placeholder: "Label"},
				{Key: "color", Label: "Color", Type: "enum", Options: colors},
				{Key: "url", Label: "iCal URL", Type: "text", Placeholder: "https://.../calendar.ics"},
				{Key: "path", Label: "Local .ics path", Type: "text", Placeholder: "/path/to/calendar.ics"},
				{Key: "calendar_id", Label: "Google Calendar ID", Type: "text", Placeholder: "calendar@group.calendar.google.com"},
				{Key: "api_key", Label: "Google API key", Type: "text", Placeholder: "API key"},
			},
		},
	}
}

func (p *Calendar) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	if !tc.Grid.Fullscreen() {
		return errCalendarFullscreen
	}
	tz := optString(cfg, "tz", source.DefaultTimezone)
	loc := p.deps.location()
	if l, err := time.LoadLocation(tz); err == nil {
		loc = l
	}
	now := tc.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := midnight(now.In(loc))

	view := strings.ToLower(optString(cfg, "view", "week"))
	from, to := today, today.AddDate(0, 0, 7)
	switch view {
	case "day":
		to = today.AddDate(0, 0, 1)
	case "month":
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, 0)
	}

	refs := calendarRefs(cfg["calendars"])
	if len(refs) == 0 && !tc.Preview {
		return errNoCalendars
	}
	events, err := p.deps.calendar(tc.Preview).Events(tc.Ctx(), source.CalendarQuery{
		Calendars: refs, From: from, To: to, Location: loc,
	})
	if err != nil {
		if len(events) == 0 {
			return err
		}
		tc.Log().Errorf("calendar", "%v", err)
	}

	weather, err := p.deps.weather(tc.Preview).Weather(tc.Ctx(), source.WeatherQuery{
		Lat: source.DefaultLat, Lon: source.DefaultLon, Timezone: tz,
	})
	if err != nil {
		tc.Log().Infof("calendar", "no weather for the header: %v", err)
		weather = nil
	}

	tc.FillBackground()
	area := image.Rect(bounds.Min.X+calendarPad, bounds.Min.Y+calendarPad, bounds.Max.X-calendarPad, bounds.Max.Y-calendarPad)
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return nil
	}
	d := calendarDrawer{
		tc:       tc,
		loc:      loc,
		today:    today,
		byDay:    groupByDay(events, loc),
		weather:  weather,
		location: optString(cfg, "location", "Berlin"),
		showCal:  optBool(cfg, "show_calendar", false),
	}
	d.startHour = clampInt(optInt(cfg, "min_hour", 6), 0, 23)
	d.endHour = clampInt(optInt(cfg, "max_hour", 20), d.startHour+1, 24)

	switch view {
	case "month":
		d.month(area)
	case "day":
		d.day(area)
	default:
		d.week(area, clampInt(optInt(cfg, "days_in_week", 7), 3, 7))
	}
	return nil
}

// calendarRefs reads the calendars option. Plain strings are iCal URLs.
func calendarRefs(v any) []source.CalendarRef {
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []map[string]any:
		for _, m := range list {
			items = append(items, m)
		}
	case []string:
		for _, s := range list {
			items = append(items, s)
		}
	}
	var refs []source.CalendarRef
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if u := strings.TrimSpace(it); u != "" {
				refs = append(refs, source.CalendarRef{Type: source.CalendarICal, URL: u})
			}
		case map[string]any:
			refs = append(refs, source.CalendarRef{
				Type:       strings.ToLower(optString(it, "type", source.CalendarICal)),
				Name:       optString(it, "name", ""),
				Color:      strings.ToLower(optString(it, "color", "")),
				URL:        optString(it, "url", ""),
				Path:       optString(it, "path", ""),
				CalendarID: optString(it, "calendar_id", ""),
				APIKey:     optString(it, "api_key", ""),
			})
		}
	}
	return refs
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string { return t.Format(time.DateOnly) }

// groupByDay buckets events by start date, all-day events first.
func groupByDay(events []source.Event, loc *time.Location) map[string][]source.Event {
	out := make(map[string][]source.Event)
	for _, e := range events {
		k := dayKey(e.Day(loc))
		out[k] = append(out[k], e)
	}
	for _, day := range out {
		source.SortEvents(day)
	}
	return out
}

// eventBlock is a timed event placed on the hour grid. Start and End are
// fractional hours; Lane counts from 0 up to Lanes-1.
type eventBlock struct {
	Event      source.Event
	Day        string
	Start, End float64
	Lane       int
	Lanes      int
}

func fractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

// assignLanes clips timed events to [startHour, endHour) and spreads
// overlapping ones over side by side lanes. A block's lane count is the
// highest number of events running at once during that block.
func assignLanes(events []source.Event, loc *time.Location, startHour, endHour int) []eventBlock {
	var blocks []eventBlock
	for _, e := range events {
		if e.AllDay {
			continue
		}
		start, end := e.Start.In(loc), e.End.In(loc)
		if !end.After(start) {
			end = start.Add(30 * time.Minute)
		}
		sf, ef := fractionalHour(start), fractionalHour(end)
		if !midnight(end).Equal(midnight(start)) {
			ef = 24
		}
		if ef <= float64(startHour) || sf >= float64(endHour) {
			continue
		}
		blocks = append(blocks, eventBlock{
			Event: e,
			Day:   dayKey(start),
			Start: max(sf, float64(startHour)),
			End:   min(ef, float64(endHour)),
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Day != blocks[j].Day {
			return blocks[i].Day < blocks[j].Day
		}
		return blocks[i].Start < blocks[j].Start
	})

	for lo := 0; lo < len(blocks); {
		hi := lo
		for hi < len(blocks) && blocks[hi].Day == blocks[lo].Day {
			hi++
		}
		day := blocks[lo:hi]
		var laneEnds []float64
		for i := range day {
			placed := false
			for lane, end := range laneEnds {
				if end <= day[i].Start {
					laneEnds[lane] = day[i].End
					day[i].Lane = lane
					placed = true
					break
				}
			}
			if !placed {
				day[i].Lane = len(laneEnds)
				laneEnds = append(laneEnds, day[i].End)
			}
		}
		spreadLanes(day)
		lo = hi
	}
	return blocks
}

func spreadLanes(day []eventBlock) {
	var edges []float64
	for _, b := range day {
		edges = append(edges, b.Start, b.End)
	}
	sort.Float64s(edges)
	for i := range day {
		most := 1
		for k := 0; k+1 < len(edges); k++ {
			mid := (edges[k] + edges[k+1]) / 2
			if mid < day[i].Start || mid >= day[i].End {
				continue
			}
			active := 0
			for _, other := range day {
				if other.Start <= mid && mid < other.End {
					active++
				}
			}
			most = max(most, active)
		}
		day[i].Lanes = most
		if most == 1 {
			day[i].Lane = 0
		} else if day[i].Lane >= most {
			day[i].Lane %= most
		}
	}
}

type calendarDrawer struct {
	tc       *render.TileContext
	loc      *time.Location
	today    time.Time
	byDay    map[string][]source.Event
	weather  *source.Weather
	location string
	showCal  bool

	startHour, endHour int
}

func (d calendarDrawer) ink() uint8 { return d.tc.Color("black", palette.Black) }

func (d calendarDrawer) lineHeight(face render.FaceRole) int {
	m := d.tc.MeasureText("Ag", render.TextStyle{Face: face})
	return m.Ascent + m.Descent
}

func (d calendarDrawer) text(s string, x, y int, face render.FaceRole) render.TextMetrics {
	return d.tc.DrawText(s, x, y, render.TextStyle{Face: face, Color: d.ink()})
}

func (d calendarDrawer) title(e source.Event) string {
	if d.showCal && e.Calendar != "" {
		return e.Calendar + ": " + e.Title
	}
	return e.Title
}

func weekend(day time.Time) bool {
	return day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
}

// header draws the date on the left and the location with today's range
// on the right. It returns the height used.
func (d calendarDrawer) header(a image.Rectangle) int {
	d.text(strings.ToUpper(d.today.Format("02 Jan")), a.Min.X, a.Min.Y, render.FaceSub)
	right := strings.ToUpper(strings.TrimSpace(d.location))
	if d.weather != nil && d.weather.HasRange {
		temps := fmt.Sprintf("%s° / %s°", formatTemp(d.weather.Min), formatTemp(d.weather.Max))
		right = strings.TrimSpace(right + " " + temps)
	}
	if right != "" {
		d.tc.DrawText(right, a.Max.X, a.Min.Y, render.TextStyle{Face: render.FaceSub, Color: d.ink(), Align: render.TextAlignRight})
	}
	return d.lineHeight(render.FaceSub) + 4
}

func (d calendarDrawer) setDot(x, y int, idx uint8) {
	if image.Pt(x, y).In(d.tc.Bounds) {
		d.tc.Surface.SetColorIndex(x, y, idx)
	}
}

// dither shades r with a sparse checkerboard so a colour reads as a tint.
func (d calendarDrawer) dither(r image.Rectangle, idx uint8) {
	for y := r.Min.Y; y < r.Max.Y; y += 2 {
		for x := r.Min.X + (y/2)%2; x < r.Max.X; x += 4 {
			d.setDot(x, y, idx)
		}
	}
}

func (d calendarDrawer) dottedH(x0, x1, y int, idx uint8) {
	for x := min(x0, x1); x <= max(x0, x1); x += 2 {
		d.setDot(x, y, idx)
	}
}

func (d calendarDrawer) dottedV(x, y0, y1 int, idx uint8) {
	for y := min(y0, y1); y <= max(y0, y1); y += 2 {
		d.setDot(x, y, idx)
	}
}

// card draws an event as a rounded box in its calendar colour with up to
// two lines of title.
func (d calendarDrawer) card(r image.Rectangle, title, colorName string, face render.FaceRole) {
	r = r.Intersect(d.tc.Bounds)
	if r.Dx() < 3 || r.Dy() < 3 {
		return
	}
	bg := d.tc.Color(colorName, palette.Blue)
	fg := d.tc.Color("white", palette.White)
	switch strings.ToLower(colorName) {
	case "yellow", "white":
		fg = d.ink()
	}
	d.tc.Fill(r, bg)
	render.DrawBorder(d.tc.Surface, r, render.Border{Width: 1, Radius: 3, Style: render.BorderSolid, Color: "black"}, d.tc.Palette)

	lh := max(d.lineHeight(face), 1)
	lines := render.Wrap(title, r.Dx()-6, d.tc.Face(face))
	maxLines := clampInt((r.Dy()-2)/lh, 1, 2)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for i, line := range lines {
		d.tc.DrawText(line, r.Min.X+3, r.Min.Y+1+i*lh, render.TextStyle{Face: face, Color: fg})
	}
}

func (d calendarDrawer) month(a image.Rectangle) {
	top := a.Min.Y + d.header(a)
	metaH := d.lineHeight(render.FaceMeta)
	labelsY := top
	gridTop := top + metaH + 4
	cellW := max(1, a.Dx()/7)
	cellH := max(1, (a.Max.Y-gridTop)/6)
	for i, label := range weekdayLabels {
		d.text(label, a.Min.X+i*cellW+2, labelsY, render.FaceMeta)
	}

	first := time.Date(d.today.Year(), d.today.Month(), 1, 0, 0, 0, 0, d.loc)
	offset := (int(first.Weekday()) + 6) % 7
	day := first.AddDate(0, 0, -offset)
	red := d.tc.Color("red", palette.Red)
	cardH := metaH + 2
	for row := 0; row < 6; row++ {
		for col := 0; col < 7; col++ {
			cell := image.Rect(a.Min.X+col*cellW, gridTop+row*cellH, a.Min.X+(col+1)*cellW, gridTop+(row+1)*cellH)
			d.monthCell(cell, day, cardH, red)
			day = day.AddDate(0, 0, 1)
		}
	}
}

func (d calendarDrawer) monthCell(cell image.Rectangle, day time.Time, cardH int, red uint8) {
	ink := d.ink()
	if weekend(day) {
		d.dither(cell.Inset(1), red)
	}
	d.dottedH(cell.Min.X, cell.Max.X, cell.Min.Y, ink)
	d.dottedH(cell.Min.X, cell.Max.X, cell.Max.Y, ink)
	d.dottedV(cell.Min.X, cell.Min.Y, cell.Max.Y, ink)
	d.dottedV(cell.Max.X, cell.Min.Y, cell.Max.Y, ink)
	d.text(fmt.Sprint(day.Day()), cell.Min.X+2, cell.Min.Y+2, render.FaceMeta)
	if day.Equal(d.today) {
		d.tc.Outline(cell.Inset(1), ink)
	}

	events := d.byDay[dayKey(day)]
	y := cell.Min.Y + 14
	for _, e := range events[:min(len(events), monthCardsPerDay)] {
		if y+cardH > cell.Max.Y-2 {
			break
		}
		d.card(image.Rect(cell.Min.X+2, y, cell.Max.X-2, y+cardH), d.title(e), e.Color, render.FaceMeta)
		y += cardH + 2
	}
	if extra := len(events) - monthCardsPerDay; extra > 0 {
		d.text(fmt.Sprintf("+%d", extra), cell.Min.X+2, cell.Max.Y-cardH-2, render.FaceMeta)
	}
}

// hourGrid is the time axis shared by the day and week views.
type hourGrid struct {
	top, bottom int
	hourH       int
	labelX      int
	left, right int
}

func (d calendarDrawer) newHourGrid(a image.Rectangle, top int) hourGrid {
	hours := d.endHour - d.startHour
	labelW := d.tc.MeasureText(fmt.Sprintf("%02d:00", d.endHour), render.TextStyle{Face: render.FaceMeta}).Width + 6
	return hourGrid{
		top:    top,
		bottom: a.Max.Y,
		hourH:  max(1, (a.Max.Y-top)/hours),
		labelX: a.Min.X,
		left:   a.Min.X + labelW,
		right:  a.Max.X,
	}
}

func (d calendarDrawer) drawHours(g hourGrid) {
	for h := 0; h <= d.endHour-d.startHour; h++ {
		y := g.top + h*g.hourH
		d.text(fmt.Sprintf("%02d:00", d.startHour+h), g.labelX, y-6, render.FaceMeta)
		d.dottedH(g.left, g.right, y, d.ink())
	}
}

// drawBlocks places the timed events of the days in columns on the grid.
func (d calendarDrawer) drawBlocks(g hourGrid, columns map[string]image.Rectangle, events []source.Event) {
	bodyH := d.lineHeight(render.FaceBody)
	for _, b := range assignLanes(events, d.loc, d.startHour, d.endHour) {
		col, ok := columns[b.Day]
		if !ok {
			continue
		}
		laneW := max(1, (col.Dx()-4)/max(b.Lanes, 1))
		x := col.Min.X + 2 + b.Lane*laneW
		y := g.top + int((b.Start-float64(d.startHour))*float64(g.hourH))
		h := max(bodyH+2, int((b.End-b.Start)*float64(g.hourH))-2)
		title := render.Truncate(d.title(b.Event), laneW-4, d.tc.Face(render.FaceBody))
		d.card(image.Rect(x, y+1, x+laneW-2, y+1+h), title, b.Event.Color, render.FaceBody)
	}
}

func (d calendarDrawer) firstAllDay(day time.Time) (source.Event, bool) {
	for _, e := range d.byDay[dayKey(day)] {
		if e.AllDay {
			return e, true
		}
	}
	return source.Event{}, false
}

func (d calendarDrawer) day(a image.Rectangle) {
	top := a.Min.Y + d.header(a)
	allDayH := d.lineHeight(render.FaceMeta) + 4
	g := d.newHourGrid(a, top+allDayH)
	col := image.Rect(g.left, g.top, g.right, g.bottom)

	if weekend(d.today) {
		d.dither(col, d.tc.Color("red", palette.Red))
	}
	if e, ok := d.firstAllDay(d.today); ok {
		d.card(image.Rect(g.left+2, top+1, g.right-2, top+allDayH-1), d.title(e), e.Color, render.FaceMeta)
	}
	d.drawHours(g)
	d.drawBlocks(g, map[string]image.Rectangle{dayKey(d.today): col}, d.byDay[dayKey(d.today)])
}

func (d calendarDrawer) week(a image.Rectangle, days int) {
	top := a.Min.Y + d.header(a)
	metaH := d.lineHeight(render.FaceMeta)
	labelY := top
	forecastY := labelY + metaH + 4
	allDayY := forecastY + calendarIconSize + 2
	g := d.newHourGrid(a, allDayY+metaH+4)
	colW := max(1, (g.right-g.left)/days)

	forecast := map[string]source.DayForecast{}
	if d.weather != nil {
		for _, f := range d.weather.Daily {
			forecast[dayKey(f.Date)] = f
		}
	}

	red := d.tc.Color("red", palette.Red)
	columns := make(map[string]image.Rectangle, days)
	var timed []source.Event
	for i := 0; i < days; i++ {
		day := d.today.AddDate(0, 0, i)
		x := g.left + i*colW
		col := image.Rect(x, g.top, x+colW, g.bottom)
		columns[dayKey(day)] = col
		timed = append(timed, d.byDay[dayKey(day)]...)

		if weekend(day) {
			d.dither(col, red)
		}
		label := strings.ToUpper(day.Format("Mon 02"))
		d.tc.DrawText(label, x+colW/2, labelY, render.TextStyle{Face: render.FaceMeta, Color: d.ink(), Align: render.TextAlignCenter})

		if f, ok := forecast[dayKey(day)]; ok {
			temp := formatTemp(f.Max) + "°"
			tw := d.tc.MeasureText(temp, render.TextStyle{Face: render.FaceMeta}).Width
			ix := x + max(0, (colW-calendarIconSize-4-tw)/2)
			d.tc.DrawImage(weatherIcon(source.ConditionOf(f.Code), calendarIconSize, d.tc.Palette), image.Pt(ix, forecastY), palette.Nearest)
			d.text(temp, ix+calendarIconSize+4, forecastY+2, render.FaceMeta)
		}
		if i > 0 {
			d.dottedV(x, g.top, g.bottom, d.ink())
		}
		if e, ok := d.firstAllDay(day); ok {
			d.card(image.Rect(x+1, allDayY+1, x+colW-1, allDayY+metaH+3), d.title(e), e.Color, render.FaceMeta)
		}
	}
	d.drawHours(g)
	d.drawBlocks(g, columns, timed)
}
