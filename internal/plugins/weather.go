package plugins

import (
	"image"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/render/layout"
	"github.com/rook-computer/inkpanel/internal/source"
)

const weatherPad = 12

// Weather shows current conditions in one of three layouts.
type Weather struct {
	deps Deps
}

func (*Weather) Name() string        { return "weather" }
func (*Weather) DisplayName() string { return "Weather" }

func (*Weather) Defaults() map[string]any {
	return map[string]any{
		"lat":     source.DefaultLat,
		"lon":     source.DefaultLon,
		"tz":      source.DefaultTimezone,
		"variant": "split",
		"city":    "Berlin",
	}
}

func (*Weather) Schema() Schema {
	return Schema{
		"lat":     {Type: "number", Label: "Latitude", Step: 0.0001},
		"lon":     {Type: "number", Label: "Longitude", Step: 0.0001},
		"tz":      {Type: "string", Label: "Timezone"},
		"variant": enum("Layout", "split", "card", "panel"),
		"city":    {Type: "string", Label: "City"},
	}
}

func (p *Weather) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	q := source.WeatherQuery{
		Lat:      optFloat(cfg, "lat", source.DefaultLat),
		Lon:      optFloat(cfg, "lon", source.DefaultLon),
		Timezone: optString(cfg, "tz", source.DefaultTimezone),
	}
	w, err := p.deps.weather(tc.Preview).Weather(tc.Ctx(), q)
	if err != nil {
		return err
	}

	tc.FillBackground()
	area := image.Rect(bounds.Min.X+weatherPad, bounds.Min.Y+weatherPad, bounds.Max.X-weatherPad, bounds.Max.Y-weatherPad)
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return nil
	}
	wd := weatherDrawer{tc: tc, w: w, city: optString(cfg, "city", "Weather"), loc: p.deps.location()}
	if loc, err := time.LoadLocation(q.Timezone); err == nil {
		wd.loc = loc
	}
	switch strings.ToLower(optString(cfg, "variant", "split")) {
	case "card":
		wd.card(area)
	case "panel":
		wd.panel(area)
	default:
		wd.split(area)
	}
	return nil
}

type weatherDrawer struct {
	tc   *render.TileContext
	w    *source.Weather
	city string
	loc  *time.Location
}

func (d weatherDrawer) ink() uint8 { return d.tc.Color("black", palette.Black) }

func (d weatherDrawer) style(face render.FaceRole) render.TextStyle {
	return render.TextStyle{Face: face, Color: d.ink()}
}

func (d weatherDrawer) lineHeight(face render.FaceRole) int {
	m := d.tc.MeasureText("Ag", d.style(face))
	return m.Ascent + m.Descent
}

func (d weatherDrawer) icon(code int, x, y, size int) {
	if size <= 0 {
		return
	}
	img := weatherIcon(source.ConditionOf(code), size, d.tc.Palette)
	d.tc.DrawImage(img, image.Pt(x, y), palette.Nearest)
}

func (d weatherDrawer) drop(x, baseline, size int) {
	img := raindrop(size, d.tc.Palette)
	d.tc.DrawImage(img, image.Pt(x, baseline-img.Bounds().Dy()+2), palette.Nearest)
}

func (d weatherDrawer) temp(x, y int, v float64) {
	m := d.tc.DrawText(formatTemp(v), x, y, d.style(render.FaceTemp))
	d.tc.DrawText("°", x+m.Width+2, y, d.style(render.FaceTemp))
}

func (d weatherDrawer) rangeText(sep string) string {
	if !d.w.HasRange {
		return "--" + sep + "--"
	}
	return formatTemp(d.w.Min) + "°" + sep + formatTemp(d.w.Max) + "°"
}

// split: icon and label on the left, temperature, range and rain on the right.
func (d weatherDrawer) split(a image.Rectangle) {
	tc := d.tc
	left, right := layout.SplitVertical(a, int(float64(a.Dx())*0.45))
	leftW, rightX := left.Dx(), right.Min.X+12

	iconSize := min(110, max(48, a.Dy()-70), max(0, leftW-8))
	iconX, iconY := a.Min.X+4, a.Min.Y+4
	d.icon(d.w.Code, iconX, iconY, iconSize)

	label := render.Truncate(source.Label(d.w.Code), max(0, leftW-8), tc.Face(render.FaceBody))
	lm := tc.MeasureText(label, d.style(render.FaceBody))
	tc.DrawText(label, iconX+max(0, (iconSize-lm.Width)/2), iconY+iconSize+8, d.style(render.FaceBody))

	tempY := a.Min.Y + 4
	d.temp(rightX, tempY, d.w.Temp)
	rangeY := tempY + d.lineHeight(render.FaceTemp) + 8
	tc.DrawText(d.rangeText(" · "), rightX, rangeY, d.style(render.FaceBody))

	if d.w.HasRain {
		rainY := rangeY + d.lineHeight(render.FaceBody) + 6
		meta := tc.MeasureText("Ag", d.style(render.FaceMeta))
		d.drop(rightX, rainY+meta.Ascent, 8)
		tc.DrawText("Rain "+strconv.Itoa(int(math.Round(d.w.RainChance)))+"%", rightX+14, rainY, d.style(render.FaceMeta))
	}
}

// card: city and date on the left, icon centred, temperature on the right
// and a five day forecast strip along the bottom.
func (d weatherDrawer) card(a image.Rectangle) {
	tc := d.tc
	now := tc.Now.In(d.loc)
	leftW := int(float64(a.Dx()) * 0.38)
	rightW := int(float64(a.Dx()) * 0.26)
	const gutter = 10
	centerW := max(0, a.Dx()-leftW-rightW-2*gutter)
	leftX := a.Min.X + 4
	centerX := leftX + leftW + gutter
	rightX := centerX + centerW + gutter

	metaH := d.lineHeight(render.FaceMeta)
	bodyH := d.lineHeight(render.FaceBody)
	subH := d.lineHeight(render.FaceSub)
	forecastH := max(44, metaH+bodyH+18)
	contentBottom := a.Max.Y - forecastH
	if len(d.w.Daily) == 0 {
		contentBottom = a.Max.Y
	}

	cityY := a.Min.Y + 4
	tc.DrawTextFit(strings.ToUpper(d.city), leftX, cityY, leftW, d.style(render.FaceSub))
	dayY := cityY + subH + 6
	tc.DrawTextFit(strings.ToUpper(now.Format("Monday")), leftX, dayY, leftW, d.style(render.FaceBody))
	dateY := dayY + bodyH + 4
	tc.DrawText(now.Format("2 Jan"), leftX, dateY, d.style(render.FaceMeta))
	if d.w.HasRain {
		rainY := dateY + metaH + 8
		meta := tc.MeasureText("Ag", d.style(render.FaceMeta))
		d.drop(leftX, rainY+meta.Ascent, 6)
		tc.DrawText(strconv.Itoa(int(math.Round(d.w.RainChance)))+"%", leftX+12, rainY, d.style(render.FaceMeta))
	}

	iconSize := min(96, max(48, centerW), max(48, contentBottom-a.Min.Y-40))
	mid := a.Min.X + a.Dx()/2
	maxIconX := max(centerX, rightX-6-iconSize)
	iconX := max(centerX, min(mid-iconSize/2, maxIconX))
	iconY := a.Min.Y + max(6, (contentBottom-a.Min.Y-iconSize)/2-2)
	d.icon(d.w.Code, iconX, iconY, iconSize)

	label := render.Truncate(strings.ToUpper(source.Label(d.w.Code)), centerW, tc.Face(render.FaceBody))
	lm := tc.MeasureText(label, d.style(render.FaceBody))
	labelY := min(iconY+iconSize+2, contentBottom-bodyH)
	tc.DrawText(label, iconX+max(0, (iconSize-lm.Width)/2), labelY, d.style(render.FaceBody))

	tempH := d.lineHeight(render.FaceTemp)
	d.temp(rightX, a.Min.Y+max(6, (contentBottom-a.Min.Y-tempH)/2-6), d.w.Temp)
	rs := d.style(render.FaceMeta)
	rs.Align = render.TextAlignRight
	tc.DrawText(d.rangeText(" · "), a.Max.X, a.Min.Y+6, rs)

	if len(d.w.Daily) == 0 {
		return
	}
	tc.HLine(a.Min.X, a.Max.X, contentBottom, 1, d.ink())
	y0 := contentBottom + 8
	y1 := a.Max.Y - 8
	slots := min(5, len(d.w.Daily))
	colW := max(1, a.Dx()/slots)
	for i := 0; i < slots; i++ {
		day := d.w.Daily[i]
		colX := a.Min.X + i*colW
		cs := d.style(render.FaceMeta)
		cs.Align = render.TextAlignCenter
		tc.DrawText(strings.ToUpper(day.Date.Format("Mon")), colX+colW/2, y0, cs)

		const small = 32
		iy := y0 + metaH + 4
		d.icon(day.Code, colX+max(0, (colW-small)/2), iy, small)
		ty := iy + small + 4
		if ty+metaH <= y1 {
			tc.DrawText(formatTemp(day.Max)+"°/"+formatTemp(day.Min)+"°", colX+colW/2, ty, cs)
		}
	}
}

// panel: small icon with label, big temperature, city and a coloured band.
func (d weatherDrawer) panel(a image.Rectangle) {
	tc := d.tc
	now := tc.Now.In(d.loc)
	metaH := d.lineHeight(render.FaceMeta)
	bodyH := d.lineHeight(render.FaceBody)
	topH := max(34, 2*metaH+10)
	bandH := max(24, metaH+8)
	contentTop := a.Min.Y + topH
	contentBottom := a.Max.Y - bandH
	rightX := a.Min.X + int(float64(a.Dx())*0.55)

	const iconSize = 44
	d.icon(d.w.Code, a.Min.X, a.Min.Y+4, iconSize)
	label := render.Truncate(source.Label(d.w.Code), max(0, rightX-a.Min.X-36), tc.Face(render.FaceMeta))
	tc.DrawText(label, a.Min.X+iconSize+8, a.Min.Y+8, d.style(render.FaceMeta))

	ds := d.style(render.FaceMeta)
	ds.Align = render.TextAlignRight
	tc.DrawText(strings.ToUpper(now.Format("2 Jan")), a.Max.X, a.Min.Y+6, ds)

	tempH := d.lineHeight(render.FaceTemp)
	tempY := contentTop + max(0, (contentBottom-contentTop-tempH)/2-2)
	d.temp(a.Min.X, tempY, d.w.Temp)
	tc.DrawText(d.rangeText(" / "), a.Min.X, tempY+tempH+4, d.style(render.FaceMeta))

	cs := d.style(render.FaceBody)
	cs.Align = render.TextAlignRight
	city := render.Truncate(d.city, max(0, a.Max.X-rightX), tc.Face(render.FaceBody))
	tc.DrawText(city, a.Max.X, contentTop+max(0, (contentBottom-contentTop-bodyH)/2), cs)

	band := image.Rect(a.Min.X, contentBottom, a.Max.X, a.Max.Y)
	tc.Fill(band, tc.Color("blue", palette.Blue))
	msg := "Forecast"
	if d.w.HasRain {
		msg = "Rain " + strconv.Itoa(int(math.Round(d.w.RainChance))) + "%"
	}
	tc.DrawTextFit(msg, a.Min.X+4, contentBottom+4, max(0, a.Dx()-8), render.TextStyle{Face: render.FaceMeta, Color: tc.Color("white", palette.White)})
}

// formatTemp rounds to whole degrees without printing "-0".
func formatTemp(v float64) string {
	r := math.Round(v)
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}
