package plugins

import (
	"errors"
	"image"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/source"
)

const (
	transitColTime = 70
	transitColLine = 50
	transitRowH    = 20
)

// Transit draws one departure table per configured stop.
type Transit struct {
	deps Deps
}

func (*Transit) Name() string        { return "transit" }
func (*Transit) DisplayName() string { return "Transit" }

func (*Transit) Defaults() map[string]any {
	return map[string]any{
		"stops":           []any{"Genslerstr", "Werneuchener Str"},
		"title_color":     "red",
		"line_bg":         "red",
		"line_text_color": "white",
		"max_rows":        8,
		"pad":             12,
	}
}

func (*Transit) Schema() Schema {
	return Schema{
		"stops":           {Type: "list", Label: "Stops", ItemType: "string"},
		"title_color":     enum("Title Color", "red", "blue", "black"),
		"line_bg":         enum("Line Badge", "red", "blue", "black"),
		"line_text_color": enum("Line Text", "white", "black"),
		"max_rows":        number("Max Rows", 1, 12),
		"pad":             number("Padding", 0, 30),
	}
}

type transitStyle struct {
	title    uint8
	badge    uint8
	badgeTxt uint8
	ink      uint8
	maxRows  int
}

func (p *Transit) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	tc.FillBackground()
	stops := optStrings(cfg, "stops", []string{"Genslerstr"})
	pad := clampInt(optInt(cfg, "pad", 12), 0, 30)
	style := transitStyle{
		title:    tc.Color(optString(cfg, "title_color", "red"), palette.Red),
		badge:    tc.Color(optString(cfg, "line_bg", "red"), palette.Red),
		badgeTxt: tc.Color(optString(cfg, "line_text_color", "white"), palette.White),
		ink:      tc.Color("black", palette.Black),
		maxRows:  clampInt(optInt(cfg, "max_rows", source.DefaultMaxDepartures), 1, 12),
	}

	src := p.deps.transit(tc.Preview)
	boards := make([]*source.Board, 0, len(stops))
	var errs []error
	for _, stop := range stops {
		board, err := src.Departures(tc.Ctx(), source.TransitQuery{Stop: stop, Max: style.maxRows})
		if err != nil {
			tc.Log().Errorf("transit", "stop %q: %v", stop, err)
			errs = append(errs, err)
			board = nil
		}
		boards = append(boards, board)
	}
	if len(errs) == len(stops) {
		return errors.Join(errs...)
	}

	x := bounds.Min.X + pad
	y := bounds.Min.Y + pad
	width := bounds.Dx() - 2*pad
	for i, board := range boards {
		if y >= bounds.Max.Y-pad {
			break
		}
		if board == nil {
			y = p.drawMissing(tc, x, y, width, stops[i], style)
			continue
		}
		y = p.drawBoard(tc, x, y, width, bounds.Max.Y-pad, board, style)
	}
	return nil
}

func (p *Transit) drawMissing(tc *render.TileContext, x, y, width int, stop string, style transitStyle) int {
	tc.DrawTextFit(stop, x, y, width, render.TextStyle{Face: render.FaceBody, Color: style.title})
	y += transitRowH
	tc.HLine(x, x+width, y, 1, style.ink)
	y += 8
	tc.DrawTextFit("No stop data", x, y, width, render.TextStyle{Face: render.FaceBody, Color: style.ink})
	return y + 28
}

func (p *Transit) drawBoard(tc *render.TileContext, x, y, width, bottom int, board *source.Board, style transitStyle) int {
	body := render.TextStyle{Face: render.FaceBody, Color: style.ink}
	tc.DrawTextFit(board.Stop, x, y, width, render.TextStyle{Face: render.FaceBody, Color: style.title})
	y += transitRowH
	tc.HLine(x, x+width, y, 1, style.ink)
	y += 8

	if len(board.Departures) == 0 {
		tc.DrawText("No departures", x, y, body)
		return y + 28
	}

	loc := p.deps.location()
	colDir := width - transitColTime - transitColLine - 8
	for i, dep := range board.Departures {
		if i >= style.maxRows || y+transitRowH > bottom {
			break
		}
		tc.DrawText(dep.Clock(loc), x, y, body)

		lineX := x + transitColTime
		line := render.Truncate(dep.Line, transitColLine-8, tc.Face(render.FaceBody))
		m := tc.MeasureText(line, body)
		boxW := min(transitColLine-4, m.Width+10)
		tc.Fill(image.Rect(lineX, y+2, lineX+boxW+1, y+2+m.Height+5), style.badge)
		tc.DrawText(line, lineX+5, y, render.TextStyle{Face: render.FaceBody, Color: style.badgeTxt})

		if colDir > 0 && dep.Direction != "" {
			tc.DrawTextFit(dep.Direction, x+transitColTime+transitColLine, y, colDir, body)
		}
		y += transitRowH
	}
	return y + 10
}
