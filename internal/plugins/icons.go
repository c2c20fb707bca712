package plugins

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/source"
)

// weatherIcon draws a size x size icon for cond on a transparent
// background. Shapes are scaled from a 110px reference drawing.
func weatherIcon(cond source.Condition, size int, pal *palette.Palette) image.Image {
	dc := gg.NewContext(size, size)
	s := float64(size)
	ink := pal.Color(palette.Black)
	sun := pal.Color(palette.Orange)

	drawSun := func() {
		cx, cy, r := s/2, s/2, s/4
		dc.SetColor(sun)
		dc.DrawCircle(cx, cy, r)
		dc.Fill()
		dc.SetLineWidth(math.Max(2, s/55))
		for i := 0; i < 8; i++ {
			a := float64(i) * math.Pi / 4
			reach := r + s*0.13
			if i%2 == 1 {
				reach = r + s*0.09*math.Sqrt2
			}
			dc.DrawLine(cx+math.Cos(a)*(r+2), cy+math.Sin(a)*(r+2), cx+math.Cos(a)*reach, cy+math.Sin(a)*reach)
		}
		dc.Stroke()
	}
	drawCloud := func() {
		cw, ch := s*0.7, s*0.35
		left, top := s*0.15, s*0.5
		right := left + cw
		dc.SetColor(ink)
		dc.DrawEllipse(left+ch/2, top, ch/2, ch)
		dc.DrawEllipse(left+ch*1.65, top-ch*0.2, ch*0.65, ch)
		dc.DrawEllipse(right-ch*0.5, top, ch*0.7, ch)
		dc.DrawRectangle(left, top, cw, ch)
		dc.Fill()
	}
	drops := func(snow bool) {
		y := s * 0.78
		dc.SetColor(ink)
		dc.SetLineWidth(math.Max(2, s/55))
		for i := 0; i < 3; i++ {
			x := s*0.2 + float64(i)*s*0.18
			if snow {
				dc.DrawCircle(x, y, math.Max(2, s*0.03))
				dc.Fill()
				continue
			}
			dc.DrawLine(x, y, x-s*0.055, y+s*0.11)
		}
		dc.Stroke()
	}

	switch cond {
	case source.ConditionClear:
		drawSun()
	case source.ConditionPartlyCloudy:
		drawSun()
		drawCloud()
	case source.ConditionCloudy:
		drawCloud()
	case source.ConditionFog:
		drawCloud()
		dc.SetColor(ink)
		dc.SetLineWidth(math.Max(2, s/55))
		for i := 0; i < 3; i++ {
			y := s*0.6 + float64(i)*s*0.09
			dc.DrawLine(6, y, s-6, y)
		}
		dc.Stroke()
	case source.ConditionRain:
		drawCloud()
		drops(false)
	case source.ConditionSnow:
		drawCloud()
		drops(true)
	case source.ConditionThunder:
		drawCloud()
		bx, by := s*0.5, s*0.62
		k := s / 110
		dc.SetColor(pal.Color(palette.Red))
		dc.SetLineWidth(math.Max(2, 3*k))
		dc.MoveTo(bx-6*k, by)
		dc.LineTo(bx+6*k, by)
		dc.LineTo(bx-4*k, by+18*k)
		dc.LineTo(bx+10*k, by+18*k)
		dc.LineTo(bx-8*k, by+40*k)
		dc.Stroke()
	default:
		dc.SetColor(ink)
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, s-1, s-1)
		dc.DrawLine(0, 0, s, s)
		dc.DrawLine(s, 0, 0, s)
		dc.Stroke()
	}
	return dc.Image()
}

// raindrop draws a filled drop with its tip at the top.
func raindrop(size int, pal *palette.Palette) image.Image {
	s := float64(size)
	dc := gg.NewContext(size, size*2)
	dc.SetColor(pal.Color(palette.Black))
	dc.DrawCircle(s/2, s*1.5, s/2)
	dc.MoveTo(s/2, 0)
	dc.LineTo(0, s*1.5)
	dc.LineTo(s, s*1.5)
	dc.ClosePath()
	dc.Fill()
	return dc.Image()
}
