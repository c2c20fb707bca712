package render

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FaceRole names one of the shared font faces.
type FaceRole int

const (
	FaceBody FaceRole = iota
	FaceTitle
	FaceSub
	FaceTemp
	FaceMeta
)

// FontSizes are point sizes at 72 DPI, so one point is one pixel.
type FontSizes struct {
	Title float64
	Sub   float64
	Body  float64
	Temp  float64
	Meta  float64
}

var DefaultFontSizes = FontSizes{Title: 28, Sub: 20, Body: 17, Temp: 56, Meta: 16}

// FaceSet is the set of faces handed to one render. Faces keep glyph
// caches, so a FaceSet must not be shared between concurrent renders.
type FaceSet struct {
	Title font.Face
	Sub   font.Face
	Body  font.Face
	Temp  font.Face
	Meta  font.Face
}

// Face returns the face for role, falling back to Body.
func (fs *FaceSet) Face(role FaceRole) font.Face {
	var f font.Face
	switch role {
	case FaceTitle:
		f = fs.Title
	case FaceSub:
		f = fs.Sub
	case FaceTemp:
		f = fs.Temp
	case FaceMeta:
		f = fs.Meta
	}
	if f == nil {
		f = fs.Body
	}
	if f == nil {
		f = basicfont.Face7x13
	}
	return f
}

func (fs *FaceSet) Close() error {
	for _, f := range []font.Face{fs.Title, fs.Sub, fs.Body, fs.Temp, fs.Meta} {
		if f != nil {
			_ = f.Close()
		}
	}
	return nil
}

// FaceSource hands out a fresh FaceSet per render.
type FaceSource interface {
	NewFaceSet() *FaceSet
}

// Fonts holds parsed fonts and builds faces from them. Parsed fonts are
// read-only and safe to share.
type Fonts struct {
	regular *opentype.Font
	bold    *opentype.Font
	custom  *truetype.Font
	sizes   FontSizes
}

// LoadFonts parses the bundled Go fonts, or the TrueType file at path when
// path is set. Parse failures fall back to the bundled fonts and finally to
// the 7x13 bitmap font; they are logged, never returned.
func LoadFonts(path string, sizes FontSizes, logger Logger) *Fonts {
	if logger == nil {
		logger = noopLogger{}
	}
	if sizes == (FontSizes{}) {
		sizes = DefaultFontSizes
	}
	f := &Fonts{sizes: sizes}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			f.custom, err = truetype.Parse(data)
		}
		if err != nil {
			logger.Errorf("fonts", "custom font %s unusable, using Go fonts: %v", path, err)
		} else {
			logger.Infof("fonts", "loaded TrueType font %s", path)
			return f
		}
	}

	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		logger.Errorf("fonts", "font parse failed, using basicfont: %v", err)
		return f
	}
	f.regular = regular
	if bold, err := opentype.Parse(gobold.TTF); err != nil {
		logger.Errorf("fonts", "bold font parse failed, using regular: %v", err)
		f.bold = regular
	} else {
		f.bold = bold
	}
	return f
}

// BasicFonts returns a source that only uses the 7x13 bitmap font.
func BasicFonts() *Fonts { return &Fonts{sizes: DefaultFontSizes} }

func (f *Fonts) NewFaceSet() *FaceSet {
	return &FaceSet{
		Title: f.face(f.bold, f.sizes.Title),
		Sub:   f.face(f.regular, f.sizes.Sub),
		Body:  f.face(f.regular, f.sizes.Body),
		Temp:  f.face(f.regular, f.sizes.Temp),
		Meta:  f.face(f.regular, f.sizes.Meta),
	}
}

func (f *Fonts) face(otf *opentype.Font, size float64) font.Face {
	if f.custom != nil {
		return truetype.NewFace(f.custom, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	if otf == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

func (f *Fonts) String() string {
	switch {
	case f.custom != nil:
		return "truetype:custom"
	case f.regular != nil:
		return "opentype:go"
	default:
		return fmt.Sprintf("basicfont:%dx%d", basicfont.Face7x13.Width, basicfont.Face7x13.Height)
	}
}
