package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"studio/internal/domain"
)

// CaptionGeometry is the placement of a caption on a frame of known height.
// X is the horizontal centre and Y the text baseline.
type CaptionGeometry struct {
	FontSize    int
	X           int
	Y           int
	StrokeWidth int
	Fill        color.RGBA
	Stroke      color.RGBA
}

// Geometry scales the caption to the source frame size.
func Geometry(c domain.Caption, width, height int) CaptionGeometry {
	c.Normalize()
	fs := int(math.Round(float64(height) * float64(c.SizePercent) / 100))
	y := height - int(math.Round(0.7*float64(fs)))
	if c.Position == domain.CaptionTop {
		y = int(math.Round(1.5 * float64(fs)))
	}
	return CaptionGeometry{
		FontSize:    fs,
		X:           width / 2,
		Y:           y,
		StrokeWidth: int(math.Round(float64(fs) / 10)),
		Fill:        rgba(c.Color),
		Stroke:      rgba(c.Color.Contrast()),
	}
}

func rgba(c domain.CaptionColor) color.RGBA {
	if c == domain.CaptionBlack {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{255, 255, 255, 255}
}

// LoadFont parses a TTF/OTF file, or the embedded Go Bold face when path is
// empty.
func LoadFont(path string) (*opentype.Font, error) {
	data := gobold.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// Overlay is a caption rasterised once and composited onto every frame.
type Overlay struct {
	layer *image.RGBA
}

// NewOverlay renders the stroke in the contrasting colour first, then the
// fill on top, into a layer covering only the text's bounds.
func NewOverlay(f *opentype.Font, c domain.Caption, width, height int) (*Overlay, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	g := Geometry(c, width, height)
	if g.FontSize <= 0 {
		return nil, fmt.Errorf("compositor: frame height %d too small for caption", height)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(g.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{Face: face}
	bounds, advance := d.BoundString(c.Text)
	x := g.X - advance.Ceil()/2

	pad := g.StrokeWidth/2 + 1
	r := image.Rect(
		x+bounds.Min.X.Floor()-pad, g.Y+bounds.Min.Y.Floor()-pad,
		x+bounds.Max.X.Ceil()+pad, g.Y+bounds.Max.Y.Ceil()+pad,
	)

	mask := image.NewAlpha(r)
	d.Dst = mask
	d.Src = image.Opaque
	d.Dot = fixed.P(x, g.Y)
	d.DrawString(c.Text)

	layer := image.NewRGBA(r)
	if g.StrokeWidth > 0 {
		stroke := image.NewUniform(g.Stroke)
		rad := float64(g.StrokeWidth) / 2
		reach := int(math.Ceil(rad))
		for dy := -reach; dy <= reach; dy++ {
			for dx := -reach; dx <= reach; dx++ {
				if float64(dx*dx+dy*dy) > rad*rad {
					continue
				}
				draw.DrawMask(layer, r, stroke, image.Point{}, mask, r.Min.Sub(image.Pt(dx, dy)), draw.Over)
			}
		}
	}
	draw.DrawMask(layer, r, image.NewUniform(g.Fill), image.Point{}, mask, r.Min, draw.Over)

	return &Overlay{layer: layer}, nil
}

// Bounds reports the overlay's footprint in canvas coordinates.
func (o *Overlay) Bounds() image.Rectangle { return o.layer.Rect }

func (o *Overlay) DrawOn(dst draw.Image) {
	r := o.layer.Rect.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, o.layer, r.Min, draw.Over)
}

// Preview is the cosmetic overlay placement for a playing preview. It is
// never recorded.
type Preview struct {
	Text          string  `json:"text"`
	Position      string  `json:"position"`
	OffsetPercent float64 `json:"offset_percent"`
	FontPx        float64 `json:"font_px"`
	Color         string  `json:"color"`
	ShadowColor   string  `json:"shadow_color"`
}

// PreviewLayout approximates the recorded geometry for a display of the
// given height: top captions sit 5% from the top edge, bottom ones 10% from
// the bottom.
func PreviewLayout(c domain.Caption, displayHeight int) Preview {
	c.Normalize()
	offset := 10.0
	if c.Position == domain.CaptionTop {
		offset = 5
	}
	return Preview{
		Text:          c.Text,
		Position:      string(c.Position),
		OffsetPercent: offset,
		FontPx:        math.Round(float64(displayHeight)*float64(c.SizePercent)/100*10) / 10,
		Color:         string(c.Color),
		ShadowColor:   string(c.Color.Contrast()),
	}
}
