package visualizer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter-circle arc.
const kappa = 0.5522847498

type palette struct {
	background color.RGBA
	face       color.RGBA
	mask       color.RGBA
	bar        color.RGBA
	pulse      color.NRGBA
}

func newPalette(c Colors) (palette, error) {
	var p palette
	var err error
	if p.background, err = ParseHex(c.Background); err != nil {
		return p, err
	}
	if p.face, err = ParseHex(c.Face); err != nil {
		return p, err
	}
	if p.mask, err = ParseHex(c.Mask); err != nil {
		return p, err
	}
	if p.bar, err = ParseHex(c.Bar); err != nil {
		return p, err
	}
	pulse, err := ParseHex(c.Pulse)
	if err != nil {
		return p, err
	}
	p.pulse = color.NRGBA{R: pulse.R, G: pulse.G, B: pulse.B, A: uint8(math.Round(c.PulseAlpha * 255))}
	return p, nil
}

// Raster draws frames into a reusable RGBA canvas. Not safe for
// concurrent use; each front end owns one.
type Raster struct {
	cfg Config
	pal palette
	img *image.RGBA
	z   *vector.Rasterizer
}

func NewRaster(cfg Config) (*Raster, error) {
	pal, err := newPalette(cfg.Colors)
	if err != nil {
		return nil, err
	}
	return &Raster{
		cfg: cfg,
		pal: pal,
		img: image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		z:   vector.NewRasterizer(cfg.Width, cfg.Height),
	}, nil
}

// Draw renders f. The returned image is reused by the next call.
func (r *Raster) Draw(f Frame) *image.RGBA {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.pal.background), image.Point{}, draw.Src)

	r.disc(f.CX, f.CY, f.FaceRadius, r.pal.face)
	r.disc(f.CX, f.CY, f.MaskRadius, r.pal.mask)

	bar := color.NRGBA{R: r.pal.bar.R, G: r.pal.bar.G, B: r.pal.bar.B}
	for _, b := range f.Bars {
		bar.A = uint8(math.Round(b.Opacity * 255))
		if bar.A == 0 {
			continue
		}
		r.segment(b, bar)
	}

	if f.PulseRadius > 0 && r.pal.pulse.A > 0 {
		r.disc(f.CX, f.CY, f.PulseRadius, r.pal.pulse)
	}
	return r.img
}

// fill rasterises the path built by build, clipped to bounds.
func (r *Raster) fill(bounds image.Rectangle, c color.Color, build func(z *vector.Rasterizer, ox, oy float32)) {
	bounds = bounds.Intersect(r.img.Bounds())
	if bounds.Empty() {
		return
	}
	r.z.Reset(bounds.Dx(), bounds.Dy())
	r.z.DrawOp = draw.Over
	build(r.z, float32(bounds.Min.X), float32(bounds.Min.Y))
	r.z.Draw(r.img, bounds, image.NewUniform(c), image.Point{})
}

func (r *Raster) disc(cx, cy, radius float64, c color.Color) {
	if radius <= 0 {
		return
	}
	bounds := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	)
	r.fill(bounds, c, func(z *vector.Rasterizer, ox, oy float32) {
		x, y, rr := float32(cx)-ox, float32(cy)-oy, float32(radius)
		k := rr * kappa
		z.MoveTo(x+rr, y)
		z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
		z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
		z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
		z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
		z.ClosePath()
	})
}

// segment strokes a bar as a quad of width BarWidth.
func (r *Raster) segment(b Bar, c color.Color) {
	dx, dy := b.X1-b.X0, b.Y1-b.Y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	hw := r.cfg.BarWidth / 2
	nx, ny := -dy/length*hw, dx/length*hw

	pad := hw + 1
	bounds := image.Rect(
		int(math.Floor(math.Min(b.X0, b.X1)-pad)), int(math.Floor(math.Min(b.Y0, b.Y1)-pad)),
		int(math.Ceil(math.Max(b.X0, b.X1)+pad)), int(math.Ceil(math.Max(b.Y0, b.Y1)+pad)),
	)
	r.fill(bounds, c, func(z *vector.Rasterizer, ox, oy float32) {
		z.MoveTo(float32(b.X0+nx)-ox, float32(b.Y0+ny)-oy)
		z.LineTo(float32(b.X1+nx)-ox, float32(b.Y1+ny)-oy)
		z.LineTo(float32(b.X1-nx)-ox, float32(b.Y1-ny)-oy)
		z.LineTo(float32(b.X0-nx)-ox, float32(b.Y0-ny)-oy)
		z.ClosePath()
	})
}
