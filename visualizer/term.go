package visualizer

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type cellKey struct{ fg, bg color.RGBA }

// TermEncoder turns a canvas into rows of half-block characters, two
// vertical pixels per cell. Pixels equal to the background stay blank so
// the terminal's own background shows through.
type TermEncoder struct {
	cols, rows int
	background color.RGBA

	fgStyles map[color.RGBA]lipgloss.Style
	bgStyles map[cellKey]lipgloss.Style
	grid     []color.RGBA
}

func NewTermEncoder(cols, rows int, background color.RGBA) *TermEncoder {
	return &TermEncoder{
		cols:       max(cols, 1),
		rows:       max(rows, 1),
		background: background,
		fgStyles:   make(map[color.RGBA]lipgloss.Style),
		bgStyles:   make(map[cellKey]lipgloss.Style),
	}
}

func (e *TermEncoder) Size() (cols, rows int) { return e.cols, e.rows }

// Encode box-filters img down to cols x rows*2 pixels and emits one line
// per character row, each terminated by "\n".
func (e *TermEncoder) Encode(img image.Image) string {
	pw, ph := e.cols, e.rows*2
	e.downsample(img, pw, ph)

	var sb strings.Builder
	for cy := range e.rows {
		for cx := range e.cols {
			top := e.grid[(cy*2)*pw+cx]
			bot := e.grid[(cy*2+1)*pw+cx]
			topBlank := top == e.background
			botBlank := bot == e.background
			switch {
			case topBlank && botBlank:
				sb.WriteString(" ")
			case top == bot:
				sb.WriteString(e.fg(top).Render("█"))
			case botBlank:
				sb.WriteString(e.fg(top).Render("▀"))
			case topBlank:
				sb.WriteString(e.fg(bot).Render("▄"))
			default:
				sb.WriteString(e.fgbg(top, bot).Render("▀"))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *TermEncoder) downsample(img image.Image, pw, ph int) {
	if len(e.grid) != pw*ph {
		e.grid = make([]color.RGBA, pw*ph)
	}
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	for py := range ph {
		y0 := b.Min.Y + py*sh/ph
		y1 := max(b.Min.Y+(py+1)*sh/ph, y0+1)
		for px := range pw {
			x0 := b.Min.X + px*sw/pw
			x1 := max(b.Min.X+(px+1)*sw/pw, x0+1)
			var r, g, bl, n uint32
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					cr, cg, cb := pixelAt(img, x, y)
					r += cr
					g += cg
					bl += cb
					n++
				}
			}
			e.grid[py*pw+px] = quantize(color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 255}, e.background)
		}
	}
}

func pixelAt(img image.Image, x, y int) (r, g, b uint32) {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return uint32(rgba.Pix[i]), uint32(rgba.Pix[i+1]), uint32(rgba.Pix[i+2])
	}
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return cr >> 8, cg >> 8, cb >> 8
}

// quantize snaps near-background pixels to the background and drops the
// low bits of the rest so the style cache stays small.
func quantize(c, background color.RGBA) color.RGBA {
	if absDiff(c.R, background.R)+absDiff(c.G, background.G)+absDiff(c.B, background.B) < 12 {
		return background
	}
	return color.RGBA{R: c.R &^ 7, G: c.G &^ 7, B: c.B &^ 7, A: 255}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func hex(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func (e *TermEncoder) fg(c color.RGBA) lipgloss.Style {
	s, ok := e.fgStyles[c]
	if !ok {
		s = lipgloss.NewStyle().Foreground(hex(c))
		e.fgStyles[c] = s
	}
	return s
}

func (e *TermEncoder) fgbg(fg, bg color.RGBA) lipgloss.Style {
	k := cellKey{fg, bg}
	s, ok := e.bgStyles[k]
	if !ok {
		s = lipgloss.NewStyle().Foreground(hex(fg)).Background(hex(bg))
		e.bgStyles[k] = s
	}
	return s
}
