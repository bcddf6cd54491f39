//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"voicecircle/visualizer"
)

type circleTheme struct {
	background color.Color
	primary    color.Color
}

func newTheme(c visualizer.Colors) *circleTheme {
	t := &circleTheme{
		background: color.RGBA{18, 18, 18, 255},
		primary:    color.RGBA{236, 72, 153, 255},
	}
	if bg, err := visualizer.ParseHex(c.Background); err == nil {
		t.background = bg
	}
	if p, err := visualizer.ParseHex(c.StartButton); err == nil {
		t.primary = p
	}
	return t
}

func (t *circleTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return t.background
	case theme.ColorNameForeground:
		return color.RGBA{230, 230, 230, 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return t.primary
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (t *circleTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *circleTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *circleTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
