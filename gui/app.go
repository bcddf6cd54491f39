//go:build gui

// Package gui is the desktop window: the circle canvas, the start/stop
// button, the live caption and the transcript log.
package gui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"voicecircle/transcript"
	"voicecircle/visualizer"
)

const (
	appID       = "io.voicecircle.gui"
	windowTitle = "Voice Circle"
	startLabel  = "Start Listening"
	stopLabel   = "Stop Listening"
)

type Options struct {
	Visualizer visualizer.Config
	Log        *transcript.Log
	Caption    *transcript.Caption
	Toggle     func()
	Copy       func()
	Quit       func()
}

// App implements session.Sink. Frame and ListeningChanged may be called
// from any goroutine.
type App struct {
	opts    Options
	onReady func()

	fyneApp fyne.App
	window  fyne.Window

	circle   *circleView
	button   *widget.Button
	buttonBg *canvas.Rectangle
	caption  *widget.Label
	logList  *widget.List

	startColor color.Color
	stopColor  color.Color

	mu    sync.Mutex
	lines []string
}

func NewApp(opts Options, onReady func()) (*App, error) {
	circle, err := newCircleView(opts.Visualizer)
	if err != nil {
		return nil, err
	}
	start, err := visualizer.ParseHex(opts.Visualizer.Colors.StartButton)
	if err != nil {
		return nil, err
	}
	stop, err := visualizer.ParseHex(opts.Visualizer.Colors.StopButton)
	if err != nil {
		return nil, err
	}
	return &App{
		opts:       opts,
		onReady:    onReady,
		circle:     circle,
		startColor: start,
		stopColor:  stop,
	}, nil
}

// Run blocks in the fyne event loop until the window closes.
func Run(a *App) error {
	a.fyneApp = app.NewWithID(appID)
	a.fyneApp.Settings().SetTheme(newTheme(a.opts.Visualizer.Colors))

	a.window = a.fyneApp.NewWindow(windowTitle)
	a.window.SetContent(a.build())
	a.window.Resize(fyne.NewSize(float32(a.opts.Visualizer.Width), float32(a.opts.Visualizer.Height)+260))
	a.window.SetOnClosed(func() {
		if a.opts.Quit != nil {
			a.opts.Quit()
		}
	})
	a.installShortcuts()
	a.installTray()

	if a.opts.Log != nil {
		a.mu.Lock()
		for _, l := range a.opts.Log.Lines() {
			a.lines = append(a.lines, a.opts.Log.Format(l))
		}
		a.mu.Unlock()
		a.opts.Log.Observe(a.appendLine)
	}
	if a.opts.Caption != nil {
		a.opts.Caption.OnChange(a.setCaption)
	}

	if a.onReady != nil {
		go a.onReady()
	}
	a.window.ShowAndRun()
	return nil
}

func (a *App) build() fyne.CanvasObject {
	a.button = widget.NewButton(startLabel, a.toggle)
	a.button.Importance = widget.LowImportance
	a.buttonBg = canvas.NewRectangle(a.startColor)
	a.buttonBg.CornerRadius = 6

	a.caption = widget.NewLabel("")
	a.caption.Wrapping = fyne.TextWrapWord
	a.caption.TextStyle = fyne.TextStyle{Italic: true}

	a.logList = widget.NewList(
		func() int {
			a.mu.Lock()
			defer a.mu.Unlock()
			return len(a.lines)
		},
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.Wrapping = fyne.TextWrapWord
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			a.mu.Lock()
			text := ""
			if id < len(a.lines) {
				text = a.lines[id]
			}
			a.mu.Unlock()
			obj.(*widget.Label).SetText(text)
		},
	)

	header := container.NewVBox(
		container.NewCenter(a.circle.raster),
		container.NewCenter(container.NewStack(a.buttonBg, a.button)),
		a.caption,
		widget.NewSeparator(),
	)
	return container.NewBorder(header, nil, nil, nil, a.logList)
}

func (a *App) installShortcuts() {
	a.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeySpace, fyne.KeyReturn, fyne.KeyEnter:
			a.toggle()
		}
	})
	a.window.Canvas().SetOnTypedRune(func(r rune) {
		if r == 'c' && a.opts.Copy != nil {
			a.opts.Copy()
		}
	})
}

func (a *App) installTray() {
	desk, ok := a.fyneApp.(desktop.App)
	if !ok {
		return
	}
	icon, err := trayIcon(a.opts.Visualizer.Colors)
	if err != nil {
		return
	}
	menu := fyne.NewMenu(windowTitle,
		fyne.NewMenuItem("Start/Stop", a.toggle),
		fyne.NewMenuItem("Show", func() { a.window.Show() }),
	)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(fyne.NewStaticResource("voicecircle.png", icon))
}

// toggle runs off the UI goroutine; Start waits on device and network.
func (a *App) toggle() {
	if a.opts.Toggle != nil {
		go a.opts.Toggle()
	}
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) ListeningChanged(listening bool) {
	if !listening {
		a.circle.set(visualizer.IdleFrame(a.opts.Visualizer))
	}
	fyne.Do(func() {
		if a.button == nil {
			return
		}
		if listening {
			a.button.SetText(stopLabel)
			a.buttonBg.FillColor = a.stopColor
		} else {
			a.button.SetText(startLabel)
			a.buttonBg.FillColor = a.startColor
		}
		a.buttonBg.Refresh()
		a.circle.raster.Refresh()
	})
}

func (a *App) Frame(f visualizer.Frame) {
	if a.circle.set(f) {
		fyne.Do(a.circle.raster.Refresh)
	}
}

func (a *App) appendLine(line transcript.Line) {
	text := a.opts.Log.Format(line)
	a.mu.Lock()
	a.lines = append(a.lines, text)
	a.mu.Unlock()
	fyne.Do(func() {
		if a.logList != nil {
			a.logList.Refresh()
			a.logList.ScrollToBottom()
		}
	})
}

func (a *App) setCaption(text string) {
	fyne.Do(func() {
		if a.caption != nil {
			a.caption.SetText(text)
		}
	})
}

// circleView keeps the newest frame and rasterizes it when fyne asks.
type circleView struct {
	raster *canvas.Raster

	mu      sync.Mutex
	painter *visualizer.Raster
	frame   visualizer.Frame
	pending bool
}

func newCircleView(cfg visualizer.Config) (*circleView, error) {
	painter, err := visualizer.NewRaster(cfg)
	if err != nil {
		return nil, err
	}
	v := &circleView{painter: painter, frame: visualizer.IdleFrame(cfg)}
	v.raster = canvas.NewRaster(v.draw)
	v.raster.SetMinSize(fyne.NewSize(float32(cfg.Width), float32(cfg.Height)))
	return v, nil
}

// set stores f and reports whether a refresh must be scheduled. Frames
// arriving before the last one was drawn replace it.
func (v *circleView) set(f visualizer.Frame) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frame = f
	if v.pending {
		return false
	}
	v.pending = true
	return true
}

func (v *circleView) draw(_, _ int) image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = false
	return v.painter.Draw(v.frame)
}
