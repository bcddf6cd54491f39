//go:build gui

package main

import (
	"context"
	"fmt"
	"os"

	"voicecircle/gui"
	"voicecircle/log"
)

// runGUI owns the calling goroutine until the window closes; fyne needs
// the main thread on macOS.
func runGUI(ctx context.Context, a *app) int {
	var guiApp *gui.App
	var err error
	guiApp, err = gui.NewApp(gui.Options{
		Visualizer: a.cfg.Visualizer,
		Log:        a.lines,
		Caption:    a.caption,
		Toggle:     a.toggle,
		Copy:       func() { log.Info("clipboard: " + a.copyLast()) },
	}, func() {
		go a.bridge.run(func(msg any) {
			switch m := msg.(type) {
			case ListeningMsg:
				guiApp.ListeningChanged(m.On)
			case FrameMsg:
				guiApp.Frame(m.Frame)
			}
		})
		<-ctx.Done()
		guiApp.Quit()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := gui.Run(guiApp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
