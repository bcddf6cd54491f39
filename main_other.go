//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	args := os.Args[1:]
	// fyne owns the main thread in GUI mode.
	for _, arg := range args {
		if arg == "-gui" || arg == "--gui" {
			os.Exit(run(args))
		}
	}
	code := 0
	mainthread.Init(func() { code = run(args) })
	os.Exit(code)
}
