//go:build !gui

package main

import (
	"context"
	"fmt"
	"os"
)

func runGUI(_ context.Context, _ *app) int {
	fmt.Fprintln(os.Stderr, "voicecircle: built without GUI support (rebuild with -tags gui)")
	return 1
}
