package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"voicecircle/audio"
	"voicecircle/log"
	"voicecircle/transcript"
)

const testWaitTimeout = 10 * time.Second

// runTestMode drives the session from stdin, one command per line:
// TOGGLE, START, STOP, WAIT_LISTENING, WAIT_IDLE, WAIT_AUDIO_DONE,
// SLEEP <ms>, COPY, QUIT. Every log line is echoed to out.
func runTestMode(ctx context.Context, a *app, fake *audio.FakeContext, in io.Reader, out io.Writer) int {
	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		fmt.Fprintf(out, format, args...)
		outMu.Unlock()
	}

	for _, l := range a.lines.Lines() {
		printf("%s\n", a.lines.Format(l))
	}
	a.lines.Observe(func(l transcript.Line) {
		printf("%s\n", a.lines.Format(l))
	})
	go a.bridge.run(func(msg any) {
		if nv, ok := msg.(NoVoiceMsg); ok && nv.Warn {
			printf("WARN no voice detected\n")
		}
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		var cmd string
		select {
		case <-ctx.Done():
			return 0
		case c, ok := <-lines:
			if !ok {
				return 0
			}
			cmd = c
		}

		if err := a.testCommand(ctx, fake, cmd, printf); err != nil {
			if errors.Is(err, errQuit) {
				return 0
			}
			log.Errorf("test command %q: %v", cmd, err)
			printf("ERROR %s: %v\n", cmd, err)
			return 1
		}
	}
}

var errQuit = errors.New("quit")

func (a *app) testCommand(ctx context.Context, fake *audio.FakeContext, cmd string, printf func(string, ...any)) error {
	switch {
	case cmd == "":
		return nil
	case cmd == "TOGGLE":
		a.toggle()
	case cmd == "START":
		return a.sess.Start()
	case cmd == "STOP":
		return a.sess.Stop()
	case cmd == "WAIT_LISTENING":
		return waitUntil(ctx, a.sess.Listening)
	case cmd == "WAIT_IDLE":
		return waitUntil(ctx, func() bool { return !a.sess.Listening() })
	case cmd == "WAIT_AUDIO_DONE":
		c := fake.Last()
		if c == nil {
			return fmt.Errorf("no capture started")
		}
		select {
		case <-c.AudioDone():
		case <-time.After(testWaitTimeout):
			return fmt.Errorf("timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	case cmd == "COPY":
		printf("COPY %s\n", a.copyLast())
	case cmd == "QUIT":
		return errQuit
	case strings.HasPrefix(cmd, "SLEEP "):
		ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:]))
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func waitUntil(ctx context.Context, cond func() bool) error {
	deadline := time.Now().Add(testWaitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}
