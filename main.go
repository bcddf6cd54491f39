package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"voicecircle/audio"
	"voicecircle/beep"
	"voicecircle/clipboard"
	"voicecircle/config"
	"voicecircle/doctor"
	"voicecircle/hotkey"
	"voicecircle/log"
	"voicecircle/recognizer"
	"voicecircle/session"
	"voicecircle/transcript"
)

var version = "dev"

const (
	readyLine      = "Voice Circle Visualization ready."
	hotkeyHold     = 350 * time.Millisecond
	doctorDuration = 3 * time.Second
)

type options struct {
	configPath string
	initConfig bool
	device     string
	setup      bool
	lang       string
	provider   string
	logPath    string
	gui        bool
	test       bool
	realtime   bool
	doctor     bool
	sample     string
	hotkey     bool
	profile    string
	version    bool
	fps        int
	args       []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("voicecircle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Config file (default: $VOICECIRCLE_CONFIG or OS config dir)")
	fs.BoolVar(&o.initConfig, "init-config", false, "Write a default config file and exit")
	fs.StringVar(&o.device, "device", "", "Use named microphone device (substring match)")
	fs.BoolVar(&o.setup, "setup", false, "Pick the microphone interactively")
	fs.StringVar(&o.lang, "lang", "", "Recognition language (e.g. en-US)")
	fs.StringVar(&o.provider, "provider", "", "Recognition provider: auto, deepgram, aws, fake or none")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&o.gui, "gui", false, "Open the desktop window instead of the terminal UI")
	fs.BoolVar(&o.test, "test", false, "Test mode (headless, stdin-driven, audio from file)")
	fs.BoolVar(&o.realtime, "realtime", false, "In test mode, replay audio at real-time speed")
	fs.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics and exit")
	fs.StringVar(&o.sample, "sample", "", "With -doctor, save the captured audio as FLAC")
	fs.BoolVar(&o.hotkey, "hotkey", false, "Toggle listening with the global "+hotkey.Combo+" chord")
	fs.StringVar(&o.profile, "profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.IntVar(&o.fps, "fps", 0, "Override the render frame rate")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.fps < 0 || o.fps > 240 {
		return o, fmt.Errorf("-fps %d out of range (1-240)", o.fps)
	}
	o.args = fs.Args()
	return o, nil
}

// applyFlags lets command-line flags win over the config file.
func applyFlags(cfg *config.Config, o options) {
	if o.device != "" {
		cfg.Audio.Device = o.device
	}
	if o.lang != "" {
		cfg.Recognition.Language = o.lang
	}
	if o.provider != "" {
		cfg.Recognition.Provider = o.provider
	} else if o.test {
		cfg.Recognition.Provider = "fake"
	}
	if o.fps > 0 {
		cfg.Visualizer.FrameIntervalMs = max(1000/o.fps, 1)
	}
	if o.hotkey {
		cfg.UI.Hotkey = true
	}
	if o.logPath != "" {
		cfg.Log.Path = o.logPath
	}
	if o.test {
		cfg.Audio.Cues = false
	}
}

func run(args []string) int {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Printf("voicecircle %s\n", version)
		return 0
	}

	cfgPath, explicit := config.ResolvePath(o.configPath)
	if o.initConfig {
		return writeConfigTemplate(cfgPath)
	}
	config.LoadDotEnv(cfgPath)
	cfg, err := config.Load(cfgPath, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyFlags(&cfg, o)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if o.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", o.profile)
			if err := http.ListenAndServe(o.profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	rec, recErr := recognizer.New(cfg.Recognition)
	if recErr != nil && !errors.Is(recErr, recognizer.ErrUnsupported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", recErr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.doctor {
		return runDoctor(ctx, cfg, o, rec, recErr)
	}

	var fake *audio.FakeContext
	if o.test {
		if len(o.args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voicecircle -test <wav-or-flac-file>")
			return 1
		}
		fake, err = audio.NewFakeContext(o.args[0], o.realtime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading audio: %v\n", err)
			return 1
		}
	}

	a, err := newApp(ctx, cfg, o, rec, recErr, fake)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	switch {
	case o.test:
		return runTestMode(ctx, a, fake, os.Stdin, os.Stdout)
	case o.gui:
		return runGUI(ctx, a)
	default:
		return runTUI(ctx, a)
	}
}

// initCrashLog sends runtime crash output to crash_log.txt in the log dir.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func writeConfigTemplate(path string) int {
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no config path; pass -config")
		return 1
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		return 1
	}
	data, err := config.Template()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", path)
	return 0
}

// app is everything the front ends share.
type app struct {
	cfg      config.Config
	lines    *transcript.Log
	caption  *transcript.Caption
	sess     *session.Session
	cues     *beep.Player
	clip     clipboard.Clipboard
	bridge   *bridge
	voice    *voiceWatch
	hk       hotkey.Hotkey
	toggler  *hotkey.Toggler
	modeLine string
	devLine  string
}

func newApp(ctx context.Context, cfg config.Config, o options, rec recognizer.Recognizer, recErr error, fake *audio.FakeContext) (*app, error) {
	a := &app{
		cfg:     cfg,
		lines:   transcript.NewLog(transcript.WithTimeFormat(cfg.Log.TimeFormat)),
		caption: &transcript.Caption{},
		cues:    beep.New(),
		clip:    clipboard.System{},
		bridge:  newBridge(),
	}
	if !cfg.Audio.Cues {
		a.cues.Disable()
	} else {
		go a.cues.Init()
	}
	if fake != nil || !clipboard.Supported() {
		a.clip = &clipboard.Memory{}
	}

	open, device, err := audioSource(cfg, o, fake)
	if err != nil {
		return nil, err
	}
	devName := ""
	if device != nil {
		devName = device.Name
	}
	a.devLine = deviceLineText(devName, audio.IsBluetooth(devName))
	a.modeLine = modeLineText(rec, recErr, cfg.Recognition.Language)

	sinks := fanout{a.bridge}
	var tap func([]byte)
	if cfg.Audio.NoVoiceWarningMs > 0 {
		if vp, err := newVADProcessor(); err != nil {
			log.Warnf("voice detection disabled: %v", err)
		} else {
			warnAfter := time.Duration(cfg.Audio.NoVoiceWarningMs) * time.Millisecond
			a.voice = newVoiceWatch(vp, warnAfter, voiceTick, func(warn bool) {
				a.bridge.post(NoVoiceMsg{Warn: warn})
			})
			sinks = append(sinks, a.voice)
			tap = a.voice.Tap
		}
	}

	a.lines.Observe(func(l transcript.Line) {
		a.bridge.post(LogLineMsg{Text: a.lines.Format(l)})
	})
	a.caption.OnChange(func(text string) {
		a.bridge.post(CaptionMsg{Text: text})
	})

	capture := audio.DefaultCaptureConfig()
	capture.Gain = cfg.Audio.Gain

	providerName := "none"
	if rec != nil {
		providerName = rec.Name()
	}
	log.SessionStart(providerName, devName)

	a.sess = session.New(ctx, session.Config{
		Visualizer:     cfg.Visualizer,
		Analyser:       cfg.Analyser,
		Capture:        capture,
		Device:         device,
		Language:       cfg.Recognition.Language,
		RestartBackoff: time.Duration(cfg.Recognition.RestartBackoffMs) * time.Millisecond,
	}, session.Deps{
		Audio:       open,
		Recognizer:  rec,
		Unsupported: recErr,
		Log:         a.lines,
		Caption:     a.caption,
		Sink:        sinks,
		Cues:        a.cues,
		Tap:         tap,
	})

	if cfg.UI.Hotkey && fake == nil {
		a.startHotkey()
	}

	a.lines.Append(readyLine)
	log.Info("ready")
	return a, nil
}

// audioSource resolves the capture device and returns the lazy context
// opener the session uses. A named or picked device needs the context
// up front; otherwise it is opened on the first start.
func audioSource(cfg config.Config, o options, fake *audio.FakeContext) (func() (audio.Context, error), *audio.DeviceInfo, error) {
	if fake != nil {
		return func() (audio.Context, error) { return fake, nil }, nil, nil
	}
	if cfg.Audio.Device == "" && !o.setup {
		return audio.NewContext, nil, nil
	}

	actx, err := audio.NewContext()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing audio: %w", err)
	}
	var device *audio.DeviceInfo
	if o.setup {
		device, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
			device = nil
		}
	} else {
		device, err = audio.FindDevice(actx, cfg.Audio.Device)
		if err != nil {
			actx.Close()
			return nil, nil, err
		}
	}
	used := false
	return func() (audio.Context, error) {
		if used {
			return audio.NewContext()
		}
		used = true
		return actx, nil
	}, device, nil
}

func modeLineText(rec recognizer.Recognizer, recErr error, lang string) string {
	if rec == nil {
		reason := "unavailable"
		if recErr != nil {
			reason = "unsupported"
		}
		return "[recognition " + reason + "]"
	}
	return fmt.Sprintf("[%s | %s]", rec.Name(), lang)
}

func (a *app) startHotkey() {
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		a.lines.Appendf("Error: global hotkey unavailable: %v", err)
		return
	}
	a.hk = hk
	a.toggler = hotkey.NewToggler(hk, hotkeyHold, a.sess.Listening)
	go func() {
		for range a.toggler.Requests() {
			a.toggle()
		}
	}()
}

// toggle flips listening. Busy means a transition is already running.
func (a *app) toggle() {
	if err := a.sess.Toggle(); err != nil && !errors.Is(err, session.ErrBusy) {
		log.Warnf("toggle: %v", err)
	}
}

// copyLast puts the newest recognized line on the clipboard and returns a
// status line for the front end.
func (a *app) copyLast() string {
	err := clipboard.CopyText(a.clip, a.sess.LastRecognized())
	switch {
	case errors.Is(err, clipboard.ErrEmpty):
		return "nothing to copy yet"
	case err != nil:
		log.Warnf("clipboard: %v", err)
		return "copy failed: " + err.Error()
	}
	return "✓ copied"
}

func (a *app) close() {
	if a.toggler != nil {
		a.toggler.Close()
	}
	if a.hk != nil {
		a.hk.Unregister()
	}
	a.sess.Close()
	a.bridge.close()
	a.cues.Close()
	log.SessionEnd(a.sess.Listens())
}

func runTUI(ctx context.Context, a *app) int {
	m, err := newTUIModel(a.cfg.Visualizer, a.cfg.UI.TermCols, a.cfg.UI.TermRows, tuiActions{
		toggle: a.toggle,
		copy:   a.copyLast,
	}, a.toggler != nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	m.modeLine = a.modeLine
	m.deviceLine = a.devLine

	p := NewTUIProgram(m)

	// lines logged before now are already queued on the bridge
	go a.bridge.run(func(msg any) { p.Send(msg) })
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		return 1
	}
	return 0
}

func runDoctor(ctx context.Context, cfg config.Config, o options, rec recognizer.Recognizer, recErr error) int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, err := audio.FindDevice(actx, cfg.Audio.Device)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	opts := doctor.Options{
		Audio:         actx,
		Device:        device,
		Analyser:      cfg.Analyser,
		Record:        doctorDuration,
		SamplePath:    o.sample,
		Recognizer:    rec,
		RecognizerErr: recErr,
		Language:      cfg.Recognition.Language,
		Out:           os.Stdout,
	}
	if clipboard.Supported() {
		opts.Clipboard = clipboard.System{}
	}
	if cfg.UI.Hotkey {
		opts.Hotkey = hotkey.New()
		opts.Diagnose = hotkey.Diagnose
	}
	return doctor.Run(ctx, opts)
}
