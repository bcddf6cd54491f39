package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Visualizer.BarCount != 180 || cfg.Analyser.FFTSize != 1024 {
		t.Fatalf("unexpected defaults: bars %d fft %d", cfg.Visualizer.BarCount, cfg.Analyser.FFTSize)
	}
	if cfg.Log.TimeFormat != "15:04:05" {
		t.Fatalf("time format = %q", cfg.Log.TimeFormat)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(missing, false); err != nil {
		t.Fatalf("implicit missing file should fall back to defaults: %v", err)
	}
	if _, err := Load(missing, true); err == nil {
		t.Fatal("explicit missing file should fail")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", `
visualizer:
  bar_count: 90
  colors:
    face: "#00ff00"
recognition:
  provider: fake
  restart_backoff_ms: 250
`)
	cfg, err := Load(p, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Visualizer.BarCount != 90 {
		t.Errorf("bar_count = %d, want 90", cfg.Visualizer.BarCount)
	}
	if cfg.Visualizer.Radius != 80 {
		t.Errorf("radius = %v, want default 80", cfg.Visualizer.Radius)
	}
	if cfg.Visualizer.Colors.Face != "#00ff00" || cfg.Visualizer.Colors.Mask != "#FFFFFF" {
		t.Errorf("colors = %+v", cfg.Visualizer.Colors)
	}
	if cfg.Recognition.Provider != "fake" || cfg.Recognition.RestartBackoffMs != 250 {
		t.Errorf("recognition = %+v", cfg.Recognition)
	}
	if cfg.Recognition.Language != "en-US" {
		t.Errorf("language = %q, want default", cfg.Recognition.Language)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"bad fft", "analyser:\n  fft_size: 1000\n", "analyser"},
		{"bad provider", "recognition:\n  provider: whisper\n", "recognition"},
		{"bad gain", "audio:\n  gain: 0\n", "audio.gain"},
		{"bad yaml", "visualizer: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "config.yaml", tt.yaml)
			_, err := Load(p, true)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICECIRCLE_PROVIDER", "none")
	t.Setenv("VOICECIRCLE_LANGUAGE", "de-DE")
	t.Setenv("VOICECIRCLE_RESTART_BACKOFF_MS", "50")
	t.Setenv("VOICECIRCLE_CUES", "false")
	t.Setenv("VOICECIRCLE_DEVICE", "USB")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognition.Provider != "none" || cfg.Recognition.Language != "de-DE" {
		t.Errorf("recognition = %+v", cfg.Recognition)
	}
	if cfg.Recognition.RestartBackoffMs != 50 {
		t.Errorf("backoff = %d", cfg.Recognition.RestartBackoffMs)
	}
	if cfg.Audio.Cues {
		t.Error("cues override not applied")
	}
	if cfg.Audio.Device != "USB" {
		t.Errorf("device = %q", cfg.Audio.Device)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("VOICECIRCLE_CONFIG", "/etc/vc.yaml")
	if p, explicit := ResolvePath("/tmp/flag.yaml"); p != "/tmp/flag.yaml" || !explicit {
		t.Errorf("flag path = %q, %v", p, explicit)
	}
	if p, explicit := ResolvePath(""); p != "/etc/vc.yaml" || !explicit {
		t.Errorf("env path = %q, %v", p, explicit)
	}
	t.Setenv("VOICECIRCLE_CONFIG", "")
	if p, explicit := ResolvePath(""); explicit || (p != "" && !strings.HasSuffix(p, filepath.Join("voicecircle", "config.yaml"))) {
		t.Errorf("default path = %q, %v", p, explicit)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "VOICECIRCLE_TEST_KEY=from-file\nVOICECIRCLE_TEST_SET=from-file\n")
	t.Setenv("VOICECIRCLE_TEST_SET", "from-env")
	t.Setenv("VOICECIRCLE_TEST_KEY", "")
	os.Unsetenv("VOICECIRCLE_TEST_KEY")

	loaded := LoadDotEnv(filepath.Join(dir, "config.yaml"))
	if len(loaded) == 0 {
		t.Fatal("no .env loaded")
	}
	if got := os.Getenv("VOICECIRCLE_TEST_KEY"); got != "from-file" {
		t.Errorf("VOICECIRCLE_TEST_KEY = %q, want from-file", got)
	}
	if got := os.Getenv("VOICECIRCLE_TEST_SET"); got != "from-env" {
		t.Errorf("existing variable overwritten: %q", got)
	}
	os.Unsetenv("VOICECIRCLE_TEST_KEY")
}

func TestTemplateRoundTrips(t *testing.T) {
	data, err := Template()
	if err != nil {
		t.Fatal(err)
	}
	p := writeFile(t, t.TempDir(), "config.yaml", string(data))
	cfg, err := Load(p, true)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Visualizer.Colors.StopButton != "#ef4444" {
		t.Errorf("stop button = %q", cfg.Visualizer.Colors.StopButton)
	}
}
