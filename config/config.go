package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voicecircle/analyser"
	"voicecircle/recognizer"
	"voicecircle/visualizer"
)

const (
	appName  = "voicecircle"
	fileName = "config.yaml"
	envPath  = "VOICECIRCLE_CONFIG"
)

type AudioConfig struct {
	Device           string `yaml:"device"`
	Gain             int    `yaml:"gain"`
	Cues             bool   `yaml:"cues"`
	NoVoiceWarningMs int    `yaml:"no_voice_warning_ms"`
}

type LogConfig struct {
	TimeFormat string `yaml:"time_format"`
	Path       string `yaml:"path"`
}

type UIConfig struct {
	Hotkey   bool `yaml:"hotkey"`
	TermCols int  `yaml:"term_cols"`
	TermRows int  `yaml:"term_rows"`
}

type Config struct {
	Audio       AudioConfig       `yaml:"audio"`
	Analyser    analyser.Config   `yaml:"analyser"`
	Visualizer  visualizer.Config `yaml:"visualizer"`
	Recognition recognizer.Config `yaml:"recognition"`
	Log         LogConfig         `yaml:"log"`
	UI          UIConfig          `yaml:"ui"`
}

func Default() Config {
	return Config{
		Audio: AudioConfig{
			Gain:             1,
			Cues:             true,
			NoVoiceWarningMs: 3000,
		},
		Analyser:    analyser.DefaultConfig(),
		Visualizer:  visualizer.DefaultConfig(),
		Recognition: recognizer.DefaultConfig(),
		Log: LogConfig{
			TimeFormat: "15:04:05",
		},
		UI: UIConfig{
			TermCols: 48,
			TermRows: 24,
		},
	}
}

// ResolvePath picks the config file: flag, then VOICECIRCLE_CONFIG, then
// the OS config directory. explicit reports whether the user named it.
func ResolvePath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if p := os.Getenv(envPath); p != "" {
		return p, true
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, appName, fileName), false
}

// LoadDotEnv reads .env from the working directory and next to the config
// file. Variables already set in the environment win.
func LoadDotEnv(configPath string) []string {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	var loaded []string
	seen := map[string]bool{}
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err == nil {
			loaded = append(loaded, abs)
		}
	}
	return loaded
}

// Load reads path over the defaults. A missing file is an error only when
// explicit is set.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		case errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Audio.Device, "VOICECIRCLE_DEVICE")
	overrideInt(&cfg.Audio.Gain, "VOICECIRCLE_GAIN")
	overrideBool(&cfg.Audio.Cues, "VOICECIRCLE_CUES")
	overrideString(&cfg.Recognition.Provider, "VOICECIRCLE_PROVIDER")
	overrideString(&cfg.Recognition.Language, "VOICECIRCLE_LANGUAGE")
	overrideString(&cfg.Recognition.AWSRegion, "VOICECIRCLE_AWS_REGION")
	overrideInt(&cfg.Recognition.RestartBackoffMs, "VOICECIRCLE_RESTART_BACKOFF_MS")
	overrideInt(&cfg.Visualizer.FrameIntervalMs, "VOICECIRCLE_FRAME_INTERVAL_MS")
	overrideString(&cfg.Log.TimeFormat, "VOICECIRCLE_TIME_FORMAT")
	overrideBool(&cfg.UI.Hotkey, "VOICECIRCLE_HOTKEY")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func (c Config) Validate() error {
	if c.Audio.Gain < 1 {
		return errors.New("audio.gain must be >= 1")
	}
	if c.Audio.NoVoiceWarningMs < 0 {
		return errors.New("audio.no_voice_warning_ms must be >= 0")
	}
	if err := c.Analyser.Validate(); err != nil {
		return fmt.Errorf("analyser: %w", err)
	}
	if err := c.Visualizer.Validate(); err != nil {
		return fmt.Errorf("visualizer: %w", err)
	}
	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition: %w", err)
	}
	if strings.TrimSpace(c.Log.TimeFormat) == "" {
		return errors.New("log.time_format must not be empty")
	}
	if c.UI.TermCols < 8 || c.UI.TermRows < 4 {
		return errors.New("ui.term_cols must be >= 8 and ui.term_rows >= 4")
	}
	return nil
}

// Template is a commented starting config written by -init-config.
func Template() ([]byte, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	header := "# voicecircle configuration. Every key is optional; omitted keys keep these defaults.\n"
	return append([]byte(header), data...), nil
}
