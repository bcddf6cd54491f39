// Package recognizer runs continuous speech recognition sessions with
// interim results. A session reports Result and Error events and always
// finishes with exactly one End event, after which its channel is closed.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupported means no recognition provider is usable in this process.
var ErrUnsupported = errors.New("speech recognition not supported")

type Kind int

const (
	KindResult Kind = iota
	KindError
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindError:
		return "error"
	case KindEnd:
		return "end"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Result struct {
	Transcript string
	IsFinal    bool
}

// Event is one notification from a session. Results is set for
// KindResult, Err for KindError and (when the session failed) KindEnd.
type Event struct {
	Kind    Kind
	Results []Result
	Err     error
}

type Options struct {
	Language   string
	SampleRate int
}

type Recognizer interface {
	Name() string
	Start(ctx context.Context, opts Options) (Session, error)
}

type Session interface {
	// Feed queues S16LE mono PCM. It never blocks; audio is dropped when
	// the provider falls behind.
	Feed(pcm []byte)
	Events() <-chan Event
	// Stop asks the session to finish. It returns at once; the End event
	// follows. Calling it more than once has no further effect.
	Stop()
	Stats() Stats
}

type Stats struct {
	ConnectMs    float64
	TotalMs      float64
	SentChunks   int
	SentKB       float64
	Dropped      int
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
}

type Config struct {
	// Provider is auto, deepgram, aws, fake or none.
	Provider         string `yaml:"provider"`
	Language         string `yaml:"language"`
	Model            string `yaml:"model"`
	DeepgramURL      string `yaml:"deepgram_url"`
	AWSRegion        string `yaml:"aws_region"`
	RestartBackoffMs int    `yaml:"restart_backoff_ms"`
	// FakeTranscript is what the fake provider "hears", word by word.
	FakeTranscript string `yaml:"fake_transcript"`
}

func DefaultConfig() Config {
	return Config{
		Provider:         "auto",
		Language:         "en-US",
		Model:            "nova-3",
		DeepgramURL:      deepgramStreamURL,
		RestartBackoffMs: 1000,
		FakeTranscript:   "hello world",
	}
}

func (c Config) Validate() error {
	switch c.Provider {
	case "auto", "deepgram", "aws", "fake", "none":
	default:
		return fmt.Errorf("unknown provider %q (want auto, deepgram, aws, fake or none)", c.Provider)
	}
	if c.RestartBackoffMs < 0 {
		return fmt.Errorf("restart_backoff_ms %d must not be negative", c.RestartBackoffMs)
	}
	return nil
}

// New picks a provider from cfg and the environment. It returns an error
// wrapping ErrUnsupported when nothing usable is configured.
func New(cfg Config) (Recognizer, error) {
	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	region := cfg.AWSRegion
	if region == "" {
		region = firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"))
	}

	switch strings.ToLower(cfg.Provider) {
	case "deepgram":
		if dgKey == "" {
			return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY is not set", ErrUnsupported)
		}
		return NewDeepgram(dgKey, cfg), nil
	case "aws":
		if region == "" {
			return nil, fmt.Errorf("%w: no AWS region configured", ErrUnsupported)
		}
		return NewAWS(region), nil
	case "fake":
		return NewFake(cfg.FakeTranscript), nil
	case "none":
		return nil, fmt.Errorf("%w: disabled by configuration", ErrUnsupported)
	case "", "auto":
		if dgKey != "" {
			return NewDeepgram(dgKey, cfg), nil
		}
		if region != "" {
			return NewAWS(region), nil
		}
		return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY or AWS_REGION", ErrUnsupported)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// InterimText joins the non-final transcripts of rs in order.
func InterimText(rs []Result) string {
	var sb strings.Builder
	for _, r := range rs {
		if !r.IsFinal {
			sb.WriteString(r.Transcript)
		}
	}
	return sb.String()
}
