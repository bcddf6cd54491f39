package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
)

const deepgramStreamURL = "wss://api.deepgram.com/v1/listen"

type Deepgram struct {
	apiKey   string
	endpoint string
	model    string
}

func NewDeepgram(apiKey string, cfg Config) *Deepgram {
	endpoint := cfg.DeepgramURL
	if endpoint == "" {
		endpoint = deepgramStreamURL
	}
	model := cfg.Model
	if model == "" {
		model = "nova-3"
	}
	return &Deepgram{apiKey: apiKey, endpoint: endpoint, model: model}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Start(ctx context.Context, opts Options) (Session, error) {
	if _, err := d.streamURL(opts); err != nil {
		return nil, err
	}
	return newStreamSession(ctx, d.Name(), func(ctx context.Context) (rawStreamSession, error) {
		return d.dial(ctx, opts)
	}), nil
}

func (d *Deepgram) streamURL(opts Options) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("deepgram url: %w", err)
	}
	q := endpoint.Query()
	q.Set("model", d.model)
	q.Set("encoding", "linear16")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStreamSession struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *Deepgram) dial(ctx context.Context, opts Options) (rawStreamSession, error) {
	endpoint, err := d.streamURL(opts)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &deepgramStreamSession{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (s *deepgramStreamSession) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStreamSession) CloseSend() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
}

func (s *deepgramStreamSession) Recv() (streamUpdate, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return streamUpdate{}, io.EOF
		}
		return streamUpdate{}, err
	}
	return parseDeepgram(data)
}

func (s *deepgramStreamSession) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// parseDeepgram maps one server message to an update. Only "Results"
// messages carry transcripts; metadata and VAD messages yield none.
func parseDeepgram(data []byte) (streamUpdate, error) {
	var resp deepgramStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streamUpdate{}, fmt.Errorf("deepgram message: %w", err)
	}
	if resp.Type != "" && resp.Type != "Results" {
		return streamUpdate{}, nil
	}

	transcript := ""
	if len(resp.Channel.Alternatives) > 0 {
		transcript = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	}
	isFinal := resp.IsFinal || resp.FromFinalize
	if isFinal && transcript == "" {
		return streamUpdate{FromFinalize: resp.FromFinalize}, nil
	}
	return streamUpdate{
		Results:      []Result{{Transcript: transcript, IsFinal: isFinal}},
		FromFinalize: resp.FromFinalize,
	}, nil
}
