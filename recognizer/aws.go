package recognizer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
)

// AWS streams to Amazon Transcribe. Credentials come from the default
// chain (env, shared config, SSO, instance role).
type AWS struct {
	region string

	mu     sync.Mutex
	client *transcribestreaming.Client
}

func NewAWS(region string) *AWS {
	return &AWS{region: region}
}

func (a *AWS) Name() string { return "aws" }

func (a *AWS) Start(ctx context.Context, opts Options) (Session, error) {
	client, err := a.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	return newStreamSession(ctx, a.Name(), func(ctx context.Context) (rawStreamSession, error) {
		return dialAWS(ctx, client, opts)
	}), nil
}

func (a *AWS) clientFor(ctx context.Context) (*transcribestreaming.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(a.region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	a.client = transcribestreaming.NewFromConfig(cfg)
	return a.client, nil
}

type awsStreamSession struct {
	stream *transcribestreaming.StartStreamTranscriptionEventStream
	ctx    context.Context
	cancel context.CancelFunc
}

func dialAWS(ctx context.Context, client *transcribestreaming.Client, opts Options) (rawStreamSession, error) {
	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	// the event stream lives on the request context, so it must outlive
	// the dial context
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	out, err := client.StartStreamTranscription(streamCtx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(lang),
		MediaSampleRateHertz: aws.Int32(int32(sampleRate)),
		MediaEncoding:        types.MediaEncodingPcm,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return &awsStreamSession{stream: out.GetStream(), ctx: streamCtx, cancel: cancel}, nil
}

func (s *awsStreamSession) Send(pcm []byte) error {
	return s.stream.Send(s.ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: pcm},
	})
}

// CloseSend sends the empty audio event that tells Transcribe the audio is
// complete; it answers with the remaining finals and closes the stream.
func (s *awsStreamSession) CloseSend() error {
	return s.stream.Send(s.ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: []byte{}},
	})
}

func (s *awsStreamSession) Recv() (streamUpdate, error) {
	for {
		ev, ok := <-s.stream.Events()
		if !ok {
			if err := s.stream.Err(); err != nil {
				return streamUpdate{}, err
			}
			return streamUpdate{}, io.EOF
		}
		te, isTranscript := ev.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !isTranscript {
			continue
		}
		return streamUpdate{Results: awsResults(te.Value)}, nil
	}
}

func (s *awsStreamSession) Close() error {
	err := s.stream.Close()
	s.cancel()
	return err
}

func awsResults(ev types.TranscriptEvent) []Result {
	if ev.Transcript == nil {
		return nil
	}
	var out []Result
	for _, r := range ev.Transcript.Results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == nil {
			continue
		}
		text := strings.TrimSpace(*r.Alternatives[0].Transcript)
		if text == "" {
			continue
		}
		out = append(out, Result{Transcript: text, IsFinal: !r.IsPartial})
	}
	return out
}
