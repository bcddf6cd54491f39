package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

// EncodeFLAC writes S16LE mono PCM at SampleRate as a FLAC stream.
func EncodeFLAC(w io.Writer, pcm []byte) error {
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	total := len(pcm) / 2
	for off := 0; off < total; off += flacBlockSize {
		n := min(flacBlockSize, total-off)
		samples := make([]int32, n)
		for i := range n {
			samples[i] = int32(int16(binary.LittleEndian.Uint16(pcm[(off+i)*2:])))
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(n),
				SampleRate:    SampleRate,
				Channels:      frame.ChannelsMono,
				BitsPerSample: BitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return fmt.Errorf("writing flac frame: %w", err)
		}
	}
	return enc.Close()
}

// DecodeFLAC reads a FLAC file and returns its first channel as S16LE PCM.
// The stream must already be at SampleRate; no resampling is done.
func DecodeFLAC(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeFLACReader(bytes.NewReader(data))
}

func DecodeFLACReader(r io.Reader) ([]byte, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("parse flac: %w", err)
	}

	if stream.Info.SampleRate != SampleRate {
		return nil, fmt.Errorf("flac sample rate %d Hz, want %d Hz", stream.Info.SampleRate, SampleRate)
	}
	shift := int(stream.Info.BitsPerSample) - BitsPerSample

	var pcm []byte
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame: %w", err)
		}
		samples := f.Subframes[0].Samples
		buf := make([]byte, len(samples)*2)
		for i, s := range samples {
			switch {
			case shift > 0:
				s >>= shift
			case shift < 0:
				s <<= -shift
			}
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s)))
		}
		pcm = append(pcm, buf...)
	}
	return pcm, nil
}
