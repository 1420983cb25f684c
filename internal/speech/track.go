// Package speech computes delivery metrics from the recording waveform and
// the per-slide transcript slices: speaking rate, pause inventory, filler
// rate, and pitch statistics over voiced frames.
package speech

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	wav "github.com/youpy/go-wav"
)

// Track is a mono waveform with samples normalized to [-1, 1].
type Track struct {
	SampleRate int
	Samples    []float64
}

// DurationMS is the track length in milliseconds.
func (t *Track) DurationMS() int64 {
	if t == nil || t.SampleRate == 0 {
		return 0
	}
	return int64(len(t.Samples)) * 1000 / int64(t.SampleRate)
}

// DecodeWAV reads a PCM WAV stream into a mono track. Multi-channel input
// is downmixed by taking the first channel; the recorder uploads mono.
func DecodeWAV(r io.Reader) (*Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav stream: %w", err)
	}
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav format: %w", err)
	}
	if format.BitsPerSample == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("invalid wav format")
	}

	scale := float64(int64(1) << (format.BitsPerSample - 1))
	track := &Track{SampleRate: int(format.SampleRate)}

	for {
		samples, err := reader.ReadSamples(2048)
		for _, s := range samples {
			track.Samples = append(track.Samples, float64(reader.IntValue(s, 0))/scale)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wav samples: %w", err)
		}
	}
	return track, nil
}

// LoadTrack decodes a recording from disk when it is a WAV file. Other
// container formats are not decoded here; the caller treats a nil track as
// "waveform metrics unavailable" rather than an error.
func LoadTrack(path string) (*Track, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".wav") {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

func (t *Track) slice(startMS, endMS int64) []float64 {
	if t == nil || len(t.Samples) == 0 {
		return nil
	}
	start := int(startMS) * t.SampleRate / 1000
	end := int(endMS) * t.SampleRate / 1000
	if start < 0 {
		start = 0
	}
	if end > len(t.Samples) {
		end = len(t.Samples)
	}
	if start >= end {
		return nil
	}
	return t.Samples[start:end]
}
