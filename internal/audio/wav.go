// Package audio writes captured PCM frames to disk as WAV.
package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink streams 8-bit unsigned PCM frames into a 16-bit WAV file.
// Frames may arrive in any size; samples are widened as they are
// written so the output plays everywhere.
type WAVSink struct {
	f      *os.File
	enc    *wav.Encoder
	format *gaudio.Format
}

// NewWAVSink creates path (truncating any existing file) and prepares
// the encoder.
func NewWAVSink(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create wav file: %w", err)
	}
	return &WAVSink{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, 16, channels, 1),
		format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
	}, nil
}

// WritePCM8 appends one frame of unsigned 8-bit samples.
func (s *WAVSink) WritePCM8(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	data := make([]int, len(frame))
	for i, b := range frame {
		data[i] = (int(b) - 128) << 8
	}
	buf := &gaudio.IntBuffer{
		Format:         s.format,
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write wav samples: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (s *WAVSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("audio: close wav file: %w", err)
	}
	return nil
}
