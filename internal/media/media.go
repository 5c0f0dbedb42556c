// Package media decodes source clips into timestamped RGBA frames. Audio is
// never decoded: clips are always processed muted.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"
)

// ErrUnsupportedContainer is returned when no decoder recognises a file.
var ErrUnsupportedContainer = errors.New("media: unsupported container")

// Info is the stream metadata available once a clip has loaded.
type Info struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Duration time.Duration `json:"duration"`
	FPS      float64       `json:"fps"`
	Codec    string        `json:"codec"`
	Frames   int           `json:"frames"`
}

// Frame is one decoded picture. PTS is the presentation time relative to the
// start of the clip; Duration is how long the frame stays on screen.
type Frame struct {
	Image    image.Image
	PTS      time.Duration
	Duration time.Duration
}

// End returns the time at which the next frame replaces this one.
func (f Frame) End() time.Duration {
	return f.PTS + f.Duration
}

// Stream yields frames in presentation order and io.EOF after the last one.
type Stream interface {
	Info() Info
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Opener loads a clip by filesystem path.
type Opener interface {
	Open(ctx context.Context, path string) (Stream, error)
}

// DecodeError wraps a failure to load or decode a clip.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("media: decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Sniffer picks a decoder by inspecting the file header. MJPEG/AVI files are
// decoded in-process; everything else goes through ffmpeg when available.
type Sniffer struct {
	FFmpeg *FFmpeg
}

// NewSniffer builds an opener. ff may be nil, which limits input to AVI.
func NewSniffer(ff *FFmpeg) *Sniffer {
	return &Sniffer{FFmpeg: ff}
}

func (s *Sniffer) Open(ctx context.Context, path string) (Stream, error) {
	header := make([]byte, 12)
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	n, err := io.ReadFull(f, header)
	f.Close()
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &DecodeError{Source: path, Err: err}
	}
	header = header[:n]

	if isAVI(header) {
		return OpenAVI(path)
	}
	if s.FFmpeg == nil {
		return nil, &DecodeError{Source: path, Err: ErrUnsupportedContainer}
	}
	return s.FFmpeg.Open(ctx, path)
}

func isAVI(header []byte) bool {
	return len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("AVI "))
}

var _ Opener = (*Sniffer)(nil)
