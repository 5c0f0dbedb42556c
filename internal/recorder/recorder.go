// Package recorder captures canvas frames at a fixed output frame rate and
// encodes them into a single MJPEG/AVI file.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"github.com/icza/mjpeg"

	"studio/internal/infra"
)

// State of a capture session.
type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

var (
	ErrNotRecording     = errors.New("recorder: not recording")
	ErrAlreadyStarted   = errors.New("recorder: already started")
	ErrUnsupportedCodec = errors.New("recorder: unsupported codec")
	ErrFrameSize        = errors.New("recorder: frame size does not match session")
)

// Options configure a capture session.
type Options struct {
	FPS     int
	Bitrate int
	// Quality overrides the JPEG quality derived from Bitrate when set.
	Quality int
	Codec   string
	TempDir string
}

// Artifact is the finished recording on local disk.
type Artifact struct {
	Path     string
	Width    int
	Height   int
	FPS      int
	Frames   int
	Bytes    int64
	Duration time.Duration
}

// statOutput is replaced in tests.
var statOutput = os.Stat

// Recorder is single-use: one Start, then exactly one Stop or Abort.
type Recorder struct {
	logger infra.Logger

	mu      sync.Mutex
	state   State
	width   int
	height  int
	fps     int
	quality int
	path    string
	writer  mjpeg.AviWriter
	frames  int
	buf     bytes.Buffer
	result  *Artifact
}

func New(logger infra.Logger) *Recorder {
	return &Recorder{logger: infra.Component(logger, "recorder"), state: StateInactive}
}

// State returns the current session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens a temp file and begins a session at the given frame size.
func (r *Recorder) Start(width, height int, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInactive {
		return ErrAlreadyStarted
	}
	switch opts.Codec {
	case "", "mjpeg":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCodec, opts.Codec)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("recorder: invalid frame size %dx%d", width, height)
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}

	tmp, err := os.CreateTemp(opts.TempDir, "composite-*.avi")
	if err != nil {
		return fmt.Errorf("recorder: create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	w, err := mjpeg.New(path, int32(width), int32(height), int32(opts.FPS))
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("recorder: open avi writer: %w", err)
	}

	r.width, r.height, r.fps = width, height, opts.FPS
	r.quality = opts.Quality
	if r.quality <= 0 {
		r.quality = QualityForBitrate(opts.Bitrate, width, height, opts.FPS)
	}
	r.path = path
	r.writer = w
	r.state = StateRecording

	r.logger.Debug().
		Int("width", width).
		Int("height", height).
		Int("fps", opts.FPS).
		Int("quality", r.quality).
		Str("path", path).
		Msg("recording started")
	return nil
}

// Capture samples img onto the output timeline. The image is shown from
// start until end (job-relative); every output frame slot whose timestamp
// falls in that window receives it, so slow or fast sources are duplicated
// or dropped to hold the fixed output rate.
func (r *Recorder) Capture(img image.Image, start, end time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return 0, ErrNotRecording
	}
	b := img.Bounds()
	if b.Dx() != r.width || b.Dy() != r.height {
		return 0, fmt.Errorf("%w: got %dx%d want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), r.width, r.height)
	}

	written := 0
	encoded := false
	for r.slot(r.frames) < end {
		if r.slot(r.frames) < start {
			// the source skipped ahead; hold the previous picture
			if encoded || r.buf.Len() > 0 {
				if err := r.writer.AddFrame(r.buf.Bytes()); err != nil {
					return written, fmt.Errorf("recorder: add frame: %w", err)
				}
				r.frames++
				written++
				continue
			}
		}
		if !encoded {
			r.buf.Reset()
			if err := jpeg.Encode(&r.buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
				return written, fmt.Errorf("recorder: encode frame: %w", err)
			}
			encoded = true
		}
		if err := r.writer.AddFrame(r.buf.Bytes()); err != nil {
			return written, fmt.Errorf("recorder: add frame: %w", err)
		}
		r.frames++
		written++
	}
	return written, nil
}

// slot returns the timestamp of output frame n.
func (r *Recorder) slot(n int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / int64(r.fps))
}

// Frames returns the number of output frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Stop finalizes the container and returns the artifact. It is a no-op
// returning (nil, nil) unless the session is recording, so the artifact is
// assembled exactly once.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, nil
	}
	r.state = StateStopped
	if err := r.writer.Close(); err != nil {
		os.Remove(r.path)
		return nil, fmt.Errorf("recorder: finalize: %w", err)
	}
	info, err := statOutput(r.path)
	if err != nil {
		os.Remove(r.path)
		return nil, fmt.Errorf("recorder: stat output: %w", err)
	}
	r.result = &Artifact{
		Path:     r.path,
		Width:    r.width,
		Height:   r.height,
		FPS:      r.fps,
		Frames:   r.frames,
		Bytes:    info.Size(),
		Duration: r.slot(r.frames),
	}
	r.logger.Debug().Int("frames", r.frames).Int64("bytes", info.Size()).Msg("recording stopped")
	return r.result, nil
}

// Abort tears the session down without producing an artifact. Safe to call
// in any state and more than once.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRecording:
		r.state = StateStopped
		_ = r.writer.Close()
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("recorder: remove temp file: %w", err)
		}
	case StateStopped:
		if r.result != nil {
			// artifact not yet handed off to storage
			if err := os.Remove(r.result.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("recorder: remove artifact: %w", err)
			}
			r.result = nil
		}
	default:
		r.state = StateStopped
	}
	return nil
}

// Release forgets the artifact after the caller has taken ownership of the
// file, so a later Abort leaves it alone.
func (r *Recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = nil
}

// QualityForBitrate maps a target bitrate onto a JPEG quality using the
// bits available per pixel per frame.
func QualityForBitrate(bitrate, width, height, fps int) int {
	if bitrate <= 0 || width <= 0 || height <= 0 || fps <= 0 {
		return 85
	}
	bpp := float64(bitrate) / float64(width*height*fps)
	q := int(40 + bpp*200)
	if q < 50 {
		return 50
	}
	if q > 95 {
		return 95
	}
	return q
}
