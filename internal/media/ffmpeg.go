package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FFmpeg decodes arbitrary containers by piping raw RGBA frames out of an
// ffmpeg subprocess. Metadata comes from ffprobe.
type FFmpeg struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// NewFFmpeg resolves both binaries on PATH (or as given).
func NewFFmpeg(logger zerolog.Logger, ffmpegBin, ffprobeBin string, threads int) (*FFmpeg, error) {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffprobePath, err := exec.LookPath(ffprobeBin)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	return &FFmpeg{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// probeResult matches the subset of ffprobe JSON output we read.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe extracts the video stream's metadata.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	args := []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path}
	out, err := exec.CommandContext(ctx, f.ffprobePath, args...).Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (Info, error) {
	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info Info
	found := false
	for _, st := range probe.Streams {
		if st.CodecType != "video" {
			continue
		}
		found = true
		info.Width, info.Height = st.Width, st.Height
		info.Codec = st.CodecName
		info.FPS = ParseFrameRate(st.RFrameRate)
		if n, err := strconv.Atoi(st.NbFrames); err == nil {
			info.Frames = n
		}
		if d := parseSeconds(st.Duration); d > 0 {
			info.Duration = d
		}
		break
	}
	if !found {
		return Info{}, errors.New("no video stream")
	}
	if info.Duration == 0 {
		info.Duration = parseSeconds(probe.Format.Duration)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("invalid frame size %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// ParseFrameRate converts ffprobe's "num/den" notation.
func ParseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) time.Duration {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// Open probes path and starts a decode pipe.
func (f *FFmpeg) Open(ctx context.Context, path string) (Stream, error) {
	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	if info.FPS <= 0 {
		info.FPS = 30
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if f.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(f.threads))
	}
	args = append(args, "-i", path, "-an", "-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")

	f.logger.Debug().Str("cmd", "ffmpeg").Strs("args", args).Msg("starting decoder")

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, f.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &DecodeError{Source: path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &DecodeError{Source: path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &DecodeError{Source: path, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	s := &ffmpegStream{
		path:     path,
		info:     info,
		cmd:      cmd,
		cancel:   cancel,
		r:        bufio.NewReaderSize(stdout, info.Width*info.Height*4),
		frameDur: time.Duration(float64(time.Second) / info.FPS),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.appendStderr(scanner.Text())
		}
	}()
	return s, nil
}

type ffmpegStream struct {
	path     string
	info     Info
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	r        *bufio.Reader
	frameDur time.Duration
	index    int

	wg        sync.WaitGroup
	mu        sync.Mutex
	stderr    []string
	waitOnce  sync.Once
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) appendStderr(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stderr) < 20 {
		s.stderr = append(s.stderr, line)
	}
}

func (s *ffmpegStream) stderrText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.stderr, "; ")
}

// wait reaps the process once both pipes have been drained.
func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		s.wg.Wait()
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *ffmpegStream) Info() Info { return s.info }

func (s *ffmpegStream) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	if _, err := io.ReadFull(s.r, img.Pix); err != nil {
		return Frame{}, s.readFailed(ctx, err)
	}
	frame := Frame{Image: img, PTS: time.Duration(s.index) * s.frameDur, Duration: s.frameDur}
	s.index++
	return frame, nil
}

// readFailed turns the end of the pipe into io.EOF only when ffmpeg exited
// cleanly. A non-zero exit mid-clip is a decode failure.
func (s *ffmpegStream) readFailed(ctx context.Context, readErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		return &DecodeError{Source: s.path, Err: readErr}
	}
	if err := s.wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := s.stderrText(); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &DecodeError{Source: s.path, Err: fmt.Errorf("ffmpeg exited after %d frames: %w", s.index, err)}
	}
	if s.index == 0 {
		return &DecodeError{Source: s.path, Err: fmt.Errorf("no frames decoded: %w", readErr)}
	}
	// a truncated trailing frame ends the clip
	return io.EOF
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		err := s.wait()
		// killed by our own cancel is the normal teardown path
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

var _ Stream = (*ffmpegStream)(nil)
