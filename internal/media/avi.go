package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"time"
)

// aviStream reads the MJPEG video track of a RIFF/AVI file, the same layout
// the recorder produces.
type aviStream struct {
	path     string
	f        *os.File
	r        *bufio.Reader
	info     Info
	frameDur time.Duration
	fileSize int64
	moviLeft int64
	index    int
}

// maxHeaderChunk bounds avih; the real chunk is 56 bytes.
const maxHeaderChunk = 4 << 10

// ErrChunkTooLarge reports a chunk size that cannot fit in the file.
var ErrChunkTooLarge = errors.New("media: avi chunk exceeds file size")

type chunkHeader struct {
	id   [4]byte
	size uint32
}

// OpenAVI parses the header list and positions the reader at the first
// chunk of the movi list.
func OpenAVI(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &DecodeError{Source: path, Err: err}
	}
	s := &aviStream{path: path, f: f, r: bufio.NewReaderSize(f, 256<<10), fileSize: st.Size()}
	if err := s.readHeader(); err != nil {
		f.Close()
		return nil, &DecodeError{Source: path, Err: err}
	}
	return s, nil
}

func (s *aviStream) readHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(s.r, riff[:]); err != nil {
		return fmt.Errorf("read riff header: %w", err)
	}
	if !isAVI(riff[:]) {
		return ErrUnsupportedContainer
	}

	var microSecPerFrame, totalFrames uint32
	for {
		h, err := s.readChunkHeader()
		if err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}
		switch string(h.id[:]) {
		case "LIST":
			var kind [4]byte
			if _, err := io.ReadFull(s.r, kind[:]); err != nil {
				return fmt.Errorf("read list type: %w", err)
			}
			if string(kind[:]) == "movi" {
				s.moviLeft = min(int64(h.size)-4, s.fileSize)
				s.finishInfo(microSecPerFrame, totalFrames)
				return nil
			}
			// hdrl and strl are containers: continue into their children.
		case "avih":
			if h.size < 40 {
				return errors.New("avih chunk too short")
			}
			if h.size > maxHeaderChunk {
				return fmt.Errorf("%w: avih is %d bytes", ErrChunkTooLarge, h.size)
			}
			body := make([]byte, h.size)
			if _, err := io.ReadFull(s.r, body); err != nil {
				return fmt.Errorf("read avih: %w", err)
			}
			microSecPerFrame = binary.LittleEndian.Uint32(body[0:4])
			totalFrames = binary.LittleEndian.Uint32(body[16:20])
			s.info.Width = int(binary.LittleEndian.Uint32(body[32:36]))
			s.info.Height = int(binary.LittleEndian.Uint32(body[36:40]))
			if err := s.skipPad(h.size); err != nil {
				return err
			}
		default:
			if err := s.skip(int64(h.size) + int64(h.size&1)); err != nil {
				return err
			}
		}
	}
}

func (s *aviStream) finishInfo(microSecPerFrame, totalFrames uint32) {
	if microSecPerFrame == 0 {
		microSecPerFrame = 1_000_000 / 30
	}
	s.frameDur = time.Duration(microSecPerFrame) * time.Microsecond
	s.info.FPS = float64(time.Second) / float64(s.frameDur)
	s.info.Frames = int(totalFrames)
	s.info.Duration = time.Duration(totalFrames) * s.frameDur
	s.info.Codec = "mjpeg"
}

func (s *aviStream) Info() Info { return s.info }

func (s *aviStream) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if s.moviLeft < 8 {
			return Frame{}, io.EOF
		}
		h, err := s.readChunkHeader()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, &DecodeError{Source: s.path, Err: err}
		}
		s.moviLeft -= 8
		padded := int64(h.size) + int64(h.size&1)

		id := string(h.id[:])
		switch {
		case id == "LIST":
			// rec lists group chunks; step inside
			if err := s.skip(4); err != nil {
				return Frame{}, &DecodeError{Source: s.path, Err: err}
			}
			s.moviLeft -= 4
			continue
		case len(id) == 4 && (id[2:] == "dc" || id[2:] == "db"):
			if int64(h.size) > s.moviLeft || int64(h.size) > s.fileSize {
				return Frame{}, &DecodeError{Source: s.path, Err: fmt.Errorf("%w: frame %d is %d bytes", ErrChunkTooLarge, s.index, h.size)}
			}
			data := make([]byte, h.size)
			if _, err := io.ReadFull(s.r, data); err != nil {
				return Frame{}, &DecodeError{Source: s.path, Err: err}
			}
			if err := s.skipPad(h.size); err != nil {
				return Frame{}, &DecodeError{Source: s.path, Err: err}
			}
			s.moviLeft -= padded
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return Frame{}, &DecodeError{Source: s.path, Err: fmt.Errorf("frame %d: %w", s.index, err)}
			}
			frame := Frame{Image: img, PTS: time.Duration(s.index) * s.frameDur, Duration: s.frameDur}
			s.index++
			return frame, nil
		default:
			if err := s.skip(padded); err != nil {
				return Frame{}, &DecodeError{Source: s.path, Err: err}
			}
			s.moviLeft -= padded
		}
	}
}

func (s *aviStream) Close() error {
	return s.f.Close()
}

func (s *aviStream) readChunkHeader() (chunkHeader, error) {
	var raw [8]byte
	if _, err := io.ReadFull(s.r, raw[:]); err != nil {
		return chunkHeader{}, err
	}
	var h chunkHeader
	copy(h.id[:], raw[0:4])
	h.size = binary.LittleEndian.Uint32(raw[4:8])
	return h, nil
}

func (s *aviStream) skipPad(size uint32) error {
	if size&1 == 1 {
		return s.skip(1)
	}
	return nil
}

func (s *aviStream) skip(n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := s.r.Discard(int(n)); err != nil {
		return fmt.Errorf("skip %d bytes: %w", n, err)
	}
	return nil
}

var _ Stream = (*aviStream)(nil)
