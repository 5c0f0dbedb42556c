package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icza/mjpeg"
)

func writeTestAVI(t *testing.T, dir string, w, h, fps, frames int) string {
	t.Helper()
	path := filepath.Join(dir, "clip.avi")
	aw, err := mjpeg.New(path, int32(w), int32(h), int32(fps))
	if err != nil {
		t.Fatalf("mjpeg.New: %v", err)
	}
	for i := 0; i < frames; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		shade := uint8(40 * (i + 1))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = shade, shade, shade, 255
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			t.Fatalf("AddFrame: %v", err)
		}
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestOpenAVIReadsFrames(t *testing.T) {
	path := writeTestAVI(t, t.TempDir(), 32, 16, 10, 4)

	s, err := OpenAVI(path)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	defer s.Close()

	info := s.Info()
	if info.Width != 32 || info.Height != 16 {
		t.Fatalf("size = %dx%d", info.Width, info.Height)
	}
	if info.Frames != 4 {
		t.Fatalf("Frames = %d", info.Frames)
	}
	if info.Duration != 400*time.Millisecond {
		t.Fatalf("Duration = %s", info.Duration)
	}

	ctx := context.Background()
	var got []Frame
	for {
		f, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, f)
	}
	if len(got) != 4 {
		t.Fatalf("decoded %d frames, want 4", len(got))
	}
	if got[2].PTS != 200*time.Millisecond || got[2].End() != 300*time.Millisecond {
		t.Fatalf("frame 2 timing = %s..%s", got[2].PTS, got[2].End())
	}
	r, _, _, _ := got[3].Image.At(5, 5).RGBA()
	if r>>8 < 140 || r>>8 > 180 {
		t.Fatalf("frame 3 shade = %d, want about 160", r>>8)
	}
}

func TestSnifferRoutesAVIWithoutFFmpeg(t *testing.T) {
	dir := t.TempDir()
	path := writeTestAVI(t, dir, 8, 8, 30, 1)

	sn := NewSniffer(nil)
	s, err := sn.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	other := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(other, []byte("\x00\x00\x00\x18ftypmp42"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = sn.Open(context.Background(), other)
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, ErrUnsupportedContainer) {
		t.Fatalf("err = %v, want unsupported container", err)
	}
}

func TestOpenAVIRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.avi")
	if err := os.WriteFile(path, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAVI(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAVIRejectsOversizedHeaderChunk(t *testing.T) {
	var buf bytes.Buffer
	le := func(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
	buf.WriteString("RIFF")
	buf.Write(le(100))
	buf.WriteString("AVI LIST")
	buf.Write(le(80))
	buf.WriteString("hdrlavih")
	buf.Write(le(0xFFFFFFF0))
	buf.Write(make([]byte, 56))

	path := filepath.Join(t.TempDir(), "huge.avi")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAVI(path); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("err = %v, want ErrChunkTooLarge", err)
	}
}

func TestAVIRejectsOversizedFrameChunk(t *testing.T) {
	path := writeTestAVI(t, t.TempDir(), 16, 16, 10, 2)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	movi := bytes.Index(data, []byte("movi"))
	if movi < 0 {
		t.Fatal("no movi list")
	}
	// first chunk after the list type: 4 byte id, then its size
	size := movi + 8
	data[size], data[size+1], data[size+2], data[size+3] = 0xff, 0xff, 0xff, 0x7f
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenAVI(path)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	defer s.Close()
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("err = %v, want ErrChunkTooLarge", err)
	}
}
