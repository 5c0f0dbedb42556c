package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"strconv"

	"github.com/icza/mjpeg"

	"studio/internal/domain"
)

const (
	syntheticFPS     = 10
	syntheticSeconds = 2
	// SyntheticMIME is the container of locally rendered clips.
	SyntheticMIME = "video/x-msvideo"
)

// syntheticVideos renders deterministic MJPEG clips so the worker and the
// compositing pipeline run end to end without an API key.
func (c *Client) syntheticVideos(req domain.GenerationRequest) ([]Video, error) {
	opts := req.Options()
	n := opts.NumberOfVideos
	if n <= 0 {
		n = 1
	}
	w, h := syntheticSize(opts.AspectRatio)
	videos := make([]Video, 0, n)
	for i := 0; i < n; i++ {
		seed := deterministicSeed(req.Mode(), req.Prompt(), opts.Model, i)
		data, err := renderSyntheticClip(w, h, seed)
		if err != nil {
			return nil, err
		}
		videos = append(videos, Video{
			URI:  fmt.Sprintf("synthetic://%s/%02d", seed, i+1),
			MIME: SyntheticMIME,
			Data: data,
		})
	}
	c.logger.Debug().
		Str("mode", string(req.Mode())).
		Int("quantity", n).
		Msg("generated synthetic clips")
	return videos, nil
}

func syntheticSize(aspect domain.AspectRatio) (int, int) {
	switch aspect {
	case domain.Aspect9x16:
		return 180, 320
	case domain.Aspect1x1:
		return 240, 240
	default:
		return 320, 180
	}
}

// renderSyntheticClip draws a seeded background with an accent bar sweeping
// left to right.
func renderSyntheticClip(w, h int, seed string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "synthetic-*.avi")
	if err != nil {
		return nil, fmt.Errorf("synthetic clip: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	aw, err := mjpeg.New(path, int32(w), int32(h), syntheticFPS)
	if err != nil {
		return nil, fmt.Errorf("synthetic clip: %w", err)
	}
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	frames := syntheticFPS * syntheticSeconds
	bar := w / 8
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)
		x := (w - bar) * i / (frames - 1)
		draw.Draw(img, image.Rect(x, 0, x+bar, h), &image.Uniform{accent}, image.Point{}, draw.Src)
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			aw.Close()
			return nil, fmt.Errorf("synthetic clip: %w", err)
		}
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			aw.Close()
			return nil, fmt.Errorf("synthetic clip: %w", err)
		}
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("synthetic clip: %w", err)
	}
	return os.ReadFile(path)
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
