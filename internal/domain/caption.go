package domain

import (
	"fmt"
	"strings"
)

// CaptionPosition anchors the caption at the top or bottom of the frame.
type CaptionPosition string

const (
	CaptionTop    CaptionPosition = "top"
	CaptionBottom CaptionPosition = "bottom"
)

// CaptionColor is the fill colour of caption text.
type CaptionColor string

const (
	CaptionWhite CaptionColor = "white"
	CaptionBlack CaptionColor = "black"
)

// Contrast returns the stroke colour paired with the fill.
func (c CaptionColor) Contrast() CaptionColor {
	if c == CaptionBlack {
		return CaptionWhite
	}
	return CaptionBlack
}

const (
	MinCaptionSize     = 5
	MaxCaptionSize     = 30
	DefaultCaptionSize = 15
)

// Caption is burned into every frame of a caption job. SizePercent is the
// font size as a percentage of the source video height.
type Caption struct {
	Text        string          `json:"text"`
	Position    CaptionPosition `json:"position"`
	Color       CaptionColor    `json:"color"`
	SizePercent int             `json:"size"`
}

// Normalize fills defaults for unset fields.
func (c *Caption) Normalize() {
	if c.Position == "" {
		c.Position = CaptionBottom
	}
	if c.Color == "" {
		c.Color = CaptionWhite
	}
	if c.SizePercent == 0 {
		c.SizePercent = DefaultCaptionSize
	}
}

// Validate rejects whitespace-only text and out-of-range options.
func (c Caption) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyCaption
	}
	if c.SizePercent < MinCaptionSize || c.SizePercent > MaxCaptionSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrCaptionSize, c.SizePercent, MinCaptionSize, MaxCaptionSize)
	}
	switch c.Position {
	case CaptionTop, CaptionBottom:
	default:
		return fmt.Errorf("%w: position %q", ErrInvalidOption, c.Position)
	}
	switch c.Color {
	case CaptionWhite, CaptionBlack:
	default:
		return fmt.Errorf("%w: color %q", ErrInvalidOption, c.Color)
	}
	return nil
}
