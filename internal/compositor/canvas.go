// Package compositor draws decoded frames onto a fixed-size canvas and burns
// in caption overlays.
package compositor

import (
	"image"

	"golang.org/x/image/draw"
)

// Canvas is the fixed-size drawing surface shared by every clip of a job.
type Canvas struct {
	img     *image.RGBA
	overlay *Overlay
}

func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (c *Canvas) Width() int  { return c.img.Rect.Dx() }
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Image exposes the backing buffer. Callers must not retain it across Draw
// calls.
func (c *Canvas) Image() *image.RGBA { return c.img }

// SetOverlay attaches a caption drawn on top of every frame. nil removes it.
func (c *Canvas) SetOverlay(o *Overlay) { c.overlay = o }

// Draw scales src to fill the whole canvas, ignoring aspect ratio, then
// composites the overlay.
func (c *Canvas) Draw(src image.Image) {
	dst := c.img.Bounds()
	sb := src.Bounds()
	if sb.Dx() == dst.Dx() && sb.Dy() == dst.Dy() {
		draw.Draw(c.img, dst, src, sb.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(c.img, dst, src, sb, draw.Src, nil)
	}
	if c.overlay != nil {
		c.overlay.DrawOn(c.img)
	}
}
