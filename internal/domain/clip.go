package domain

import (
	"math"
	"time"
)

// Clip is one playable source video. Intrinsic fields stay zero until the
// decoder reports metadata.
type Clip struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	Label    string        `json:"label,omitempty"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	FPS      float64       `json:"fps,omitempty"`
}

// Resolved reports whether the clip's metadata has been loaded.
func (c Clip) Resolved() bool {
	return c.Width > 0 && c.Height > 0
}

// Seconds returns the clip duration in seconds, or NaN when unknown.
func (c Clip) Seconds() float64 {
	if c.Duration <= 0 {
		return math.NaN()
	}
	return c.Duration.Seconds()
}

// Direction moves a clip one slot toward the start or end of a sequence.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Sequence is an ordered list of clips that can be reordered only until
// processing starts.
type Sequence struct {
	clips  []Clip
	frozen bool
}

// NewSequence copies clips into a new mutable sequence.
func NewSequence(clips []Clip) (*Sequence, error) {
	if len(clips) == 0 {
		return nil, ErrEmptySequence
	}
	return &Sequence{clips: append([]Clip(nil), clips...)}, nil
}

// Len returns the number of clips.
func (s *Sequence) Len() int { return len(s.clips) }

// Clips returns a copy of the current order.
func (s *Sequence) Clips() []Clip {
	return append([]Clip(nil), s.clips...)
}

// Frozen reports whether processing has started.
func (s *Sequence) Frozen() bool { return s.frozen }

// Freeze locks the order.
func (s *Sequence) Freeze() { s.frozen = true }

// Move shifts the clip at index one slot in the given direction. Moves past
// either end leave the order unchanged.
func (s *Sequence) Move(index int, dir Direction) error {
	switch dir {
	case DirectionLeft:
		return s.Swap(index, index-1)
	case DirectionRight:
		return s.Swap(index, index+1)
	default:
		return ErrInvalidReorderMove
	}
}

// Swap exchanges two positions.
func (s *Sequence) Swap(i, j int) error {
	if s.frozen {
		return ErrSequenceFrozen
	}
	if i < 0 || j < 0 || i >= len(s.clips) || j >= len(s.clips) || i == j {
		return nil
	}
	s.clips[i], s.clips[j] = s.clips[j], s.clips[i]
	return nil
}
