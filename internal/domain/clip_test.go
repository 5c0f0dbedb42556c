package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func ids(clips []Clip) []string {
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewSequenceRejectsEmpty(t *testing.T) {
	if _, err := NewSequence(nil); !errors.Is(err, ErrEmptySequence) {
		t.Fatalf("err = %v, want ErrEmptySequence", err)
	}
}

func TestSequenceMove(t *testing.T) {
	tests := []struct {
		name  string
		index int
		dir   Direction
		want  []string
	}{
		{name: "right", index: 0, dir: DirectionRight, want: []string{"b", "a", "c"}},
		{name: "left", index: 2, dir: DirectionLeft, want: []string{"a", "c", "b"}},
		{name: "left edge is noop", index: 0, dir: DirectionLeft, want: []string{"a", "b", "c"}},
		{name: "right edge is noop", index: 2, dir: DirectionRight, want: []string{"a", "b", "c"}},
		{name: "out of range is noop", index: 7, dir: DirectionRight, want: []string{"a", "b", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := NewSequence([]Clip{{ID: "a"}, {ID: "b"}, {ID: "c"}})
			if err != nil {
				t.Fatalf("NewSequence: %v", err)
			}
			if err := seq.Move(tc.index, tc.dir); err != nil {
				t.Fatalf("Move: %v", err)
			}
			if got := ids(seq.Clips()); !equalIDs(got, tc.want) {
				t.Fatalf("order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSequenceMoveInvalidDirection(t *testing.T) {
	seq, _ := NewSequence([]Clip{{ID: "a"}, {ID: "b"}})
	if err := seq.Move(0, "up"); !errors.Is(err, ErrInvalidReorderMove) {
		t.Fatalf("err = %v, want ErrInvalidReorderMove", err)
	}
}

func TestSequenceFrozenRejectsReorder(t *testing.T) {
	seq, _ := NewSequence([]Clip{{ID: "a"}, {ID: "b"}})
	seq.Freeze()
	if err := seq.Move(0, DirectionRight); !errors.Is(err, ErrSequenceFrozen) {
		t.Fatalf("err = %v, want ErrSequenceFrozen", err)
	}
	if got := ids(seq.Clips()); !equalIDs(got, []string{"a", "b"}) {
		t.Fatalf("order changed after freeze: %v", got)
	}
}

func TestSequenceClipsIsCopy(t *testing.T) {
	seq, _ := NewSequence([]Clip{{ID: "a"}, {ID: "b"}})
	clips := seq.Clips()
	clips[0].ID = "z"
	if seq.Clips()[0].ID != "a" {
		t.Fatal("Clips must not alias internal storage")
	}
}

func TestClipSeconds(t *testing.T) {
	if s := (Clip{Duration: 1500 * time.Millisecond}).Seconds(); s != 1.5 {
		t.Fatalf("Seconds = %v, want 1.5", s)
	}
	if s := (Clip{}).Seconds(); !math.IsNaN(s) {
		t.Fatalf("Seconds = %v, want NaN", s)
	}
}
