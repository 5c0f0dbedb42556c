package domain

import (
	"errors"
	"testing"
)

func TestCaptionValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Caption
		want error
	}{
		{name: "ok", c: Caption{Text: "Hi", Position: CaptionTop, Color: CaptionWhite, SizePercent: 15}},
		{name: "whitespace only", c: Caption{Text: " \t\n", Position: CaptionTop, Color: CaptionWhite, SizePercent: 15}, want: ErrEmptyCaption},
		{name: "too small", c: Caption{Text: "Hi", Position: CaptionTop, Color: CaptionWhite, SizePercent: 4}, want: ErrCaptionSize},
		{name: "too large", c: Caption{Text: "Hi", Position: CaptionTop, Color: CaptionWhite, SizePercent: 31}, want: ErrCaptionSize},
		{name: "bad position", c: Caption{Text: "Hi", Position: "middle", Color: CaptionWhite, SizePercent: 15}, want: ErrInvalidOption},
		{name: "bad color", c: Caption{Text: "Hi", Position: CaptionTop, Color: "red", SizePercent: 15}, want: ErrInvalidOption},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCaptionNormalize(t *testing.T) {
	c := Caption{Text: "x"}
	c.Normalize()
	if c.Position != CaptionBottom || c.Color != CaptionWhite || c.SizePercent != DefaultCaptionSize {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestCaptionColorContrast(t *testing.T) {
	if CaptionWhite.Contrast() != CaptionBlack || CaptionBlack.Contrast() != CaptionWhite {
		t.Fatal("contrast must swap white and black")
	}
}
