package domain

import (
	"errors"
	"testing"
)

func TestNewPromptRequestDefaults(t *testing.T) {
	req, err := NewPromptRequest("  a fox in snow ", Options{})
	if err != nil {
		t.Fatalf("NewPromptRequest: %v", err)
	}
	if req.Prompt() != "a fox in snow" {
		t.Fatalf("Prompt = %q", req.Prompt())
	}
	if req.Options() != DefaultOptions() {
		t.Fatalf("Options = %+v, want defaults", req.Options())
	}
	if req.Mode() != ModePrompt {
		t.Fatalf("Mode = %q", req.Mode())
	}
}

func TestNewPromptRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		opts   Options
		want   error
	}{
		{name: "empty prompt", prompt: "   ", want: ErrEmptyPrompt},
		{name: "bad model", prompt: "x", opts: Options{Model: "veo-1"}, want: ErrInvalidOption},
		{name: "bad aspect", prompt: "x", opts: Options{AspectRatio: "4:3"}, want: ErrInvalidOption},
		{name: "bad resolution", prompt: "x", opts: Options{Resolution: "4k"}, want: ErrInvalidOption},
		{name: "too many videos", prompt: "x", opts: Options{NumberOfVideos: 5}, want: ErrInvalidOption},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPromptRequest(tc.prompt, tc.opts); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewImageRequestForcesSingleVideo(t *testing.T) {
	req, err := NewImageRequest("x", Image{MIME: "image/png", Data: []byte{1}}, Options{NumberOfVideos: 3})
	if err != nil {
		t.Fatalf("NewImageRequest: %v", err)
	}
	if req.Options().NumberOfVideos != 1 {
		t.Fatalf("NumberOfVideos = %d, want 1", req.Options().NumberOfVideos)
	}
	if _, err := NewImageRequest("x", Image{}, Options{}); !errors.Is(err, ErrMissingImage) {
		t.Fatalf("err = %v, want ErrMissingImage", err)
	}
}

func TestNewReferencesRequest(t *testing.T) {
	img := Image{MIME: "image/png", Data: []byte{1}}

	if _, err := NewReferencesRequest("x", []Image{img}, Options{Model: ModelFast}); !errors.Is(err, ErrReferencesModel) {
		t.Fatalf("fast model err = %v, want ErrReferencesModel", err)
	}
	if _, err := NewReferencesRequest("x", []Image{img, img, img, img}, Options{Model: ModelQuality}); !errors.Is(err, ErrTooManyReferences) {
		t.Fatalf("four refs err = %v, want ErrTooManyReferences", err)
	}
	req, err := NewReferencesRequest("", []Image{img, img}, Options{Model: ModelQuality})
	if err != nil {
		t.Fatalf("NewReferencesRequest: %v", err)
	}
	if req.Prompt() == "" {
		t.Fatal("expected default reference prompt")
	}
	if len(req.References()) != 2 {
		t.Fatalf("References = %d, want 2", len(req.References()))
	}
}

func TestNewExtendRequest(t *testing.T) {
	if _, err := NewExtendRequest("more", ExtensionSource{}, Options{}); !errors.Is(err, ErrMissingExtension) {
		t.Fatalf("err = %v, want ErrMissingExtension", err)
	}
	src := ExtensionSource{ResultID: "r1", RemoteURI: "https://example.com/v.mp4"}
	req, err := NewExtendRequest("more", src, Options{})
	if err != nil {
		t.Fatalf("NewExtendRequest: %v", err)
	}
	if req.Source() != src {
		t.Fatalf("Source = %+v", req.Source())
	}
}

func TestErrorKindRetryable(t *testing.T) {
	if !ErrorKindGeneric.Retryable() {
		t.Fatal("generic should be retryable")
	}
	if ErrorKindQuotaExhausted.Retryable() || ErrorKindAuth.Retryable() {
		t.Fatal("quota and auth need user action")
	}
}
