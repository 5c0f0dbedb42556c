package domain

import (
	"fmt"
	"strings"
)

// Model identifies a Veo generation model.
type Model string

const (
	ModelFast    Model = "veo-3.1-fast-generate-preview"
	ModelQuality Model = "veo-3.1-generate-preview"
)

// AspectRatio of generated video.
type AspectRatio string

const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
	Aspect1x1  AspectRatio = "1:1"
)

// Resolution of generated video.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

const (
	// ImageLimit caps images attached to a single request.
	ImageLimit = 5
	// MaxReferenceImages caps asset references sent to the quality model.
	MaxReferenceImages = 3
	MaxVideosPerPrompt = 4
)

// Mode tags the variant of a generation request.
type Mode string

const (
	ModePrompt     Mode = "prompt"
	ModeImage      Mode = "image"
	ModeReferences Mode = "references"
	ModeExtend     Mode = "extend"
)

// Options are shared by every request variant.
type Options struct {
	Model          Model       `json:"model"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	Resolution     Resolution  `json:"resolution"`
	NumberOfVideos int         `json:"number_of_videos"`
}

// DefaultOptions mirrors the generator's initial form state.
func DefaultOptions() Options {
	return Options{
		Model:          ModelFast,
		AspectRatio:    Aspect16x9,
		Resolution:     Resolution720p,
		NumberOfVideos: 1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Model == "" {
		o.Model = d.Model
	}
	if o.AspectRatio == "" {
		o.AspectRatio = d.AspectRatio
	}
	if o.Resolution == "" {
		o.Resolution = d.Resolution
	}
	if o.NumberOfVideos == 0 {
		o.NumberOfVideos = d.NumberOfVideos
	}
	return o
}

func (o Options) validate() error {
	switch o.Model {
	case ModelFast, ModelQuality:
	default:
		return fmt.Errorf("%w: model %q", ErrInvalidOption, o.Model)
	}
	switch o.AspectRatio {
	case Aspect16x9, Aspect9x16, Aspect1x1:
	default:
		return fmt.Errorf("%w: aspect ratio %q", ErrInvalidOption, o.AspectRatio)
	}
	switch o.Resolution {
	case Resolution720p, Resolution1080p:
	default:
		return fmt.Errorf("%w: resolution %q", ErrInvalidOption, o.Resolution)
	}
	if o.NumberOfVideos < 1 || o.NumberOfVideos > MaxVideosPerPrompt {
		return fmt.Errorf("%w: number of videos %d", ErrInvalidOption, o.NumberOfVideos)
	}
	return nil
}

// Image is an inline image payload.
type Image struct {
	MIME string `json:"mime"`
	Data []byte `json:"data"`
}

// ExtensionSource references a previously generated video by its remote
// URI so the service can continue it.
type ExtensionSource struct {
	ResultID  string `json:"result_id"`
	RemoteURI string `json:"remote_uri"`
}

// GenerationRequest is a closed set of request variants. Each variant is
// built through its constructor, which enforces the mode's constraints.
type GenerationRequest interface {
	Mode() Mode
	Prompt() string
	Options() Options
	sealed()
}

type baseRequest struct {
	prompt  string
	options Options
}

func (b baseRequest) Prompt() string   { return b.prompt }
func (b baseRequest) Options() Options { return b.options }
func (baseRequest) sealed()            {}

func newBase(prompt string, opts Options) (baseRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return baseRequest{}, ErrEmptyPrompt
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return baseRequest{}, err
	}
	return baseRequest{prompt: prompt, options: opts}, nil
}

// PromptRequest generates NumberOfVideos variations from text only.
type PromptRequest struct{ baseRequest }

func (PromptRequest) Mode() Mode { return ModePrompt }

func NewPromptRequest(prompt string, opts Options) (PromptRequest, error) {
	b, err := newBase(prompt, opts)
	if err != nil {
		return PromptRequest{}, err
	}
	return PromptRequest{b}, nil
}

// ImageRequest animates a single starting image with either model.
type ImageRequest struct {
	baseRequest
	image Image
}

func (ImageRequest) Mode() Mode { return ModeImage }

// Image returns the starting frame.
func (r ImageRequest) Image() Image { return r.image }

func NewImageRequest(prompt string, img Image, opts Options) (ImageRequest, error) {
	if len(img.Data) == 0 {
		return ImageRequest{}, ErrMissingImage
	}
	b, err := newBase(prompt, opts)
	if err != nil {
		return ImageRequest{}, err
	}
	// one video per starting image
	b.options.NumberOfVideos = 1
	return ImageRequest{baseRequest: b, image: img}, nil
}

// ReferencesRequest steers the quality model with up to three asset images.
type ReferencesRequest struct {
	baseRequest
	images []Image
}

func (ReferencesRequest) Mode() Mode { return ModeReferences }

// References returns the asset images in order.
func (r ReferencesRequest) References() []Image { return append([]Image(nil), r.images...) }

func NewReferencesRequest(prompt string, images []Image, opts Options) (ReferencesRequest, error) {
	if len(images) == 0 {
		return ReferencesRequest{}, ErrMissingImage
	}
	if len(images) > MaxReferenceImages {
		return ReferencesRequest{}, fmt.Errorf("%w: %d > %d", ErrTooManyReferences, len(images), MaxReferenceImages)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Generate a video based on these references"
	}
	b, err := newBase(prompt, opts)
	if err != nil {
		return ReferencesRequest{}, err
	}
	if b.options.Model != ModelQuality {
		return ReferencesRequest{}, ErrReferencesModel
	}
	return ReferencesRequest{baseRequest: b, images: append([]Image(nil), images...)}, nil
}

// ExtendRequest continues a previously generated video with a follow-up
// prompt.
type ExtendRequest struct {
	baseRequest
	source ExtensionSource
}

func (ExtendRequest) Mode() Mode { return ModeExtend }

// Source returns the video being extended.
func (r ExtendRequest) Source() ExtensionSource { return r.source }

func NewExtendRequest(prompt string, src ExtensionSource, opts Options) (ExtendRequest, error) {
	if strings.TrimSpace(src.RemoteURI) == "" {
		return ExtendRequest{}, ErrMissingExtension
	}
	b, err := newBase(prompt, opts)
	if err != nil {
		return ExtendRequest{}, err
	}
	b.options.NumberOfVideos = 1
	return ExtendRequest{baseRequest: b, source: src}, nil
}

var (
	_ GenerationRequest = PromptRequest{}
	_ GenerationRequest = ImageRequest{}
	_ GenerationRequest = ReferencesRequest{}
	_ GenerationRequest = ExtendRequest{}
)
