package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/domain"
)

// DefaultRequestVersion is the schema version persisted with queued jobs.
const DefaultRequestVersion = "2025-01"

// RequestDocument is the persisted form of a generation job. One document
// can expand into several requests: image mode runs one generation per
// attached image (storyboard).
type RequestDocument struct {
	Version   string                  `json:"version"`
	Mode      domain.Mode             `json:"mode"`
	Prompt    string                  `json:"prompt"`
	Options   domain.Options          `json:"options"`
	Images    []domain.Image          `json:"images,omitempty"`
	Extension *domain.ExtensionSource `json:"extension,omitempty"`
}

// Normalize applies schema defaults.
func (d *RequestDocument) Normalize() {
	if d == nil {
		return
	}
	if d.Version == "" {
		d.Version = DefaultRequestVersion
	}
	if d.Mode == "" {
		if len(d.Images) > 0 {
			d.Mode = domain.ModeImage
		} else {
			d.Mode = domain.ModePrompt
		}
	}
	d.Prompt = strings.TrimSpace(d.Prompt)
}

// Requests builds the typed requests this document describes.
func (d RequestDocument) Requests() ([]domain.GenerationRequest, error) {
	if len(d.Images) > domain.ImageLimit {
		return nil, fmt.Errorf("%w: maximum of %d images", domain.ErrImageLimit, domain.ImageLimit)
	}
	switch d.Mode {
	case domain.ModePrompt:
		req, err := domain.NewPromptRequest(d.Prompt, d.Options)
		if err != nil {
			return nil, err
		}
		return []domain.GenerationRequest{req}, nil
	case domain.ModeImage:
		if len(d.Images) == 0 {
			return nil, domain.ErrMissingImage
		}
		out := make([]domain.GenerationRequest, 0, len(d.Images))
		for _, img := range d.Images {
			req, err := domain.NewImageRequest(d.Prompt, img, d.Options)
			if err != nil {
				return nil, err
			}
			out = append(out, req)
		}
		return out, nil
	case domain.ModeReferences:
		req, err := domain.NewReferencesRequest(d.Prompt, d.Images, d.Options)
		if err != nil {
			return nil, err
		}
		return []domain.GenerationRequest{req}, nil
	case domain.ModeExtend:
		if d.Extension == nil {
			return nil, domain.ErrMissingExtension
		}
		req, err := domain.NewExtendRequest(d.Prompt, *d.Extension, d.Options)
		if err != nil {
			return nil, err
		}
		return []domain.GenerationRequest{req}, nil
	default:
		return nil, fmt.Errorf("%w: mode %q", domain.ErrInvalidOption, d.Mode)
	}
}

// Validate reports whether the document can be expanded.
func (d RequestDocument) Validate() error {
	_, err := d.Requests()
	return err
}

// Decode parses a persisted document.
func Decode(raw []byte) (RequestDocument, error) {
	var doc RequestDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return RequestDocument{}, fmt.Errorf("decode request document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
