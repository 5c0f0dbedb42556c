package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
)

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoReference struct {
	Image         veoImage `json:"image"`
	ReferenceType string   `json:"referenceType"`
}

type veoVideo struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
}

type veoInstance struct {
	Prompt          string         `json:"prompt,omitempty"`
	Image           *veoImage      `json:"image,omitempty"`
	ReferenceImages []veoReference `json:"referenceImages,omitempty"`
	Video           *veoVideo      `json:"video,omitempty"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	SampleCount int    `json:"sampleCount,omitempty"`
}

type predictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Operation is a long-running generation as reported by the API.
type Operation struct {
	Name     string     `json:"name"`
	Done     bool       `json:"done"`
	Error    *apiStatus `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video veoVideo `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// videoURIs validates a finished operation and lists its sample URIs.
func (op *Operation) videoURIs() ([]string, error) {
	if op.Error != nil {
		return nil, ClassifyError(op.Error.Code, op.Error.Status, op.Error.Message)
	}
	if op.Response == nil {
		return nil, domain.ErrNoVideos
	}
	var uris []string
	for _, s := range op.Response.GenerateVideoResponse.GeneratedSamples {
		if s.Video.URI != "" {
			uris = append(uris, s.Video.URI)
		}
	}
	if len(uris) == 0 {
		return nil, domain.ErrNoVideos
	}
	return uris, nil
}

func buildPayload(req domain.GenerationRequest) predictRequest {
	opts := req.Options()
	inst := veoInstance{Prompt: req.Prompt()}
	switch r := req.(type) {
	case domain.ImageRequest:
		img := r.Image()
		inst.Image = &veoImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(img.Data), MimeType: img.MIME}
	case domain.ReferencesRequest:
		for _, img := range r.References() {
			inst.ReferenceImages = append(inst.ReferenceImages, veoReference{
				Image:         veoImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(img.Data), MimeType: img.MIME},
				ReferenceType: "asset",
			})
		}
	case domain.ExtendRequest:
		inst.Video = &veoVideo{URI: r.Source().RemoteURI}
	}
	return predictRequest{
		Instances: []veoInstance{inst},
		Parameters: veoParameters{
			AspectRatio: string(opts.AspectRatio),
			Resolution:  string(opts.Resolution),
			SampleCount: opts.NumberOfVideos,
		},
	}
}

// Submit starts a long-running generation.
func (c *Client) Submit(ctx context.Context, key string, req domain.GenerationRequest) (*Operation, error) {
	path := fmt.Sprintf("models/%s:predictLongRunning", url.PathEscape(string(req.Options().Model)))
	var op Operation
	if err := c.invoke(ctx, http.MethodPost, path, key, buildPayload(req), &op); err != nil {
		return nil, err
	}
	if op.Name == "" && !op.Done {
		return nil, fmt.Errorf("%w: operation has no name", domain.ErrGenerationFailed)
	}
	return &op, nil
}

// Poll re-reads the operation every poll interval until it is done.
func (c *Client) Poll(ctx context.Context, key string, op *Operation) (*Operation, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		var next Operation
		if err := c.invoke(ctx, http.MethodGet, strings.TrimLeft(op.Name, "/"), key, nil, &next); err != nil {
			return nil, err
		}
		if next.Name == "" {
			next.Name = op.Name
		}
		op = &next
		c.logger.Debug().Str("operation", op.Name).Bool("done", op.Done).Msg("generation polled")
	}
	return op, nil
}

// Download fetches every URI concurrently, preserving order.
func (c *Client) Download(ctx context.Context, key string, uris []string) ([]Video, error) {
	videos := make([]Video, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	for i, uri := range uris {
		i, uri := i, uri
		g.Go(func() error {
			data, mime, err := c.downloadFile(gctx, key, uri)
			if err != nil {
				return err
			}
			if mime == "" {
				mime = "video/mp4"
			}
			videos[i] = Video{URI: uri, MIME: mime, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return videos, nil
}
