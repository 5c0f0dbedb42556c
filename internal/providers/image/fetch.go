// Package image loads reference images for generation requests, either from
// a URL or from an inline data URL.
package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// MaxImageBytes caps a single fetched image.
const MaxImageBytes = 20 << 20

var (
	ErrNotImage = errors.New("url does not point to a valid image")
	ErrTooLarge = errors.New("image exceeds size limit")
	ErrBadURL   = errors.New("invalid image url")
)

// FetchError describes a failed image load.
type FetchError struct {
	URL    string
	Status int
	// Network is set when the request never produced a response.
	Network bool
	Err     error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("failed to load image")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Network {
		b.WriteString(". This might be due to network or cross-origin policy")
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetched is a loaded image with the name it was served under.
type Fetched struct {
	domain.Image
	Filename string
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	httpClient *http.Client
	logger     infra.Logger
}

func NewFetcher(client *http.Client, logger infra.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{httpClient: client, logger: infra.Component(logger, "image_fetch")}
}

// Load accepts an http(s) URL or a data URL.
func (f *Fetcher) Load(ctx context.Context, raw string) (Fetched, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		img, err := DecodeDataURL(raw)
		if err != nil {
			return Fetched{}, err
		}
		return Fetched{Image: img, Filename: "inline-image"}, nil
	}
	return f.Fetch(ctx, raw)
}

// Fetch downloads an image and checks that the server labels it as one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Fetched, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Fetched{}, &FetchError{URL: rawURL, Err: ErrBadURL}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Fetched{}, &FetchError{URL: rawURL, Err: err}
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Fetched{}, &FetchError{URL: rawURL, Err: err, Network: isNetworkError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fetched{}, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mt, "image/") {
		return Fetched{}, &FetchError{URL: rawURL, Err: ErrNotImage}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return Fetched{}, &FetchError{URL: rawURL, Err: err, Network: isNetworkError(err)}
	}
	if len(data) > MaxImageBytes {
		return Fetched{}, &FetchError{URL: rawURL, Err: ErrTooLarge}
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "linked-image"
	}
	f.logger.Debug().Str("url", rawURL).Int("bytes", len(data)).Str("mime", mt).Msg("image fetched")
	return Fetched{Image: domain.Image{MIME: mt, Data: data}, Filename: name}, nil
}

// DecodeDataURL parses "data:<mime>;base64,<payload>".
func DecodeDataURL(raw string) (domain.Image, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return domain.Image{}, fmt.Errorf("%w: malformed data url", ErrBadURL)
	}
	mt, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return domain.Image{}, fmt.Errorf("%w: data url must be base64", ErrBadURL)
	}
	if !strings.HasPrefix(mt, "image/") {
		return domain.Image{}, ErrNotImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if len(data) > MaxImageBytes {
		return domain.Image{}, ErrTooLarge
	}
	return domain.Image{MIME: mt, Data: data}, nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
