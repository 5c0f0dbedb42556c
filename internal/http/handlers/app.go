package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"studio/internal/composite"
	"studio/internal/domain"
	"studio/internal/gallery"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	imgfetch "studio/internal/providers/image"
)

const maxBodyBytes = 64 << 20

// CredentialStore manages the generation API key.
type CredentialStore interface {
	GeminiAPIKey(ctx context.Context) (string, error)
	SetGeminiAPIKey(ctx context.Context, key string) error
}

// ImageLoader resolves an image reference (URL or data URL).
type ImageLoader interface {
	Load(ctx context.Context, raw string) (imgfetch.Fetched, error)
}

// FileStore opens stored videos for download.
type FileStore interface {
	Open(key string) (*os.File, int64, error)
}

type App struct {
	Generations domain.GenerationRepository
	Results     domain.ResultRepository
	Credentials CredentialStore
	Images      ImageLoader
	Files       FileStore
	Composites  *composite.Registry
	Gallery     *gallery.Catalog
	Logger      infra.Logger

	// DefaultModel applies when a request leaves the model unset.
	DefaultModel domain.Model
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, map[string]apiError{"error": {Code: code, Message: msg}})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

var invalidInput = []error{
	domain.ErrEmptyPrompt,
	domain.ErrCaptionSize,
	domain.ErrImageLimit,
	domain.ErrTooManyReferences,
	domain.ErrReferencesModel,
	domain.ErrInvalidOption,
	domain.ErrMissingImage,
	domain.ErrMissingExtension,
	domain.ErrMergeTooFewClips,
	domain.ErrEmptySequence,
	domain.ErrInvalidReorderMove,
	credentials.ErrEmptyKey,
	gallery.ErrUnknownImage,
}

// fail maps a domain error onto a status code. Unknown errors are logged
// and reported as internal.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *imgfetch.FetchError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "not found")
		return
	case errors.Is(err, domain.ErrJobActive):
		a.error(w, http.StatusConflict, "job_active", "a compositing job is already running on this surface")
		return
	case errors.Is(err, domain.ErrSequenceFrozen):
		a.error(w, http.StatusConflict, "sequence_frozen", "the clip order cannot change once processing has started")
		return
	case errors.Is(err, domain.ErrCancelled):
		a.error(w, http.StatusConflict, "cancelled", "job was cancelled")
		return
	case errors.As(err, &fetchErr):
		a.error(w, http.StatusUnprocessableEntity, "image_fetch_failed", fetchErr.Error())
		return
	case errors.Is(err, domain.ErrEmptyCaption):
		a.error(w, http.StatusUnprocessableEntity, "empty_caption", "please enter some text for the caption")
		return
	case errors.Is(err, imgfetch.ErrNotImage), errors.Is(err, imgfetch.ErrBadURL), errors.Is(err, imgfetch.ErrTooLarge):
		a.error(w, http.StatusUnprocessableEntity, "invalid_image", err.Error())
		return
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			a.error(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	a.error(w, http.StatusInternalServerError, "internal", "internal error")
}

// surface identifies the editing surface a composite job belongs to.
func surface(r *http.Request, fromBody string) string {
	if s := strings.TrimSpace(fromBody); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Surface-ID")); s != "" {
		return s
	}
	return "default"
}
