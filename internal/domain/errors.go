package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrJobActive  = errors.New("job already active on surface")
	ErrCancelled  = errors.New("job cancelled")
	ErrNotStarted = errors.New("job not started")

	// Input validation.
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrEmptyCaption       = errors.New("caption text is required")
	ErrCaptionSize        = errors.New("caption size out of range")
	ErrImageLimit         = errors.New("too many images attached")
	ErrTooManyReferences  = errors.New("too many reference images")
	ErrReferencesModel    = errors.New("reference images require the quality model")
	ErrInvalidOption      = errors.New("invalid generation option")
	ErrMissingImage       = errors.New("image is required")
	ErrMissingExtension   = errors.New("extension source is required")
	ErrMergeTooFewClips   = errors.New("merge requires at least two clips")
	ErrEmptySequence      = errors.New("sequence is empty")
	ErrSequenceFrozen     = errors.New("sequence is frozen")
	ErrInvalidReorderMove = errors.New("invalid reorder direction")

	// Remote generation outcomes.
	ErrQuotaExhausted   = errors.New("generation quota exhausted")
	ErrEntityNotFound   = errors.New("requested entity was not found")
	ErrGenerationFailed = errors.New("generation failed")
	ErrNoVideos         = errors.New("no videos were returned")
	ErrMissingAPIKey    = errors.New("api key not available")
)
