package genai

import (
	"fmt"
	"strings"

	"studio/internal/domain"
)

// GenerationError is a classified failure reported by the remote service.
type GenerationError struct {
	Kind    domain.ErrorKind
	Code    int
	Status  string
	Message string
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case domain.ErrorKindAuth:
		return "the selected API key project was not found, please re-select a valid project"
	case domain.ErrorKindQuotaExhausted:
		return "quota exceeded, please check your billing status and project limits"
	}
	if e.Code != 0 {
		return fmt.Sprintf("generation failed (%d): %s", e.Code, e.Message)
	}
	return "generation failed: " + e.Message
}

// Unwrap maps the kind onto the domain sentinel.
func (e *GenerationError) Unwrap() error {
	switch e.Kind {
	case domain.ErrorKindAuth:
		return domain.ErrEntityNotFound
	case domain.ErrorKindQuotaExhausted:
		return domain.ErrQuotaExhausted
	default:
		return domain.ErrGenerationFailed
	}
}

// ClassifyError sorts a remote failure into quota, auth or generic.
func ClassifyError(code int, status, message string) *GenerationError {
	kind := domain.ErrorKindGeneric
	switch {
	case code == 404 || strings.Contains(message, "Requested entity was not found"):
		kind = domain.ErrorKindAuth
	case code == 429 || status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(message, "RESOURCE_EXHAUSTED") ||
		strings.Contains(message, "exceeded your current quota"):
		kind = domain.ErrorKindQuotaExhausted
	}
	if strings.TrimSpace(message) == "" {
		message = "generation failed"
	}
	return &GenerationError{Kind: kind, Code: code, Status: status, Message: message}
}
