package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// ErrorKind classifies a failed generation for the caller.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindQuotaExhausted ErrorKind = "quota_exhausted"
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindGeneric        ErrorKind = "generic"
)

// Retryable reports whether resubmitting the same request may succeed
// without user action.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindGeneric
}

// GenerationJob is a queued remote generation.
type GenerationJob struct {
	ID           string    `json:"id"`
	Mode         Mode      `json:"mode"`
	Status       JobStatus `json:"status"`
	Model        Model     `json:"model"`
	Prompt       string    `json:"prompt"`
	RequestJSON  []byte    `json:"-"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GenerationResult is one downloaded video belonging to a job.
type GenerationResult struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Index      int       `json:"index"`
	StorageKey string    `json:"storage_key"`
	RemoteURI  string    `json:"remote_uri,omitempty"`
	MIME       string    `json:"mime"`
	Bytes      int64     `json:"bytes"`
	Prompt     string    `json:"prompt"`
	CreatedAt  time.Time `json:"created_at"`
}

// DownloadName is the filename offered for the raw result.
func (r GenerationResult) DownloadName() string {
	return ResultFilename(r.Index)
}

// ExtensionSource returns the explicit reference used to extend this result.
func (r GenerationResult) ExtensionSource() ExtensionSource {
	return ExtensionSource{ResultID: r.ID, RemoteURI: r.RemoteURI}
}
