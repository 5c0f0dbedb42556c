package domain

import "context"

// GenerationRepository persists generation jobs.
type GenerationRepository interface {
	Enqueue(ctx context.Context, mode Mode, model Model, prompt string, requestJSON []byte) (string, error)
	Claim(ctx context.Context) (*GenerationJob, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, kind ErrorKind, message string) error
	Get(ctx context.Context, jobID string) (*GenerationJob, error)
}

// ResultRepository persists downloaded videos.
type ResultRepository interface {
	Save(ctx context.Context, result *GenerationResult) error
	ListByJob(ctx context.Context, jobID string) ([]GenerationResult, error)
	Get(ctx context.Context, resultID string) (*GenerationResult, error)
}
