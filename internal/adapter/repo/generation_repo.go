package repo

import (
	"context"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a job repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Migrate applies the schema.
func Migrate(ctx context.Context, sql infra.SQLExecutor) error {
	if _, err := sql.Exec(ctx, sqlinline.QCreateSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Enqueue inserts a QUEUED job and returns its id.
func (r *GenerationRepositoryPG) Enqueue(ctx context.Context, mode domain.Mode, model domain.Model, prompt string, requestJSON []byte) (string, error) {
	var id string
	if err := r.sql.QueryRow(ctx, sqlinline.QEnqueueGenerationJob, string(mode), string(model), prompt, requestJSON).Scan(&id); err != nil {
		return "", fmt.Errorf("enqueue generation: %w", err)
	}
	return id, nil
}

// Claim moves the oldest QUEUED job to RUNNING. It returns domain.ErrNotFound
// when the queue is empty.
func (r *GenerationRepositoryPG) Claim(ctx context.Context) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var mode, status, model string
	if err := r.sql.QueryRow(ctx, sqlinline.QClaimGenerationJob).Scan(
		&job.ID,
		&mode,
		&status,
		&model,
		&job.Prompt,
		&job.RequestJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Mode = domain.Mode(mode)
	job.Status = domain.JobStatus(status)
	job.Model = domain.Model(model)
	// Ensure request bytes are not aliased.
	job.RequestJSON = append([]byte(nil), job.RequestJSON...)
	return &job, nil
}

func (r *GenerationRepositoryPG) Complete(ctx context.Context, jobID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QCompleteGenerationJob, jobID)
	return err
}

func (r *GenerationRepositoryPG) Fail(ctx context.Context, jobID string, kind domain.ErrorKind, message string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QFailGenerationJob, jobID, string(kind), message)
	return err
}

// Get fetches a job by its identifier.
func (r *GenerationRepositoryPG) Get(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var mode, status, model, kind string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID).Scan(
		&job.ID,
		&mode,
		&status,
		&model,
		&job.Prompt,
		&kind,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Mode = domain.Mode(mode)
	job.Status = domain.JobStatus(status)
	job.Model = domain.Model(model)
	job.ErrorKind = domain.ErrorKind(kind)
	return &job, nil
}

// RequeueStale returns RUNNING jobs older than the given age to the queue.
func (r *GenerationRepositoryPG) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequeueStaleJobs, int(olderThan.Seconds()))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
