package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// ResultRepositoryPG implements domain.ResultRepository.
type ResultRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewResultRepository(sql infra.SQLExecutor) *ResultRepositoryPG {
	return &ResultRepositoryPG{sql: sql}
}

// Save inserts result and fills its id and creation time.
func (r *ResultRepositoryPG) Save(ctx context.Context, result *domain.GenerationResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGenerationResult,
		result.JobID,
		result.Index,
		result.StorageKey,
		result.RemoteURI,
		result.MIME,
		result.Bytes,
		result.Prompt,
	)
	if err := row.Scan(&result.ID, &result.CreatedAt); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *ResultRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.GenerationResult, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectResultsByJob, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GenerationResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ResultRepositoryPG) Get(ctx context.Context, resultID string) (*domain.GenerationResult, error) {
	res, err := scanResult(r.sql.QueryRow(ctx, sqlinline.QSelectResult, resultID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func scanResult(row pgx.Row) (domain.GenerationResult, error) {
	var res domain.GenerationResult
	err := row.Scan(
		&res.ID,
		&res.JobID,
		&res.Index,
		&res.StorageKey,
		&res.RemoteURI,
		&res.MIME,
		&res.Bytes,
		&res.Prompt,
		&res.CreatedAt,
	)
	return res, err
}

var _ domain.ResultRepository = (*ResultRepositoryPG)(nil)
