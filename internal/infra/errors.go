package infra

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
