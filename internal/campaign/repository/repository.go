// Package repository implements data access for the campaign module
// against PostgreSQL using pgx. Source reads go to the warehouse
// schema; opportunity writes go to the application schema.
package repository

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Repository provides campaign data access
type Repository struct {
	pool   *pgxpool.Pool
	schema string
}

// New creates the repository. The warehouse schema name is interpolated
// into queries, so it must be a plain lowercase SQL identifier.
func New(pool *pgxpool.Pool, warehouseSchema string) (*Repository, error) {
	if !identifierPattern.MatchString(warehouseSchema) {
		return nil, fmt.Errorf("invalid warehouse schema name %q", warehouseSchema)
	}
	return &Repository{pool: pool, schema: warehouseSchema}, nil
}
