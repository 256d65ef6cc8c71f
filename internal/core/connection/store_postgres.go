// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/database/schema"
	"github.com/taibuivan/datamira/internal/platform/dberr"
)

// # Repository Implementation

// PostgresSavedConnectionRepository implements [SavedConnectionRepository]
// using pgx against the core.databaseconnection control-plane table.
type PostgresSavedConnectionRepository struct {
	pool *pgxpool.Pool
}

// NewSavedConnectionRepository creates a new Postgres implementation for
// connection profiles.
func NewSavedConnectionRepository(pool *pgxpool.Pool) *PostgresSavedConnectionRepository {
	return &PostgresSavedConnectionRepository{pool: pool}
}

// savedConnectionSelect is the shared SELECT column list in scan order.
func savedConnectionSelect() string {
	return fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s FROM %s`,
		schema.DatabaseConnection.ID, schema.DatabaseConnection.UserID,
		schema.DatabaseConnection.ConnectionName, schema.DatabaseConnection.Kind,
		schema.DatabaseConnection.Host, schema.DatabaseConnection.Port,
		schema.DatabaseConnection.DatabaseName, schema.DatabaseConnection.Username,
		schema.DatabaseConnection.Password, schema.DatabaseConnection.AdditionalProperties,
		schema.DatabaseConnection.CreatedAt, schema.DatabaseConnection.LastUsedAt,
		schema.DatabaseConnection.IsActive,
		schema.DatabaseConnection.Table,
	)
}

// scanSavedConnection hydrates one profile row in column order.
func scanSavedConnection(row pgx.Row) (*SavedConnection, error) {
	saved := &SavedConnection{}
	err := row.Scan(
		&saved.ID,
		&saved.UserID,
		&saved.Name,
		&saved.Kind,
		&saved.Host,
		&saved.Port,
		&saved.DatabaseName,
		&saved.Username,
		&saved.Password,
		&saved.AdditionalProperties,
		&saved.CreatedAt,
		&saved.LastUsedAt,
		&saved.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

/*
Create inserts a new connection profile.

Description: The partial unique index on (userid, connectionname) WHERE
isactive guarantees name uniqueness among active profiles; violations map
to apperr.Conflict.

Parameters:
  - context: context.Context
  - saved: *SavedConnection

Returns:
  - error: apperr.Conflict or execution failures
*/
func (repository *PostgresSavedConnectionRepository) Create(context context.Context, saved *SavedConnection) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		schema.DatabaseConnection.Table,
		schema.DatabaseConnection.ID, schema.DatabaseConnection.UserID,
		schema.DatabaseConnection.ConnectionName, schema.DatabaseConnection.Kind,
		schema.DatabaseConnection.Host, schema.DatabaseConnection.Port,
		schema.DatabaseConnection.DatabaseName, schema.DatabaseConnection.Username,
		schema.DatabaseConnection.Password, schema.DatabaseConnection.AdditionalProperties,
		schema.DatabaseConnection.CreatedAt, schema.DatabaseConnection.IsActive,
	)

	properties := saved.AdditionalProperties
	if properties == nil {
		properties = map[string]string{}
	}

	_, err := repository.pool.Exec(context, query,
		saved.ID,
		saved.UserID,
		saved.Name,
		saved.Kind,
		saved.Host,
		saved.Port,
		saved.DatabaseName,
		saved.Username,
		saved.Password,
		properties,
		saved.CreatedAt,
		saved.IsActive,
	)

	if err != nil {
		return dberr.Wrap(err, "Connection")
	}

	return nil
}

/*
FindByID retrieves a profile regardless of its active flag.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *SavedConnection: Hydrated entity
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresSavedConnectionRepository) FindByID(context context.Context, id string) (*SavedConnection, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1`, savedConnectionSelect(), schema.DatabaseConnection.ID)

	saved, err := scanSavedConnection(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Connection")
		}
		return nil, fmt.Errorf("postgres_connection_repo_find_failed: %w", err)
	}

	return saved, nil
}

/*
ListByUser returns the user's active profiles, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*SavedConnection: Active profiles
  - error: Execution failures
*/
func (repository *PostgresSavedConnectionRepository) ListByUser(context context.Context, userID string) ([]*SavedConnection, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1 AND %s ORDER BY %s DESC`,
		savedConnectionSelect(),
		schema.DatabaseConnection.UserID,
		schema.DatabaseConnection.IsActive,
		schema.DatabaseConnection.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_connection_repo_list_failed: %w", err)
	}
	defer rows.Close()

	profiles := make([]*SavedConnection, 0)
	for rows.Next() {
		saved, err := scanSavedConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_connection_repo_scan_failed: %w", err)
		}
		profiles = append(profiles, saved)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_connection_repo_rows_failed: %w", err)
	}

	return profiles, nil
}

/*
TouchLastUsed stamps the profile's lastUsedAt.

Parameters:
  - context: context.Context
  - id: string
  - at: time.Time

Returns:
  - error: Execution failures
*/
func (repository *PostgresSavedConnectionRepository) TouchLastUsed(context context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.DatabaseConnection.Table, schema.DatabaseConnection.LastUsedAt,
		schema.DatabaseConnection.ID,
	)

	_, err := repository.pool.Exec(context, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres_connection_repo_touch_failed: %w", err)
	}

	return nil
}

/*
Deactivate soft-deletes the profile.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresSavedConnectionRepository) Deactivate(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = FALSE WHERE %s = $1`,
		schema.DatabaseConnection.Table, schema.DatabaseConnection.IsActive,
		schema.DatabaseConnection.ID,
	)

	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_connection_repo_deactivate_failed: %w", err)
	}

	return nil
}

/*
HardDelete permanently removes the profile row.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresSavedConnectionRepository) HardDelete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.DatabaseConnection.Table, schema.DatabaseConnection.ID)

	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_connection_repo_delete_failed: %w", err)
	}

	return nil
}
