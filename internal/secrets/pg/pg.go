// Package pg implementa el store de versiones de secretos sobre Postgres.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/secrets"
)

type Store struct{ pool *pgxpool.Pool }

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("secrets/pg: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("secrets/pg: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("secrets/pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones, métricas).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) GetActive(ctx context.Context, name string) (*secrets.Version, error) {
	const q = `
		SELECT id, name, value, version, created_at, COALESCE(expires_at, 'epoch'::timestamptz), active, created_by
		FROM secret_versions
		WHERE name = $1 AND active`

	var v secrets.Version
	err := s.pool.QueryRow(ctx, q, name).Scan(
		&v.ID, &v.Name, &v.Value, &v.Number, &v.CreatedAt, &v.ExpiresAt, &v.Active, &v.CreatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, secrets.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if v.ExpiresAt.Unix() == 0 {
		v.ExpiresAt = time.Time{}
	}
	return &v, nil
}

func (s *Store) History(ctx context.Context, name string) ([]secrets.Version, error) {
	const q = `
		SELECT id, name, value, version, created_at, COALESCE(expires_at, 'epoch'::timestamptz), active, created_by
		FROM secret_versions
		WHERE name = $1
		ORDER BY version DESC`

	rows, err := s.pool.Query(ctx, q, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []secrets.Version
	for rows.Next() {
		var v secrets.Version
		if err := rows.Scan(&v.ID, &v.Name, &v.Value, &v.Number, &v.CreatedAt, &v.ExpiresAt, &v.Active, &v.CreatedBy); err != nil {
			return nil, err
		}
		if v.ExpiresAt.Unix() == 0 {
			v.ExpiresAt = time.Time{}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Append degrada la versión activa e inserta la nueva en una transacción:
// el índice parcial único sobre (name) WHERE active garantiza que nunca haya
// dos activas aunque dos instancias roten a la vez (una de las dos falla y
// reintenta en el próximo ciclo).
func (s *Store) Append(ctx context.Context, v *secrets.Version) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE secret_versions SET active = false WHERE name = $1 AND active`, v.Name,
	); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM secret_versions WHERE name = $1`, v.Name,
	).Scan(&next); err != nil {
		return err
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Number = next
	v.Active = true

	var expires any
	if !v.ExpiresAt.IsZero() {
		expires = v.ExpiresAt
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO secret_versions (id, name, value, version, created_at, expires_at, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
		v.ID, v.Name, v.Value, v.Number, v.CreatedAt, expires, v.CreatedBy,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	const q = `
		DELETE FROM secret_versions
		WHERE name = $1
		  AND NOT active
		  AND version NOT IN (
		      SELECT version FROM secret_versions
		      WHERE name = $1
		      ORDER BY version DESC
		      LIMIT $2
		  )`

	tag, err := s.pool.Exec(ctx, q, name, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
