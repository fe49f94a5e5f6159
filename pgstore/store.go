package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/rbac"
)

// Postgres unique_violation.
const pgErrUniqueViolation = "23505"

// Store is a PostgreSQL credential store implementing
// [authcore.PrincipalProvider].
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool. The pool's lifecycle stays with the
// caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect creates a pool from dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func scanPrincipal(row pgx.Row) (*authcore.Principal, error) {
	var p authcore.Principal
	var role string
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &role,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	p.Role = rbac.Role(role)
	return &p, nil
}

const selectColumns = "id, email, full_name, password_hash, role, active, created_at, updated_at"

func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Principal, error) {
	query := "SELECT " + selectColumns + " FROM principals WHERE id = $1"
	return scanPrincipal(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Principal, error) {
	query := "SELECT " + selectColumns + " FROM principals WHERE email = $1"
	return scanPrincipal(s.pool.QueryRow(ctx, query, email))
}

func (s *Store) Create(ctx context.Context, p *authcore.Principal) error {
	query := `INSERT INTO principals (id, email, full_name, password_hash, role, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Email, p.FullName, p.PasswordHash, string(p.Role),
		p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return authcore.ErrPrincipalExists
		}
		return fmt.Errorf("insert principal: %w", err)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, p *authcore.Principal) error {
	query := `UPDATE principals
	          SET email = $2, full_name = $3, password_hash = $4, role = $5, active = $6, updated_at = $7
	          WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Email, p.FullName, p.PasswordHash, string(p.Role),
		p.Active, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return authcore.ErrPrincipalExists
		}
		return fmt.Errorf("update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrPrincipalNotFound
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM principals WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrPrincipalNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*authcore.Principal, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + selectColumns + ` FROM principals
	          ORDER BY created_at, email OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	out := []*authcore.Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}

	return out, nil
}
