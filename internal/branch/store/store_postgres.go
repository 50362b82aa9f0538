package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"caredesk/internal/branch/models"
	"caredesk/internal/platform/postgres"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/sentinel"
	txcontext "caredesk/pkg/platform/tx"
)

// PostgresStore persists branches in PostgreSQL. Uniqueness comes from the
// LOWER(code) and LOWER(name) indexes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectBranch = `SELECT id, code, name, status, created_at, updated_at FROM branches`

func (s *PostgresStore) CreateIfAvailable(ctx context.Context, b *models.Branch) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO branches (id, code, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(b.ID), b.Code, b.Name, string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("branch %s: %w", b.Code, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	row := s.conn(ctx).QueryRowContext(ctx, selectBranch+` WHERE id = $1`, uuid.UUID(branchID))
	return scanOne(row, branchID.String())
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Branch, error) {
	row := s.conn(ctx).QueryRowContext(ctx, selectBranch+` WHERE LOWER(name) = LOWER($1)`, name)
	return scanOne(row, name)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Branch, error) {
	return s.query(ctx, selectBranch+` ORDER BY name`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Branch, error) {
	return s.query(ctx, selectBranch+` WHERE status = $1 ORDER BY name`, string(models.StatusActive))
}

// Execute locks the row with FOR UPDATE for the validate-then-mutate pair.
func (s *PostgresStore) Execute(ctx context.Context, branchID id.BranchID, validate func(*models.Branch) error, mutate func(*models.Branch)) (*models.Branch, error) {
	var out *models.Branch
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.conn(ctx).QueryRowContext(ctx, selectBranch+` WHERE id = $1 FOR UPDATE`, uuid.UUID(branchID))
		b, err := scanOne(row, branchID.String())
		if err != nil {
			return err
		}
		if err := validate(b); err != nil {
			return err
		}
		mutate(b)
		if _, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE branches SET code = $2, name = $3, status = $4, updated_at = $5 WHERE id = $1`,
			uuid.UUID(b.ID), b.Code, b.Name, string(b.Status), b.UpdatedAt,
		); err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("branch %s: %w", b.Code, sentinel.ErrAlreadyUsed)
			}
			return fmt.Errorf("update branch: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*models.Branch, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()
	var out []*models.Branch
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Branch, error) {
	var (
		b      models.Branch
		rawID  uuid.UUID
		status string
	)
	if err := row.Scan(&rawID, &b.Code, &b.Name, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BranchID(rawID)
	b.Status = models.Status(status)
	return &b, nil
}

func scanOne(row *sql.Row, key string) (*models.Branch, error) {
	b, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("branch %s: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find branch: %w", err)
	}
	return b, nil
}
