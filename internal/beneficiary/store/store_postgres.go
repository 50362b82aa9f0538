package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"caredesk/internal/beneficiary/models"
	"caredesk/internal/platform/postgres"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/sentinel"
	txcontext "caredesk/pkg/platform/tx"
	"caredesk/pkg/requestcontext"
)

// PostgresStore persists beneficiaries as a JSONB document plus indexed identity
// columns. Relationship edges live in their own table so the edge uniqueness
// constraint can make reciprocal appends idempotent.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed beneficiary store.
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

const selectBeneficiary = `
	SELECT id, branch_id, branch_name, document, created_at, updated_at
	FROM beneficiaries`

func (s *PostgresStore) Insert(ctx context.Context, b *models.Beneficiary) error {
	doc, err := encodeDocument(b)
	if err != nil {
		return err
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO beneficiaries (id, branch_id, branch_name, internal_number, civil_id, document, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.UUID(b.ID), uuid.UUID(b.BranchID), b.BranchName, b.InternalNumber, b.CivilID, doc, b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("insert beneficiary %s: %w", b.InternalNumber, sentinel.ErrAlreadyUsed)
			}
			return fmt.Errorf("insert beneficiary: %w", err)
		}
		return s.insertEdges(ctx, b.ID, b.Relationships)
	})
}

// Update rewrites the document and the operator-declared edges. Reciprocal edges
// already stored are never removed by an update.
func (s *PostgresStore) Update(ctx context.Context, b *models.Beneficiary) error {
	doc, err := encodeDocument(b)
	if err != nil {
		return err
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE beneficiaries
			SET internal_number = $2, civil_id = $3, document = $4, updated_at = $5
			WHERE id = $1`,
			uuid.UUID(b.ID), b.InternalNumber, b.CivilID, doc, b.UpdatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("update beneficiary %s: %w", b.InternalNumber, sentinel.ErrAlreadyUsed)
			}
			return fmt.Errorf("update beneficiary: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return sentinel.ErrNotFound
		}
		if _, err := s.conn(ctx).ExecContext(ctx,
			`DELETE FROM beneficiary_relationships WHERE beneficiary_id = $1 AND NOT reciprocal`,
			uuid.UUID(b.ID)); err != nil {
			return fmt.Errorf("clear declared relationships: %w", err)
		}
		var declared []models.RelationshipEdge
		for _, e := range b.Relationships {
			if !e.Reciprocal {
				declared = append(declared, e)
			}
		}
		return s.insertEdges(ctx, b.ID, declared)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	records, err := s.query(ctx, selectBeneficiary+` WHERE id = $1`, uuid.UUID(beneficiaryID))
	if err != nil {
		return nil, fmt.Errorf("find beneficiary by id: %w", err)
	}
	if len(records) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return records[0], nil
}

// FindByInternalNumber checks every requested branch with one query. A nil
// branchIDs searches all branches.
func (s *PostgresStore) FindByInternalNumber(ctx context.Context, number string, branchIDs []id.BranchID) ([]*models.Beneficiary, error) {
	q := selectBeneficiary + ` WHERE internal_number = $1`
	args := []any{number}
	if branchIDs != nil {
		q += ` AND branch_id = ANY($2::uuid[])`
		args = append(args, pq.Array(branchStrings(branchIDs)))
	}
	records, err := s.query(ctx, q+` ORDER BY branch_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("find beneficiaries by internal number: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) FindByCivilIDs(ctx context.Context, branchID id.BranchID, civilIDs []string) ([]*models.Beneficiary, error) {
	if len(civilIDs) == 0 {
		return nil, nil
	}
	records, err := s.query(ctx,
		selectBeneficiary+` WHERE branch_id = $1 AND civil_id = ANY($2) ORDER BY created_at, id`,
		uuid.UUID(branchID), pq.Array(civilIDs))
	if err != nil {
		return nil, fmt.Errorf("find beneficiaries by civil ids: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) ListByBranches(ctx context.Context, branchIDs []id.BranchID) ([]*models.Beneficiary, error) {
	q := selectBeneficiary
	var args []any
	if branchIDs != nil {
		q += ` WHERE branch_id = ANY($1::uuid[])`
		args = append(args, pq.Array(branchStrings(branchIDs)))
	}
	records, err := s.query(ctx, q+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	return records, nil
}

// AppendRelationship inserts edge and reports whether a row was written. A
// repeated (relation, linked record) pair is absorbed by the edge constraint.
func (s *PostgresStore) AppendRelationship(ctx context.Context, beneficiaryID id.BeneficiaryID, edge models.RelationshipEdge) (bool, error) {
	var appended bool
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		n, err := s.insertEdge(ctx, beneficiaryID, edge)
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("append relationship: %w", err)
		}
		appended = n > 0
		if !appended {
			return nil
		}
		_, err = s.conn(ctx).ExecContext(ctx,
			`UPDATE beneficiaries SET updated_at = $2 WHERE id = $1`,
			uuid.UUID(beneficiaryID), requestcontext.Now(ctx))
		if err != nil {
			return fmt.Errorf("touch beneficiary: %w", err)
		}
		return nil
	})
	return appended, err
}

func (s *PostgresStore) insertEdges(ctx context.Context, beneficiaryID id.BeneficiaryID, edges []models.RelationshipEdge) error {
	for _, e := range edges {
		if _, err := s.insertEdge(ctx, beneficiaryID, e); err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) insertEdge(ctx context.Context, beneficiaryID id.BeneficiaryID, e models.RelationshipEdge) (int64, error) {
	var linked *uuid.UUID
	if e.IsLinked() {
		u := uuid.UUID(*e.LinkedBeneficiaryID)
		linked = &u
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO beneficiary_relationships
			(beneficiary_id, relation_type, inverse_relation_type, relative_name, relative_civil_id, linked_beneficiary_id, reciprocal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (beneficiary_id, relation_type, linked_beneficiary_id) DO NOTHING`,
		uuid.UUID(beneficiaryID), string(e.RelationType), string(e.InverseRelationType),
		e.RelativeName, e.RelativeCivilID, linked, e.Reciprocal,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*models.Beneficiary, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Beneficiary
	for rows.Next() {
		var (
			beneficiaryID, branchID uuid.UUID
			branchName              string
			doc                     []byte
			createdAt, updatedAt    time.Time
		)
		if err := rows.Scan(&beneficiaryID, &branchID, &branchName, &doc, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		var d models.Document
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("decode beneficiary document: %w", err)
		}
		b := models.FromDocument(d)
		b.ID = id.BeneficiaryID(beneficiaryID)
		b.BranchID = id.BranchID(branchID)
		b.BranchName = branchName
		b.CreatedAt = createdAt
		b.UpdatedAt = updatedAt
		b.Relationships = nil
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadEdges(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadEdges attaches relationship rows to records with one query.
func (s *PostgresStore) loadEdges(ctx context.Context, records []*models.Beneficiary) error {
	if len(records) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Beneficiary, len(records))
	ids := make([]string, 0, len(records))
	for _, b := range records {
		byID[uuid.UUID(b.ID)] = b
		ids = append(ids, b.ID.String())
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT beneficiary_id, relation_type, inverse_relation_type, relative_name, relative_civil_id, linked_beneficiary_id, reciprocal
		FROM beneficiary_relationships
		WHERE beneficiary_id = ANY($1::uuid[])
		ORDER BY seq`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load relationships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			owner   uuid.UUID
			linked  uuid.NullUUID
			e       models.RelationshipEdge
			rel     string
			inverse string
		)
		if err := rows.Scan(&owner, &rel, &inverse, &e.RelativeName, &e.RelativeCivilID, &linked, &e.Reciprocal); err != nil {
			return fmt.Errorf("scan relationship: %w", err)
		}
		e.RelationType = models.RelationType(rel)
		e.InverseRelationType = models.RelationType(inverse)
		if linked.Valid {
			linkedID := id.BeneficiaryID(linked.UUID)
			e.LinkedBeneficiaryID = &linkedID
		}
		if b, ok := byID[owner]; ok {
			b.Relationships = append(b.Relationships, e)
		}
	}
	return rows.Err()
}

func encodeDocument(b *models.Beneficiary) ([]byte, error) {
	doc := b.ToDocument()
	doc.Relationships = nil
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode beneficiary document: %w", err)
	}
	return raw, nil
}

func branchStrings(ids []id.BranchID) []string {
	out := make([]string, len(ids))
	for i, b := range ids {
		out[i] = b.String()
	}
	return out
}
