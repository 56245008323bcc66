package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"legalcase/internal/model"
	"legalcase/internal/repository"
)

// CasePostgres is a PostgreSQL implementation of repository.CaseRepository.
// Documents live in case_documents with single-table polymorphism on the
// category column.
type CasePostgres struct {
	db *sql.DB
}

// NewCasePostgres creates a new CasePostgres repository.
func NewCasePostgres(db *sql.DB) *CasePostgres {
	return &CasePostgres{db: db}
}

var _ repository.CaseRepository = (*CasePostgres)(nil)

const caseColumns = `id, title, description, client_id, profile_id, status, created_at, updated_at, created_by, updated_by`

const documentColumns = `id, case_id, title, description, file_path, file_type, file_size, storage_id,
	document_type, status, category, metadata_json,
	questionnaire_type, completion_percentage,
	profile_type, identity_verified, verification_method,
	document_reference, issuing_authority, issue_date, expiry_date, verification_required, verified,
	created_at, updated_at`

// Create inserts the case row and its initial documents.
func (r *CasePostgres) Create(ctx context.Context, c *model.Case) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO legal_cases (id, title, description, client_id, profile_id, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, q,
		c.ID, c.Title, c.Description, c.ClientID, c.ProfileID, string(c.Status), c.CreatedBy, c.UpdatedBy,
	); err != nil {
		return err
	}
	for _, d := range c.Documents {
		if err := upsertDocument(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Save updates the case row and reconciles the document collection: upsert by
// id, then delete rows the aggregate no longer owns.
func (r *CasePostgres) Save(ctx context.Context, c *model.Case) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		UPDATE legal_cases
		SET title = $2, description = $3, client_id = $4, profile_id = $5, status = $6,
		    updated_by = $7, updated_at = now()
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, q,
		c.ID, c.Title, c.Description, c.ClientID, c.ProfileID, string(c.Status), c.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	for _, d := range c.Documents {
		if err := upsertDocument(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}
	if err := deleteOrphanedDocuments(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertDocument(ctx context.Context, tx *sql.Tx, caseID string, d *model.Document) error {
	const q = `
		INSERT INTO case_documents (
			id, case_id, title, description, file_path, file_type, file_size, storage_id,
			document_type, status, category, metadata_json,
			questionnaire_type, completion_percentage,
			profile_type, identity_verified, verification_method,
			document_reference, issuing_authority, issue_date, expiry_date, verification_required, verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			file_path = EXCLUDED.file_path,
			file_type = EXCLUDED.file_type,
			file_size = EXCLUDED.file_size,
			storage_id = EXCLUDED.storage_id,
			document_type = EXCLUDED.document_type,
			status = EXCLUDED.status,
			category = EXCLUDED.category,
			metadata_json = EXCLUDED.metadata_json,
			questionnaire_type = EXCLUDED.questionnaire_type,
			completion_percentage = EXCLUDED.completion_percentage,
			profile_type = EXCLUDED.profile_type,
			identity_verified = EXCLUDED.identity_verified,
			verification_method = EXCLUDED.verification_method,
			document_reference = EXCLUDED.document_reference,
			issuing_authority = EXCLUDED.issuing_authority,
			issue_date = EXCLUDED.issue_date,
			expiry_date = EXCLUDED.expiry_date,
			verification_required = EXCLUDED.verification_required,
			verified = EXCLUDED.verified,
			updated_at = now()
	`
	_, err := tx.ExecContext(ctx, q,
		d.ID, caseID, d.Title, d.Description, d.FilePath, d.FileType, d.FileSize, d.StorageID,
		d.Type, string(d.Status), string(d.Category), d.MetadataJSON,
		d.QuestionnaireType, d.CompletionPercentage,
		d.ProfileType, d.IdentityVerified, d.VerificationMethod,
		d.DocumentReference, d.IssuingAuthority, d.IssueDate, d.ExpiryDate, d.VerificationRequired, d.Verified,
	)
	return err
}

func deleteOrphanedDocuments(ctx context.Context, tx *sql.Tx, c *model.Case) error {
	if len(c.Documents) == 0 {
		_, err := tx.ExecContext(ctx, `DELETE FROM case_documents WHERE case_id = $1`, c.ID)
		return err
	}
	placeholders := make([]string, 0, len(c.Documents))
	args := make([]any, 0, len(c.Documents)+1)
	args = append(args, c.ID)
	for i, d := range c.Documents {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, d.ID)
	}
	q := fmt.Sprintf(`DELETE FROM case_documents WHERE case_id = $1 AND id NOT IN (%s)`,
		strings.Join(placeholders, ", "))
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// FindByID fetches a case with its full document collection.
func (r *CasePostgres) FindByID(ctx context.Context, id string) (*model.Case, error) {
	const q = `SELECT ` + caseColumns + ` FROM legal_cases WHERE id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	c, err := scanCase(row)
	if err != nil {
		return nil, err
	}

	docsQ := `SELECT ` + documentColumns + ` FROM case_documents WHERE case_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, docsQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		c.Documents = append(c.Documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// ExistsByID reports whether the case row exists.
func (r *CasePostgres) ExistsByID(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM legal_cases WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Delete removes the case row; case_documents cascade via FK.
func (r *CasePostgres) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM legal_cases WHERE id = $1`, id)
	return err
}

// ListByProfileID returns cases owned by the profile, newest first, without
// document collections.
func (r *CasePostgres) ListByProfileID(ctx context.Context, profileID string, pq repository.PageQuery) (*repository.PageResult[model.Case], error) {
	return r.listBy(ctx, "profile_id", profileID, pq)
}

// ListByClientID returns cases for the client, newest first, without document
// collections.
func (r *CasePostgres) ListByClientID(ctx context.Context, clientID string, pq repository.PageQuery) (*repository.PageResult[model.Case], error) {
	return r.listBy(ctx, "client_id", clientID, pq)
}

func (r *CasePostgres) listBy(ctx context.Context, column, value string, pq repository.PageQuery) (*repository.PageResult[model.Case], error) {
	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM legal_cases WHERE %s = $1`, column)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, value).Scan(&total); err != nil {
		return nil, err
	}

	listQ := fmt.Sprintf(`SELECT `+caseColumns+` FROM legal_cases WHERE %s = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, column)
	rows, err := r.db.QueryContext(ctx, listQ, value, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Case]{Items: items, Total: total}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*model.Case, error) {
	var c model.Case
	var status string
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.ClientID, &c.ProfileID, &status,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy,
	); err != nil {
		return nil, err
	}
	c.Status = model.CaseStatus(status)
	return &c, nil
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	var caseID, status, category string
	if err := row.Scan(
		&d.ID, &caseID, &d.Title, &d.Description, &d.FilePath, &d.FileType, &d.FileSize, &d.StorageID,
		&d.Type, &status, &category, &d.MetadataJSON,
		&d.QuestionnaireType, &d.CompletionPercentage,
		&d.ProfileType, &d.IdentityVerified, &d.VerificationMethod,
		&d.DocumentReference, &d.IssuingAuthority, &d.IssueDate, &d.ExpiryDate, &d.VerificationRequired, &d.Verified,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.Category = model.DocumentCategory(category)
	return &d, nil
}
