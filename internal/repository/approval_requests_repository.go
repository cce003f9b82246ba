package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/database"
)

const requestColumns = `
	id, document_type, document_id, company_id, rule_id,
	requested_by, amount, status, notes,
	created_at, updated_at, updated_by
`

// ApprovalRequestsRepository manages approval_request rows. Requests are
// never deleted; the engine only appends new ones or flips status.
type ApprovalRequestsRepository struct {
	db *database.DB
}

// NewApprovalRequestsRepository creates a new ApprovalRequestsRepository.
func NewApprovalRequestsRepository(db *database.DB) *ApprovalRequestsRepository {
	return &ApprovalRequestsRepository{db: db}
}

// Create inserts a new request. A partial unique index on
// (document_type, document_id) WHERE status = 'pending' backs the at-most-one
// pending invariant; a violation is surfaced as a conflict error so callers
// can treat it as "pending request already exists".
func (r *ApprovalRequestsRepository) Create(ctx context.Context, req *ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests
		    (document_type, document_id, company_id, rule_id,
		     requested_by, amount, status, notes)
		VALUES ($1, $2, $3, $4,
		        $5, $6, $7::approval_request_status, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		req.DocumentType,
		req.DocumentID,
		req.CompanyID,
		req.RuleID,
		req.RequestedBy,
		req.Amount,
		req.Status,
		req.Notes,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperrors.Conflict("a pending approval request already exists for this document")
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create approval request")
	}
	return nil
}

// GetPendingByDocument returns the pending request for a document, or nil
// when none exists. Scoped by company so one tenant can never observe or act
// on another tenant's requests.
func (r *ApprovalRequestsRepository) GetPendingByDocument(ctx context.Context, docType DocumentType, companyID, documentID string) (*ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE document_type = $1 AND company_id = $2 AND document_id = $3 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`

	req, err := scanRequest(r.db.QueryRow(ctx, query, docType, companyID, documentID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return req, err
}

// GetLatestByDocument returns the most recent request for a document
// regardless of status, or nil when the document was never submitted.
func (r *ApprovalRequestsRepository) GetLatestByDocument(ctx context.Context, docType DocumentType, companyID, documentID string) (*ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE document_type = $1 AND company_id = $2 AND document_id = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	req, err := scanRequest(r.db.QueryRow(ctx, query, docType, companyID, documentID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return req, err
}

// UpdateStatus flips a request's status and stamps the actor.
func (r *ApprovalRequestsRepository) UpdateStatus(ctx context.Context, id string, status RequestStatus, updatedBy string) error {
	query := `
		UPDATE approval_requests
		SET status     = $2::approval_request_status,
		    updated_by = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, updatedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("approval_request", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update approval request status")
	}
	return nil
}

// ListPendingByCompany returns all pending requests for a company ordered
// oldest-first, for review queue rendering.
func (r *ApprovalRequestsRepository) ListPendingByCompany(ctx context.Context, companyID string) ([]*ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE company_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list pending approval requests")
	}
	defer rows.Close()

	var reqs []*ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan approval request")
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListByDocument returns the full request history for a document,
// oldest-first.
func (r *ApprovalRequestsRepository) ListByDocument(ctx context.Context, docType DocumentType, companyID, documentID string) ([]*ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE document_type = $1 AND company_id = $2 AND document_id = $3
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, docType, companyID, documentID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list approval requests")
	}
	defer rows.Close()

	var reqs []*ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan approval request")
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ── scan helper ──────────────────────────────────────────────────────────────

func scanRequest(row rowScanner) (*ApprovalRequest, error) {
	req := &ApprovalRequest{}
	err := row.Scan(
		&req.ID,
		&req.DocumentType,
		&req.DocumentID,
		&req.CompanyID,
		&req.RuleID,
		&req.RequestedBy,
		&req.Amount,
		&req.Status,
		&req.Notes,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
