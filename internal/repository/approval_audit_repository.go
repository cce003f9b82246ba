package repository

import (
	"context"
	"encoding/json"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/database"
)

// ApprovalAuditRepository appends and reads immutable approval audit log
// entries. Append is the only mutation exposed.
type ApprovalAuditRepository struct {
	db *database.DB
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db *database.DB) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *ApprovalAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (document_type, document_id, request_id, company_id,
		     action, performed_by,
		     status_before, status_after,
		     metadata)
		VALUES ($1, $2, $3, $4,
		        $5, $6,
		        $7, $8,
		        $9)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.DocumentType,
		entry.DocumentID,
		entry.RequestID,
		entry.CompanyID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// GetByDocument returns the full audit trail for a document ordered
// oldest-first.
func (r *ApprovalAuditRepository) GetByDocument(ctx context.Context, docType DocumentType, companyID, documentID string) ([]*ApprovalAuditEntry, error) {
	query := `
		SELECT id, document_type, document_id, request_id, company_id,
		       action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM approval_audit_log
		WHERE document_type = $1 AND company_id = $2 AND document_id = $3
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, docType, companyID, documentID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read audit log")
	}
	defer rows.Close()

	var entries []*ApprovalAuditEntry
	for rows.Next() {
		entry := &ApprovalAuditEntry{}
		var metadataJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.DocumentType,
			&entry.DocumentID,
			&entry.RequestID,
			&entry.CompanyID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan audit entry")
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
