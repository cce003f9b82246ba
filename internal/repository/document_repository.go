package repository

import (
	"context"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/database"
)

// documentTables maps each approvable document type to the table its owning
// module persists it in. Every table exposes the same id/company_id/status/
// amount/updated_by columns the engine touches.
var documentTables = map[DocumentType]string{
	DocTypeQualityDocument: "quality_documents",
	DocTypePurchaseOrder:   "purchase_orders",
}

// DocumentRepository gives the engine its narrow view of approvable
// documents: batched status/amount reads and status writes. All other
// document fields belong to the owning modules.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ValidDocumentType reports whether the engine knows the document type.
func ValidDocumentType(docType DocumentType) bool {
	_, ok := documentTables[docType]
	return ok
}

func tableFor(docType DocumentType) (string, error) {
	table, ok := documentTables[docType]
	if !ok {
		return "", apperrors.InvalidInput("document_type", "unknown document type: "+string(docType))
	}
	return table, nil
}

// GetBatch loads {id, status, amount} for the given ids in a single read.
// Ids that do not exist are simply absent from the result.
func (r *DocumentRepository) GetBatch(ctx context.Context, docType DocumentType, companyID string, ids []string) ([]*DocumentRef, error) {
	table, err := tableFor(docType)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, company_id, status, amount
		FROM ` + table + `
		WHERE company_id = $1 AND id = ANY($2)
	`

	rows, err := r.db.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read documents")
	}
	defer rows.Close()

	var refs []*DocumentRef
	for rows.Next() {
		ref := &DocumentRef{}
		if err := rows.Scan(&ref.ID, &ref.CompanyID, &ref.Status, &ref.Amount); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan document")
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UpdateStatusBatch sets the status of all given documents in one write.
func (r *DocumentRepository) UpdateStatusBatch(ctx context.Context, docType DocumentType, companyID string, ids []string, status DocumentStatus, updatedBy string) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := tableFor(docType)
	if err != nil {
		return err
	}

	query := `
		UPDATE ` + table + `
		SET status = $3, updated_by = $4, updated_at = NOW()
		WHERE company_id = $1 AND id = ANY($2)
	`

	if _, err := r.db.Exec(ctx, query, companyID, ids, status, updatedBy); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update document status")
	}
	return nil
}

// UpdateStatus sets the status of a single document.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, docType DocumentType, companyID, id string, status DocumentStatus, updatedBy string) error {
	return r.UpdateStatusBatch(ctx, docType, companyID, []string{id}, status, updatedBy)
}
