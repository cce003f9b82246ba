package repository

import "time"

// ── Domain types for the document approval workflow ──────────────────────────

// DocumentType identifies an approvable document family. Each type maps to
// its own storage table (see DocumentRepository).
type DocumentType string

const (
	DocTypeQualityDocument DocumentType = "quality_document"
	DocTypePurchaseOrder   DocumentType = "purchase_order"
)

// DocumentStatus is the coarse lifecycle state the engine gates on. Owning
// modules may track richer sub-states; the engine only reads and writes these.
type DocumentStatus string

const (
	DocStatusDraft    DocumentStatus = "draft"
	DocStatusActive   DocumentStatus = "active"
	DocStatusArchived DocumentStatus = "archived"
)

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// DocumentRef is the engine's read view of an approvable document. Amount is
// in minor currency units; nil for non-monetary document types.
type DocumentRef struct {
	ID        string
	CompanyID string
	Status    DocumentStatus
	Amount    *int64
}

// ApprovalRule maps a (company, document type, amount range) to an approver
// group. Bounds are half-open [MinAmount, MaxAmount); nil = unbounded. Rules
// are authored elsewhere; this service treats them as read-only.
type ApprovalRule struct {
	ID              string
	CompanyID       string
	DocumentType    DocumentType
	RuleName        string
	IsActive        bool
	MinAmount       *int64 // minor units; nil = no lower bound
	MaxAmount       *int64 // minor units; nil = no upper bound
	ApproverGroupID string
	Priority        int // lower = evaluated first
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApprovalRequest is one gating request for a document transition. At most
// one pending request may exist per (document_type, document_id); a partial
// unique index enforces this at the storage layer.
type ApprovalRequest struct {
	ID           string        `json:"id"`
	DocumentType DocumentType  `json:"document_type"`
	DocumentID   string        `json:"document_id"`
	CompanyID    string        `json:"company_id"`
	RuleID       *string       `json:"rule_id,omitempty"`
	RequestedBy  string        `json:"requested_by"`
	Amount       *int64        `json:"amount,omitempty"` // snapshot of the document amount at request time
	Status       RequestStatus `json:"status"`
	Notes        *string       `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	UpdatedBy    *string       `json:"updated_by,omitempty"`
}

// ApprovalAuditEntry is one immutable record in the audit log.
type ApprovalAuditEntry struct {
	ID           string                 `json:"id"`
	DocumentType DocumentType           `json:"document_type"`
	DocumentID   string                 `json:"document_id"`
	RequestID    *string                `json:"request_id,omitempty"`
	CompanyID    string                 `json:"company_id"`
	Action       string                 `json:"action"` // submitted | activated | cancelled | approved | rejected
	PerformedBy  string                 `json:"performed_by"`
	PerformedAt  time.Time              `json:"performed_at"`
	StatusBefore *string                `json:"status_before,omitempty"`
	StatusAfter  *string                `json:"status_after,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // arbitrary JSON context
}
