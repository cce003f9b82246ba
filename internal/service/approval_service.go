package service

import (
	"context"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/logger"
	"github.com/mesworks/be-doc-approvals/internal/repository"
)

// Collaborator interfaces are declared here so the engine can be exercised
// against in-memory implementations; the repository and client packages
// provide the real ones.

// DocumentStore is the engine's narrow view of approvable documents.
type DocumentStore interface {
	GetBatch(ctx context.Context, docType repository.DocumentType, companyID string, ids []string) ([]*repository.DocumentRef, error)
	UpdateStatusBatch(ctx context.Context, docType repository.DocumentType, companyID string, ids []string, status repository.DocumentStatus, updatedBy string) error
	UpdateStatus(ctx context.Context, docType repository.DocumentType, companyID, id string, status repository.DocumentStatus, updatedBy string) error
}

// RuleStore resolves the applicable approval rule, nil when none matches.
type RuleStore interface {
	FindMatchingRule(ctx context.Context, companyID string, docType repository.DocumentType, amount *int64) (*repository.ApprovalRule, error)
}

// RequestStore persists approval request rows. All document lookups are
// company-scoped so one tenant can never act on another tenant's requests.
type RequestStore interface {
	Create(ctx context.Context, req *repository.ApprovalRequest) error
	GetPendingByDocument(ctx context.Context, docType repository.DocumentType, companyID, documentID string) (*repository.ApprovalRequest, error)
	GetLatestByDocument(ctx context.Context, docType repository.DocumentType, companyID, documentID string) (*repository.ApprovalRequest, error)
	UpdateStatus(ctx context.Context, id string, status repository.RequestStatus, updatedBy string) error
	ListPendingByCompany(ctx context.Context, companyID string) ([]*repository.ApprovalRequest, error)
	ListByDocument(ctx context.Context, docType repository.DocumentType, companyID, documentID string) ([]*repository.ApprovalRequest, error)
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.ApprovalAuditEntry) error
	GetByDocument(ctx context.Context, docType repository.DocumentType, companyID, documentID string) ([]*repository.ApprovalAuditEntry, error)
}

// DirectoryClientInterface expands approver group refs into user ids.
type DirectoryClientInterface interface {
	GetGroupMembers(ctx context.Context, companyID, groupID string) ([]string, error)
}

// Notifier dispatches fire-and-forget notification events. Implementations
// must never return; failures are their own concern.
type Notifier interface {
	PublishApprovalEvent(eventType, documentType, documentID, companyID, actorID string, recipients []string, payload map[string]interface{})
}

// Notification event types.
const (
	EventApprovalRequired  = "approval_required"
	EventApprovalCancelled = "approval_cancelled"
	EventDocumentApproved  = "document_approved"
	EventDocumentRejected  = "document_rejected"
)

// OutcomeStatus classifies the result of an engine operation for one document.
type OutcomeStatus string

const (
	OutcomeActivated       OutcomeStatus = "activated"
	OutcomePendingApproval OutcomeStatus = "pending_approval"
	OutcomeUpdated         OutcomeStatus = "updated"
	OutcomeUnauthorized    OutcomeStatus = "unauthorized"
	OutcomeSkipped         OutcomeStatus = "skipped"
	OutcomeError           OutcomeStatus = "error"
)

// Outcome is the per-document result of a batch operation. Batches never
// succeed or fail as a whole; each id gets its own outcome.
type Outcome struct {
	DocumentID string        `json:"document_id"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
}

// ApprovalService is the document approval transition engine. It decides,
// per document, whether a status transition is gated on human approval,
// creates and withdraws the gating requests, and applies the resulting
// status updates in batched writes.
type ApprovalService struct {
	documents DocumentStore
	rules     RuleStore
	requests  RequestStore
	audit     AuditStore
	directory DirectoryClientInterface
	notifier  Notifier
	log       *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	documents DocumentStore,
	rules RuleStore,
	requests RequestStore,
	audit AuditStore,
	directory DirectoryClientInterface,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		documents: documents,
		rules:     rules,
		requests:  requests,
		audit:     audit,
		directory: directory,
		notifier:  notifier,
		log:       log,
	}
}

// ── Submit to Active ──────────────────────────────────────────────────────────

// SubmitForApproval attempts to move a batch of documents to Active. Per
// document: no matching rule means direct activation (collected into a single
// batched write at the end); a matching rule means a Pending request gates
// the transition. A document that already has a pending request is skipped —
// the existing request stays the system of record, which makes repeated
// submission idempotent. Archived documents with a rule re-enter the review
// queue as Draft.
//
// The returned error only reports input validation failures; everything
// after validation is reported per id.
func (s *ApprovalService) SubmitForApproval(
	ctx context.Context,
	docType repository.DocumentType,
	companyID, actingUserID string,
	documentIDs []string,
) ([]Outcome, error) {
	if !repository.ValidDocumentType(docType) {
		return nil, apperrors.InvalidInput("document_type", "unknown document type: "+string(docType))
	}
	if len(documentIDs) == 0 {
		return nil, apperrors.InvalidInput("document_ids", "at least one document id is required")
	}

	outcomes := make([]Outcome, 0, len(documentIDs))

	refs, err := s.documents.GetBatch(ctx, docType, companyID, documentIDs)
	if err != nil {
		// The batched read failed; every id in the batch gets the error.
		for _, id := range documentIDs {
			outcomes = append(outcomes, errorOutcome(id, err))
		}
		return outcomes, nil
	}

	byID := make(map[string]*repository.DocumentRef, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	var toActivate []string
	activateIdx := make(map[string]int)

	for _, id := range documentIDs {
		ref, ok := byID[id]
		if !ok {
			outcomes = append(outcomes, Outcome{DocumentID: id, Status: OutcomeError, Reason: "document not found"})
			continue
		}

		// Only Draft and Archived documents are eligible; anything else is
		// a no-op so re-invocation stays idempotent.
		if ref.Status != repository.DocStatusDraft && ref.Status != repository.DocStatusArchived {
			outcomes = append(outcomes, Outcome{
				DocumentID: id,
				Status:     OutcomeSkipped,
				Reason:     "document is not in a submittable status: " + string(ref.Status),
			})
			continue
		}

		rule, err := s.rules.FindMatchingRule(ctx, companyID, docType, ref.Amount)
		if err != nil {
			outcomes = append(outcomes, errorOutcome(id, err))
			continue
		}

		if rule == nil {
			// No approval required; activate in the batched write below.
			activateIdx[id] = len(outcomes)
			toActivate = append(toActivate, id)
			outcomes = append(outcomes, Outcome{DocumentID: id, Status: OutcomeActivated})
			continue
		}

		outcome := s.gateDocument(ctx, docType, companyID, actingUserID, ref, rule)
		outcomes = append(outcomes, outcome)
	}

	if len(toActivate) > 0 {
		if err := s.documents.UpdateStatusBatch(ctx, docType, companyID, toActivate, repository.DocStatusActive, actingUserID); err != nil {
			for _, id := range toActivate {
				outcomes[activateIdx[id]] = errorOutcome(id, err)
			}
		} else {
			for _, id := range toActivate {
				before := string(byID[id].Status)
				after := string(repository.DocStatusActive)
				s.appendAudit(ctx, &repository.ApprovalAuditEntry{
					DocumentType: docType,
					DocumentID:   id,
					CompanyID:    companyID,
					Action:       "activated",
					PerformedBy:  actingUserID,
					StatusBefore: &before,
					StatusAfter:  &after,
				})
			}
		}
	}

	return outcomes, nil
}

// gateDocument creates the Pending request for one rule-gated document and
// handles the archived-resubmission status move.
func (s *ApprovalService) gateDocument(
	ctx context.Context,
	docType repository.DocumentType,
	companyID, actingUserID string,
	ref *repository.DocumentRef,
	rule *repository.ApprovalRule,
) Outcome {
	pending, err := s.requests.GetPendingByDocument(ctx, docType, companyID, ref.ID)
	if err != nil {
		return errorOutcome(ref.ID, err)
	}
	if pending != nil {
		return Outcome{
			DocumentID: ref.ID,
			Status:     OutcomePendingApproval,
			Reason:     "approval request already pending",
		}
	}

	ruleID := rule.ID
	req := &repository.ApprovalRequest{
		DocumentType: docType,
		DocumentID:   ref.ID,
		CompanyID:    companyID,
		RuleID:       &ruleID,
		RequestedBy:  actingUserID,
		Amount:       ref.Amount,
		Status:       repository.RequestStatusPending,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		// A concurrent submitter may win the insert; the unique index over
		// pending requests surfaces that as a conflict, and their request
		// becomes the system of record.
		if apperrors.Is(err, apperrors.ErrCodeConflict) {
			return Outcome{
				DocumentID: ref.ID,
				Status:     OutcomePendingApproval,
				Reason:     "approval request already pending",
			}
		}
		return errorOutcome(ref.ID, err)
	}

	s.notifyApprovers(ctx, rule, req, actingUserID)

	statusBefore := string(ref.Status)
	statusAfter := string(repository.DocStatusDraft)

	// Resubmission of an archived document re-enters the review queue as
	// Draft, distinguishing it from a fresh Draft that was never submitted.
	if ref.Status == repository.DocStatusArchived {
		if err := s.documents.UpdateStatus(ctx, docType, companyID, ref.ID, repository.DocStatusDraft, actingUserID); err != nil {
			s.log.Warn().Err(err).
				Str("document_id", ref.ID).
				Msg("request created but archived document could not be moved to draft")
			return errorOutcome(ref.ID, err)
		}
	}

	s.appendAudit(ctx, &repository.ApprovalAuditEntry{
		DocumentType: docType,
		DocumentID:   ref.ID,
		RequestID:    &req.ID,
		CompanyID:    companyID,
		Action:       "submitted",
		PerformedBy:  actingUserID,
		StatusBefore: &statusBefore,
		StatusAfter:  &statusAfter,
		Metadata:     map[string]interface{}{"rule_id": rule.ID},
	})

	return Outcome{DocumentID: ref.ID, Status: OutcomePendingApproval}
}

// ── Archive or withdraw ───────────────────────────────────────────────────────

// ChangeStatus moves a batch of documents to Archived or Draft, cancelling a
// pending approval request along the way. Archiving revokes an in-flight
// approval unilaterally; an explicit withdrawal back to Draft is restricted
// to the original requester or a current approver, and a denied document is
// left untouched without affecting the rest of the batch. Ids the company
// does not own report "document not found", same as SubmitForApproval.
func (s *ApprovalService) ChangeStatus(
	ctx context.Context,
	docType repository.DocumentType,
	companyID, actingUserID string,
	documentIDs []string,
	target repository.DocumentStatus,
) ([]Outcome, error) {
	if !repository.ValidDocumentType(docType) {
		return nil, apperrors.InvalidInput("document_type", "unknown document type: "+string(docType))
	}
	if target != repository.DocStatusArchived && target != repository.DocStatusDraft {
		return nil, apperrors.InvalidInput("target", "target status must be archived or draft")
	}
	if len(documentIDs) == 0 {
		return nil, apperrors.InvalidInput("document_ids", "at least one document id is required")
	}

	outcomes := make([]Outcome, 0, len(documentIDs))

	refs, err := s.documents.GetBatch(ctx, docType, companyID, documentIDs)
	if err != nil {
		for _, id := range documentIDs {
			outcomes = append(outcomes, errorOutcome(id, err))
		}
		return outcomes, nil
	}

	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref.ID] = true
	}

	var toUpdate []string
	updateIdx := make(map[string]int)

	for _, id := range documentIDs {
		// An id the company does not own reads the same as one that does
		// not exist.
		if !known[id] {
			outcomes = append(outcomes, Outcome{DocumentID: id, Status: OutcomeError, Reason: "document not found"})
			continue
		}

		latest, err := s.requests.GetLatestByDocument(ctx, docType, companyID, id)
		if err != nil {
			outcomes = append(outcomes, errorOutcome(id, err))
			continue
		}

		if latest != nil && latest.Status == repository.RequestStatusPending {
			if target == repository.DocStatusDraft {
				authorized, err := s.mayWithdraw(ctx, latest, actingUserID)
				if err != nil {
					outcomes = append(outcomes, errorOutcome(id, err))
					continue
				}
				if !authorized {
					outcomes = append(outcomes, Outcome{
						DocumentID: id,
						Status:     OutcomeUnauthorized,
						Reason:     "only the requester or a current approver may withdraw a pending request",
					})
					continue
				}
			}

			if err := s.requests.UpdateStatus(ctx, latest.ID, repository.RequestStatusCancelled, actingUserID); err != nil {
				outcomes = append(outcomes, errorOutcome(id, err))
				continue
			}

			s.notifier.PublishApprovalEvent(EventApprovalCancelled, string(docType), id, companyID, actingUserID,
				[]string{latest.RequestedBy},
				map[string]interface{}{"target_status": string(target)})

			s.appendAudit(ctx, &repository.ApprovalAuditEntry{
				DocumentType: docType,
				DocumentID:   id,
				RequestID:    &latest.ID,
				CompanyID:    companyID,
				Action:       "cancelled",
				PerformedBy:  actingUserID,
				Metadata:     map[string]interface{}{"target_status": string(target)},
			})
		}

		updateIdx[id] = len(outcomes)
		toUpdate = append(toUpdate, id)
		outcomes = append(outcomes, Outcome{DocumentID: id, Status: OutcomeUpdated})
	}

	if len(toUpdate) > 0 {
		if err := s.documents.UpdateStatusBatch(ctx, docType, companyID, toUpdate, target, actingUserID); err != nil {
			for _, id := range toUpdate {
				outcomes[updateIdx[id]] = errorOutcome(id, err)
			}
		}
	}

	return outcomes, nil
}

// mayWithdraw reports whether userID may withdraw the pending request:
// the original requester always may; otherwise the user must be a current
// approver.
func (s *ApprovalService) mayWithdraw(ctx context.Context, req *repository.ApprovalRequest, userID string) (bool, error) {
	if req.RequestedBy == userID {
		return true, nil
	}
	return s.CanActAsApprover(ctx, req, userID)
}

// ── Authorization ─────────────────────────────────────────────────────────────

// CanActAsApprover reports whether userID belongs to the approver set for a
// request. The rule and its group membership are re-resolved at check time,
// not taken from the set captured at request creation, so membership changes
// take effect immediately.
func (s *ApprovalService) CanActAsApprover(ctx context.Context, req *repository.ApprovalRequest, userID string) (bool, error) {
	rule, err := s.rules.FindMatchingRule(ctx, req.CompanyID, req.DocumentType, req.Amount)
	if err != nil {
		return false, err
	}
	if rule == nil {
		// The rule set changed since submission; no one qualifies as approver.
		return false, nil
	}

	members, err := s.directory.GetGroupMembers(ctx, req.CompanyID, rule.ApproverGroupID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to resolve approver group")
	}

	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

// ── Decision flow ─────────────────────────────────────────────────────────────

// Approve records an approval decision on the document's pending request and
// activates the document.
func (s *ApprovalService) Approve(ctx context.Context, docType repository.DocumentType, companyID, documentID, actingUserID string, notes *string) error {
	req, err := s.requests.GetPendingByDocument(ctx, docType, companyID, documentID)
	if err != nil {
		return err
	}
	if req == nil {
		return apperrors.NotFound("pending approval request", documentID)
	}

	authorized, err := s.CanActAsApprover(ctx, req, actingUserID)
	if err != nil {
		return err
	}
	if !authorized {
		return apperrors.Unauthorized("user is not authorized to approve this request")
	}

	if err := s.requests.UpdateStatus(ctx, req.ID, repository.RequestStatusApproved, actingUserID); err != nil {
		return err
	}
	if err := s.documents.UpdateStatus(ctx, docType, companyID, documentID, repository.DocStatusActive, actingUserID); err != nil {
		return err
	}

	s.notifier.PublishApprovalEvent(EventDocumentApproved, string(docType), documentID, companyID, actingUserID,
		[]string{req.RequestedBy}, decisionPayload(notes))

	statusBefore := string(repository.DocStatusDraft)
	statusAfter := string(repository.DocStatusActive)
	s.appendAudit(ctx, &repository.ApprovalAuditEntry{
		DocumentType: docType,
		DocumentID:   documentID,
		RequestID:    &req.ID,
		CompanyID:    companyID,
		Action:       "approved",
		PerformedBy:  actingUserID,
		StatusBefore: &statusBefore,
		StatusAfter:  &statusAfter,
		Metadata:     decisionPayload(notes),
	})

	return nil
}

// Reject records a rejection on the document's pending request. The document
// stays in Draft for rework and resubmission.
func (s *ApprovalService) Reject(ctx context.Context, docType repository.DocumentType, companyID, documentID, actingUserID, reason string) error {
	if reason == "" {
		return apperrors.InvalidInput("reason", "rejection reason is required")
	}

	req, err := s.requests.GetPendingByDocument(ctx, docType, companyID, documentID)
	if err != nil {
		return err
	}
	if req == nil {
		return apperrors.NotFound("pending approval request", documentID)
	}

	authorized, err := s.CanActAsApprover(ctx, req, actingUserID)
	if err != nil {
		return err
	}
	if !authorized {
		return apperrors.Unauthorized("user is not authorized to reject this request")
	}

	if err := s.requests.UpdateStatus(ctx, req.ID, repository.RequestStatusRejected, actingUserID); err != nil {
		return err
	}

	s.notifier.PublishApprovalEvent(EventDocumentRejected, string(docType), documentID, companyID, actingUserID,
		[]string{req.RequestedBy}, map[string]interface{}{"reason": reason})

	s.appendAudit(ctx, &repository.ApprovalAuditEntry{
		DocumentType: docType,
		DocumentID:   documentID,
		RequestID:    &req.ID,
		CompanyID:    companyID,
		Action:       "rejected",
		PerformedBy:  actingUserID,
		Metadata:     map[string]interface{}{"reason": reason},
	})

	return nil
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// ListPendingRequests returns all pending requests for a company.
func (s *ApprovalService) ListPendingRequests(ctx context.Context, companyID string) ([]*repository.ApprovalRequest, error) {
	return s.requests.ListPendingByCompany(ctx, companyID)
}

// DocumentHistory is the approval record of one document: every request ever
// raised for it plus the audit trail, both oldest-first.
type DocumentHistory struct {
	Requests []*repository.ApprovalRequest    `json:"requests"`
	Audit    []*repository.ApprovalAuditEntry `json:"audit"`
}

// GetApprovalHistory returns the document's request history and audit trail.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, docType repository.DocumentType, companyID, documentID string) (*DocumentHistory, error) {
	requests, err := s.requests.ListByDocument(ctx, docType, companyID, documentID)
	if err != nil {
		return nil, err
	}
	audit, err := s.audit.GetByDocument(ctx, docType, companyID, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentHistory{Requests: requests, Audit: audit}, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// notifyApprovers resolves the rule's approver group and emits the
// approval_required event. Resolution failures and empty groups leave the
// request in place — the document stays gated until someone intervenes.
func (s *ApprovalService) notifyApprovers(ctx context.Context, rule *repository.ApprovalRule, req *repository.ApprovalRequest, actingUserID string) {
	approvers, err := s.directory.GetGroupMembers(ctx, req.CompanyID, rule.ApproverGroupID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("group_id", rule.ApproverGroupID).
			Str("document_id", req.DocumentID).
			Msg("could not resolve approver group; request created unnotified")
		return
	}
	if len(approvers) == 0 {
		s.log.Warn().
			Str("group_id", rule.ApproverGroupID).
			Str("document_id", req.DocumentID).
			Msg("approver group is empty; request created unnotified")
		return
	}

	payload := map[string]interface{}{"rule_id": rule.ID, "rule_name": rule.RuleName}
	if req.Amount != nil {
		payload["amount"] = *req.Amount
	}

	s.notifier.PublishApprovalEvent(EventApprovalRequired, string(req.DocumentType), req.DocumentID,
		req.CompanyID, actingUserID, approvers, payload)
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *ApprovalService) appendAudit(ctx context.Context, entry *repository.ApprovalAuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("document_id", entry.DocumentID).
			Str("action", entry.Action).
			Msg("failed to write audit log entry")
	}
}

func errorOutcome(id string, err error) Outcome {
	return Outcome{DocumentID: id, Status: OutcomeError, Reason: err.Error()}
}

func decisionPayload(notes *string) map[string]interface{} {
	if notes == nil || *notes == "" {
		return nil
	}
	return map[string]interface{}{"notes": *notes}
}
