package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/logger"
	"github.com/mesworks/be-doc-approvals/internal/repository"
	"github.com/mesworks/be-doc-approvals/internal/service"
)

// ApprovalServiceInterface is the slice of the approval service the HTTP
// layer uses.
type ApprovalServiceInterface interface {
	SubmitForApproval(ctx context.Context, docType repository.DocumentType, companyID, actingUserID string, documentIDs []string) ([]service.Outcome, error)
	ChangeStatus(ctx context.Context, docType repository.DocumentType, companyID, actingUserID string, documentIDs []string, target repository.DocumentStatus) ([]service.Outcome, error)
	Approve(ctx context.Context, docType repository.DocumentType, companyID, documentID, actingUserID string, notes *string) error
	Reject(ctx context.Context, docType repository.DocumentType, companyID, documentID, actingUserID, reason string) error
	ListPendingRequests(ctx context.Context, companyID string) ([]*repository.ApprovalRequest, error)
	GetApprovalHistory(ctx context.Context, docType repository.DocumentType, companyID, documentID string) (*service.DocumentHistory, error)
}

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	service ApprovalServiceInterface
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc ApprovalServiceInterface, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{service: svc, log: log}
}

// BatchRequest is the body shared by the submit and status endpoints. The
// acting user comes from the request body until the gateway forwards
// authenticated identity.
type BatchRequest struct {
	DocumentType string   `json:"document_type"`
	CompanyID    string   `json:"company_id"`
	ActingUserID string   `json:"acting_user_id"`
	DocumentIDs  []string `json:"document_ids"`
	Target       string   `json:"target,omitempty"`
}

// DecisionRequest is the body for the approve and reject endpoints.
type DecisionRequest struct {
	DocumentType string  `json:"document_type"`
	CompanyID    string  `json:"company_id"`
	ActingUserID string  `json:"acting_user_id"`
	DocumentID   string  `json:"document_id"`
	Notes        *string `json:"notes,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

type outcomesResponse struct {
	Outcomes []service.Outcome `json:"outcomes"`
}

// SubmitForApproval handles POST /api/v1/approvals/submit.
func (h *HTTPHandler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcomes, err := h.service.SubmitForApproval(r.Context(),
		repository.DocumentType(req.DocumentType), req.CompanyID, req.ActingUserID, req.DocumentIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, outcomesResponse{Outcomes: outcomes})
}

// ChangeStatus handles POST /api/v1/approvals/status.
func (h *HTTPHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcomes, err := h.service.ChangeStatus(r.Context(),
		repository.DocumentType(req.DocumentType), req.CompanyID, req.ActingUserID,
		req.DocumentIDs, repository.DocumentStatus(req.Target))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, outcomesResponse{Outcomes: outcomes})
}

// Approve handles POST /api/v1/approvals/approve.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.Approve(r.Context(),
		repository.DocumentType(req.DocumentType), req.CompanyID, req.DocumentID, req.ActingUserID, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// Reject handles POST /api/v1/approvals/reject.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.Reject(r.Context(),
		repository.DocumentType(req.DocumentType), req.CompanyID, req.DocumentID, req.ActingUserID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// ListPending handles GET /api/v1/approvals/pending.
func (h *HTTPHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}

	requests, err := h.service.ListPendingRequests(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// GetHistory handles GET /api/v1/approvals/history.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docType := r.URL.Query().Get("document_type")
	companyID := r.URL.Query().Get("company_id")
	documentID := r.URL.Query().Get("document_id")
	if docType == "" || companyID == "" || documentID == "" {
		http.Error(w, "document_type, company_id and document_id are required", http.StatusBadRequest)
		return
	}

	history, err := h.service.GetApprovalHistory(r.Context(), repository.DocumentType(docType), companyID, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// ── response helpers ─────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeConflict:
		status = http.StatusConflict
	case apperrors.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case apperrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
