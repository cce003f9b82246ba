package repository

import (
	"context"

	"github.com/mesworks/be-doc-approvals/internal/apperrors"
	"github.com/mesworks/be-doc-approvals/internal/database"
)

// ApprovalRulesRepository reads approval_rules. Rules are authored by the
// admin module; this service never writes them.
type ApprovalRulesRepository struct {
	db *database.DB
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(db *database.DB) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{db: db}
}

// List returns the rules for a company and document type, optionally filtered
// to active only, ordered by priority.
func (r *ApprovalRulesRepository) List(ctx context.Context, companyID string, docType DocumentType, activeOnly bool) ([]*ApprovalRule, error) {
	query := `
		SELECT id, company_id, document_type, rule_name, is_active,
		       min_amount, max_amount, approver_group_id, priority,
		       created_at, updated_at
		FROM approval_rules
		WHERE company_id = $1 AND document_type = $2
	`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY priority ASC, rule_name ASC"

	rows, err := r.db.Query(ctx, query, companyID, docType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []*ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan approval rule")
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// FindMatchingRule evaluates active rules for the company/type in priority
// order and returns the first rule whose amount range contains amount.
// Returns nil (no error) when no rule matches — the caller reads that as
// "no approval required". Overlapping ranges are a configuration error; this
// method does not detect them and simply returns the first match.
func (r *ApprovalRulesRepository) FindMatchingRule(
	ctx context.Context,
	companyID string,
	docType DocumentType,
	amount *int64,
) (*ApprovalRule, error) {
	// Load all active rules ordered by priority; evaluate in Go to keep SQL simple.
	rules, err := r.List(ctx, companyID, docType, true)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if ruleMatches(rule, amount) {
			return rule, nil
		}
	}
	return nil, nil
}

// ruleMatches reports whether the rule's amount range contains amount.
// Bounds are half-open: min <= amount < max, nil meaning unbounded. A nil
// amount (non-monetary document) only matches rules with both bounds nil.
func ruleMatches(rule *ApprovalRule, amount *int64) bool {
	if amount == nil {
		return rule.MinAmount == nil && rule.MaxAmount == nil
	}
	if rule.MinAmount != nil && *amount < *rule.MinAmount {
		return false
	}
	if rule.MaxAmount != nil && *amount >= *rule.MaxAmount {
		return false
	}
	return true
}

// ── scan helper ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*ApprovalRule, error) {
	rule := &ApprovalRule{}
	err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.DocumentType,
		&rule.RuleName,
		&rule.IsActive,
		&rule.MinAmount,
		&rule.MaxAmount,
		&rule.ApproverGroupID,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}
