package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mesworks/be-doc-approvals/internal/httpclient"
)

// DirectoryClient resolves approver groups against the platform directory
// service. Group membership is always resolved at call time — the engine
// re-queries on every authorization check so membership changes take effect
// immediately.
type DirectoryClient struct {
	client *httpclient.Client
}

// NewDirectoryClient creates a new directory service client.
func NewDirectoryClient(baseURL string) *DirectoryClient {
	return &DirectoryClient{client: httpclient.NewClient(baseURL)}
}

type groupMembersResponse struct {
	GroupID string   `json:"group_id"`
	Members []string `json:"members"`
}

// GetGroupMembers returns the user ids in an approver group. An unknown or
// empty group yields an empty slice, not an error — the caller decides how
// to treat an empty approver set.
func (c *DirectoryClient) GetGroupMembers(ctx context.Context, companyID, groupID string) ([]string, error) {
	path := fmt.Sprintf("/api/v1/groups/members?company_id=%s&group_id=%s",
		url.QueryEscape(companyID), url.QueryEscape(groupID))

	var resp groupMembersResponse
	if err := c.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to resolve approver group: %w", err)
	}
	return resp.Members, nil
}
