package models

// Tenant identifies the school (and optionally the branch) a request acts on.
// A nil *Tenant means the caller operates on global defaults.
type Tenant struct {
	ID       string `json:"id"`
	Code     string `json:"code,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

// HasBranch reports whether the tenant context targets a specific branch.
func (t *Tenant) HasBranch() bool {
	return t != nil && t.BranchID != ""
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
