package dto

// TransitionRequest carries the reason recorded for close transitions.
type TransitionRequest struct {
	Reason string `json:"reason"`
}

// ReopenRequest carries the reason and the new end date of a reopen.
type ReopenRequest struct {
	Reason  string `json:"reason"`
	EndDate string `json:"end_date"`
}

// BulkDeleteResult reports how many of the requested rows were deleted.
type BulkDeleteResult struct {
	Requested int   `json:"requested"`
	Deleted   int64 `json:"deleted"`
}
