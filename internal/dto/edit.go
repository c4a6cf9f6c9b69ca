package dto

import (
	"time"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

// SubmitUpdateItem is one proposed field change in a submission batch.
type SubmitUpdateItem struct {
	SourceTable   string `json:"sourceTable"`
	SourceRow     int64  `json:"sourceRow"`
	SourceColumn  string `json:"sourceColumn"`
	NewValue      string `json:"newValue"`
	AHJID         *int64 `json:"ahjId"`
	SourceComment string `json:"sourceComment"`
}

// SubmitUpdatesRequest carries a batch of field-change proposals.
type SubmitUpdatesRequest struct {
	Edits []SubmitUpdateItem `json:"edits"`
}

// SubmitAdditionRequest proposes a new related record. The record is created
// immediately in unconfirmed state; the returned edit flips its confirmation
// flag once approved and applied.
type SubmitAdditionRequest struct {
	SourceTable   string            `json:"sourceTable"`
	AHJID         int64             `json:"ahjId"`
	ParentTable   string            `json:"parentTable"`
	ParentID      int64             `json:"parentId"`
	Fields        map[string]string `json:"fields"`
	SourceComment string            `json:"sourceComment"`
}

// SubmitDeletionsRequest proposes deactivating existing related records.
type SubmitDeletionsRequest struct {
	SourceTable   string  `json:"sourceTable"`
	AHJID         *int64  `json:"ahjId"`
	Rows          []int64 `json:"rows"`
	SourceComment string  `json:"sourceComment"`
}

// Review decision codes.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// ReviewEditRequest captures a moderator decision. DateEffective is
// optional; approvals never take effect earlier than one day out regardless.
type ReviewEditRequest struct {
	Decision      string     `json:"decision"`
	DateEffective *time.Time `json:"dateEffective"`
}

// EditQuery mirrors the supported ledger listing filters.
type EditQuery struct {
	AHJID        *int64
	ChangedBy    string
	Status       []models.ReviewStatus
	SourceTable  string
	SourceRow    *int64
	SourceColumn string
	Limit        int
	Offset       int
}
