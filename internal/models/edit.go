package models

import "time"

// EditType enumerates the kinds of ledger entries. Additions and deletions
// toggle the confirmation status flag of a related record; updates change a
// scalar field in place.
type EditType string

const (
	EditTypeAddition EditType = "ADDITION"
	EditTypeDeletion EditType = "DELETION"
	EditTypeUpdate   EditType = "UPDATE"
)

// ReviewStatus captures the moderation state of an edit.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// Boolean field values as stored in the ledger. Old and new values are kept
// as text regardless of the target field's native type.
const (
	BoolValueTrue  = "True"
	BoolValueFalse = "False"
)

// Edit is one proposed field-level change in the append-only ledger. The
// (SourceTable, SourceRow, SourceColumn) triple addresses the affected field;
// AHJID groups edits under the top-level authority they belong to, even when
// the touched record is a child (contact, inspection, fee structure).
type Edit struct {
	ID            int64        `db:"id" json:"id"`
	ChangedBy     string       `db:"changed_by" json:"changedBy"`
	ApprovedBy    *string      `db:"approved_by" json:"approvedBy,omitempty"`
	AHJID         *int64       `db:"ahj_id" json:"ahjId,omitempty"`
	SourceTable   string       `db:"source_table" json:"sourceTable"`
	SourceRow     int64        `db:"source_row" json:"sourceRow"`
	SourceColumn  string       `db:"source_column" json:"sourceColumn"`
	ReviewStatus  ReviewStatus `db:"review_status" json:"reviewStatus"`
	OldValue      string       `db:"old_value" json:"oldValue"`
	NewValue      string       `db:"new_value" json:"newValue"`
	DateRequested time.Time    `db:"date_requested" json:"dateRequested"`
	DateEffective *time.Time   `db:"date_effective" json:"dateEffective,omitempty"`
	IsApplied     bool         `db:"is_applied" json:"isApplied"`
	EditType      EditType     `db:"edit_type" json:"editType"`
	SourceComment string       `db:"source_comment" json:"sourceComment,omitempty"`
}

// Applied reports whether the edit's approved change has taken effect.
// Approval alone is not enough; the effective date must also have passed.
func (e *Edit) Applied(now time.Time) bool {
	return e.ReviewStatus == ReviewStatusApproved &&
		e.DateEffective != nil &&
		!e.DateEffective.After(now)
}

// SameTarget reports whether two edits address the same record field.
func (e *Edit) SameTarget(other *Edit) bool {
	return e.SourceTable == other.SourceTable &&
		e.SourceRow == other.SourceRow &&
		e.SourceColumn == other.SourceColumn
}

// EditFilter constrains ledger listing queries.
type EditFilter struct {
	AHJID        *int64
	ChangedBy    string
	Status       []ReviewStatus
	SourceTable  string
	SourceRow    *int64
	SourceColumn string
	Limit        int
	Offset       int
}
