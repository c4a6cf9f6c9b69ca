package models

// EngineeringReviewRequirement captures an AHJ's stamp/review demands for
// submitted plans.
type EngineeringReviewRequirement struct {
	ID                    int64   `db:"id" json:"id"`
	AHJID                 int64   `db:"ahj_id" json:"ahjId"`
	Description           string  `db:"description" json:"description,omitempty"`
	EngineeringReviewType *string `db:"engineering_review_type" json:"engineeringReviewType,omitempty"`
	RequirementLevel      *string `db:"requirement_level" json:"requirementLevel,omitempty"`
	RequirementNotes      string  `db:"requirement_notes" json:"requirementNotes,omitempty"`
	StampType             *string `db:"stamp_type" json:"stampType,omitempty"`
	Status                *bool   `db:"review_status" json:"engineeringReviewRequirementStatus,omitempty"`
}
