package models

// FeeStructure records how an AHJ charges for a permit.
type FeeStructure struct {
	ID               int64   `db:"id" json:"id"`
	AHJID            int64   `db:"ahj_id" json:"ahjId"`
	FeeStructureID   string  `db:"fee_structure_uuid" json:"feeStructureId"`
	FeeStructureName string  `db:"name" json:"feeStructureName"`
	FeeStructureType *string `db:"fee_structure_type" json:"feeStructureType,omitempty"`
	Description      string  `db:"description" json:"description,omitempty"`
	Status           *bool   `db:"fee_structure_status" json:"feeStructureStatus,omitempty"`
}
