package models

// MethodUse is one row of the join tables that record which document
// submission or permit issue methods an AHJ uses. Method holds the enum
// value; Status is the confirmation flag.
type MethodUse struct {
	ID     int64   `db:"id" json:"id"`
	AHJID  int64   `db:"ahj_id" json:"ahjId"`
	Method *string `db:"method" json:"method,omitempty"`
	Status *bool   `db:"method_status" json:"methodStatus,omitempty"`
}
