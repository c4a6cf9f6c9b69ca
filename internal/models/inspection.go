package models

// AHJInspection describes one inspection an AHJ performs for an
// installation. Status is the confirmation flag managed by addition and
// deletion edits.
type AHJInspection struct {
	ID                 int64   `db:"id" json:"id"`
	AHJID              int64   `db:"ahj_id" json:"ahjId"`
	AHJInspectionName  string  `db:"name" json:"ahjInspectionName"`
	AHJInspectionNotes string  `db:"notes" json:"ahjInspectionNotes,omitempty"`
	Description        string  `db:"description" json:"description,omitempty"`
	FileFolderURL      string  `db:"file_folder_url" json:"fileFolderUrl,omitempty"`
	InspectionType     *string `db:"inspection_type" json:"inspectionType,omitempty"`
	TechnicianRequired *bool   `db:"technician_required" json:"technicianRequired,omitempty"`
	Status             *bool   `db:"inspection_status" json:"inspectionStatus,omitempty"`
}
