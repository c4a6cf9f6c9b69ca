package models

import "time"

// AHJ is an Authority Having Jurisdiction: the government body that issues
// permits and inspects installations within its jurisdiction. Code fields
// reference rows of the enum_values lookup table and are surfaced as their
// text values.
type AHJ struct {
	ID                int64     `db:"id" json:"id"`
	AHJID             string    `db:"ahj_uuid" json:"ahjId"`
	AHJName           string    `db:"name" json:"ahjName"`
	Description       string    `db:"description" json:"description,omitempty"`
	URL               string    `db:"url" json:"url,omitempty"`
	AHJLevelCode      *string   `db:"level_code" json:"ahjLevelCode,omitempty"`
	BuildingCode      *string   `db:"building_code" json:"buildingCode,omitempty"`
	ElectricCode      *string   `db:"electric_code" json:"electricCode,omitempty"`
	FireCode          *string   `db:"fire_code" json:"fireCode,omitempty"`
	ResidentialCode   *string   `db:"residential_code" json:"residentialCode,omitempty"`
	WindCode          *string   `db:"wind_code" json:"windCode,omitempty"`
	BuildingCodeNotes string    `db:"building_code_notes" json:"buildingCodeNotes,omitempty"`
	ElectricCodeNotes string    `db:"electric_code_notes" json:"electricCodeNotes,omitempty"`
	FireCodeNotes     string    `db:"fire_code_notes" json:"fireCodeNotes,omitempty"`
	AddressLine1      string    `db:"address_line1" json:"addressLine1,omitempty"`
	City              string    `db:"city" json:"city,omitempty"`
	County            string    `db:"county" json:"county,omitempty"`
	StateProvince     string    `db:"state_province" json:"stateProvince,omitempty"`
	ZipPostalCode     string    `db:"zip_postal_code" json:"zipPostalCode,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// AHJDetail bundles an AHJ with its confirmed child records.
type AHJDetail struct {
	AHJ
	Contacts                      []Contact                      `json:"contacts,omitempty"`
	Inspections                   []AHJInspection                `json:"inspections,omitempty"`
	FeeStructures                 []FeeStructure                 `json:"feeStructures,omitempty"`
	EngineeringReviewRequirements []EngineeringReviewRequirement `json:"engineeringReviewRequirements,omitempty"`
	DocumentSubmissionMethods     []MethodUse                    `json:"documentSubmissionMethods,omitempty"`
	PermitIssueMethods            []MethodUse                    `json:"permitIssueMethods,omitempty"`
}

// AHJFilter captures search criteria for listing authorities.
type AHJFilter struct {
	Search        string
	StateProvince string
	BuildingCode  string
	ElectricCode  string
	FireCode      string
	LevelCode     string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}
