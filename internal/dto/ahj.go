package dto

// CreateAHJRequest registers a new authority shell. Code fields are not
// accepted here; they are populated through the edit workflow.
type CreateAHJRequest struct {
	AHJName       string `json:"ahjName"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	AddressLine1  string `json:"addressLine1"`
	City          string `json:"city"`
	County        string `json:"county"`
	StateProvince string `json:"stateProvince"`
	ZipPostalCode string `json:"zipPostalCode"`
}

// AHJQuery mirrors the supported search filters.
type AHJQuery struct {
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
