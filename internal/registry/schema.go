package registry

// FieldKind tells the accessor how to coerce a ledger value (always text at
// rest) into the column's native representation.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindInt
	KindDecimal
	KindEnum
)

// ParentLink describes how a table attaches to its parent entity, used when
// addition edits create unconfirmed related records.
type ParentLink int

const (
	ParentNone ParentLink = iota
	// ParentAHJ tables carry an ahj_id column.
	ParentAHJ
	// ParentPolymorphic tables carry parent_table/parent_id columns and can
	// hang off more than one entity type (contacts attach to AHJs and to
	// inspections).
	ParentPolymorphic
)

// FieldSpec maps a logical field name to its SQL column and coercion rule.
type FieldSpec struct {
	Column string
	Kind   FieldKind
	// EnumField keys the enum_values lookup table for KindEnum fields.
	EnumField string
}

// TableSpec describes one logical table exposed to the edit engine.
type TableSpec struct {
	Name       string
	SQLName    string
	PrimaryKey string
	// StatusField is the logical name of the confirmation flag toggled by
	// addition/deletion edits; empty for top-level tables.
	StatusField string
	// UUIDColumn, when set, receives a generated public identifier on insert.
	UUIDColumn string
	Parent     ParentLink
	Fields     map[string]FieldSpec
}

// Schema is the static registry of editable tables and fields. Anything not
// listed here is invisible to the edit engine; unknown names are caller
// errors, not dynamic dispatch.
type Schema struct {
	tables map[string]TableSpec
}

// Table resolves a logical table name.
func (s *Schema) Table(name string) (TableSpec, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Field resolves a logical (table, column) pair.
func (s *Schema) Field(table, column string) (TableSpec, FieldSpec, bool) {
	t, ok := s.tables[table]
	if !ok {
		return TableSpec{}, FieldSpec{}, false
	}
	f, ok := t.Fields[column]
	if !ok {
		return TableSpec{}, FieldSpec{}, false
	}
	return t, f, true
}

func enum(column, field string) FieldSpec {
	return FieldSpec{Column: column, Kind: KindEnum, EnumField: field}
}

func str(column string) FieldSpec {
	return FieldSpec{Column: column, Kind: KindString}
}

func boolean(column string) FieldSpec {
	return FieldSpec{Column: column, Kind: KindBool}
}

// Default returns the registry schema for the AHJ domain.
func Default() *Schema {
	tables := []TableSpec{
		{
			Name:       "AHJ",
			SQLName:    "ahjs",
			PrimaryKey: "id",
			Fields: map[string]FieldSpec{
				"AHJName":           str("name"),
				"Description":       str("description"),
				"URL":               str("url"),
				"AHJLevelCode":      enum("level_code", "AHJLevelCode"),
				"BuildingCode":      enum("building_code", "BuildingCode"),
				"ElectricCode":      enum("electric_code", "ElectricCode"),
				"FireCode":          enum("fire_code", "FireCode"),
				"ResidentialCode":   enum("residential_code", "ResidentialCode"),
				"WindCode":          enum("wind_code", "WindCode"),
				"BuildingCodeNotes": str("building_code_notes"),
				"ElectricCodeNotes": str("electric_code_notes"),
				"FireCodeNotes":     str("fire_code_notes"),
				"AddressLine1":      str("address_line1"),
				"City":              str("city"),
				"County":            str("county"),
				"StateProvince":     str("state_province"),
				"ZipPostalCode":     str("zip_postal_code"),
			},
		},
		{
			Name:        "Contact",
			SQLName:     "contacts",
			PrimaryKey:  "id",
			StatusField: "ContactStatus",
			Parent:      ParentPolymorphic,
			Fields: map[string]FieldSpec{
				"FirstName":              str("first_name"),
				"MiddleName":             str("middle_name"),
				"LastName":               str("last_name"),
				"HomePhone":              str("home_phone"),
				"MobilePhone":            str("mobile_phone"),
				"WorkPhone":              str("work_phone"),
				"Email":                  str("email"),
				"Title":                  str("title"),
				"URL":                    str("url"),
				"Description":            str("description"),
				"ContactTimezone":        str("contact_timezone"),
				"ContactType":            enum("contact_type", "ContactType"),
				"PreferredContactMethod": enum("preferred_contact_method", "PreferredContactMethod"),
				"ContactStatus":          boolean("contact_status"),
			},
		},
		{
			Name:        "AHJInspection",
			SQLName:     "ahj_inspections",
			PrimaryKey:  "id",
			StatusField: "InspectionStatus",
			Parent:      ParentAHJ,
			Fields: map[string]FieldSpec{
				"AHJInspectionName":  str("name"),
				"AHJInspectionNotes": str("notes"),
				"Description":        str("description"),
				"FileFolderURL":      str("file_folder_url"),
				"InspectionType":     enum("inspection_type", "InspectionType"),
				"TechnicianRequired": boolean("technician_required"),
				"InspectionStatus":   boolean("inspection_status"),
			},
		},
		{
			Name:        "FeeStructure",
			SQLName:     "fee_structures",
			PrimaryKey:  "id",
			StatusField: "FeeStructureStatus",
			UUIDColumn:  "fee_structure_uuid",
			Parent:      ParentAHJ,
			Fields: map[string]FieldSpec{
				"FeeStructureName":   str("name"),
				"FeeStructureType":   enum("fee_structure_type", "FeeStructureType"),
				"Description":        str("description"),
				"FeeStructureStatus": boolean("fee_structure_status"),
			},
		},
		{
			Name:        "EngineeringReviewRequirement",
			SQLName:     "engineering_review_requirements",
			PrimaryKey:  "id",
			StatusField: "EngineeringReviewRequirementStatus",
			Parent:      ParentAHJ,
			Fields: map[string]FieldSpec{
				"Description":                        str("description"),
				"EngineeringReviewType":              enum("engineering_review_type", "EngineeringReviewType"),
				"RequirementLevel":                   enum("requirement_level", "RequirementLevel"),
				"RequirementNotes":                   str("requirement_notes"),
				"StampType":                          enum("stamp_type", "StampType"),
				"EngineeringReviewRequirementStatus": boolean("review_status"),
			},
		},
		{
			Name:        "AHJDocumentSubmissionMethodUse",
			SQLName:     "ahj_document_submission_method_uses",
			PrimaryKey:  "id",
			StatusField: "MethodStatus",
			Parent:      ParentAHJ,
			Fields: map[string]FieldSpec{
				"DocumentSubmissionMethod": enum("method", "DocumentSubmissionMethod"),
				"MethodStatus":             boolean("method_status"),
			},
		},
		{
			Name:        "AHJPermitIssueMethodUse",
			SQLName:     "ahj_permit_issue_method_uses",
			PrimaryKey:  "id",
			StatusField: "MethodStatus",
			Parent:      ParentAHJ,
			Fields: map[string]FieldSpec{
				"PermitIssueMethod": enum("method", "PermitIssueMethod"),
				"MethodStatus":      boolean("method_status"),
			},
		},
	}

	m := make(map[string]TableSpec, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return &Schema{tables: m}
}
