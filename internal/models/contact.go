package models

// Contact is a point of contact attached to an AHJ or one of its
// inspections. ParentTable/ParentID make the relation polymorphic; Status is
// the confirmation flag toggled by addition and deletion edits (NULL means
// unconfirmed, awaiting moderation).
type Contact struct {
	ID                     int64   `db:"id" json:"id"`
	ParentTable            string  `db:"parent_table" json:"parentTable"`
	ParentID               int64   `db:"parent_id" json:"parentId"`
	FirstName              string  `db:"first_name" json:"firstName,omitempty"`
	MiddleName             string  `db:"middle_name" json:"middleName,omitempty"`
	LastName               string  `db:"last_name" json:"lastName,omitempty"`
	HomePhone              string  `db:"home_phone" json:"homePhone,omitempty"`
	MobilePhone            string  `db:"mobile_phone" json:"mobilePhone,omitempty"`
	WorkPhone              string  `db:"work_phone" json:"workPhone,omitempty"`
	Email                  string  `db:"email" json:"email,omitempty"`
	Title                  string  `db:"title" json:"title,omitempty"`
	URL                    string  `db:"url" json:"url,omitempty"`
	Description            string  `db:"description" json:"description,omitempty"`
	ContactTimezone        string  `db:"contact_timezone" json:"contactTimezone,omitempty"`
	ContactType            *string `db:"contact_type" json:"contactType,omitempty"`
	PreferredContactMethod *string `db:"preferred_contact_method" json:"preferredContactMethod,omitempty"`
	Status                 *bool   `db:"contact_status" json:"contactStatus,omitempty"`
}
