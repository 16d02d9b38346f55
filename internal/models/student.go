package models

import "time"

// UnknownValue is substituted for identity columns when a scan references a
// badge the registry does not know.
const UnknownValue = "N/A"

// Student represents a diner registered with the mess. UniqueID is the badge
// code assigned by the registration desk; it is the only key the attendance
// core refers to.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UniqueID  string    `db:"unique_id" json:"unique_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	RollNo    string    `db:"roll_no" json:"roll_no"`
	Branch    string    `db:"branch" json:"branch"`
	Semester  string    `db:"semester" json:"semester"`
	Phone     string    `db:"phone" json:"phone"`
	FeePaid   string    `db:"fee_paid" json:"fee_paid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Semester  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
