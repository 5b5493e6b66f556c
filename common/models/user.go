package models

// User is a portal user as seen by the workflow core; only the role matters
// Maps to: portal_user table
type User struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Role Role   `db:"role" json:"role"`
}
