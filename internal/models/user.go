package models

// Role tags a user for authorization checks
type Role string

const (
	RoleFinanceHead Role = "finance_head"
	RoleHRAdmin     Role = "hr_admin"
	RoleEmployee    Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFinanceHead, RoleHRAdmin, RoleEmployee:
		return true
	}
	return false
}

// User represents the user model in the database
type User struct {
	Base
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	Password   string `gorm:"not null" json:"-"`
	Name       string `gorm:"not null" json:"name"`
	Role       Role   `gorm:"not null" json:"role"`
	Department string `json:"department"`
	Avatar     string `json:"avatar,omitempty"`
}
