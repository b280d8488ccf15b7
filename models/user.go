package models

// User roles
const (
	RoleCustomer = "customer"
	RoleMechanic = "mechanic"
	RoleAdmin    = "admin"
)

// User represents a user in the system (customer, mechanic or admin)
type User struct {
	Base
	Auth0ID string  `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name    string  `gorm:"not null" json:"name"`
	Email   string  `gorm:"uniqueIndex;not null" json:"email"`
	Phone   *string `json:"phone,omitempty"`
	Role    string  `gorm:"not null;default:'customer'" json:"role"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known user roles
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleMechanic, RoleAdmin:
		return true
	}
	return false
}
