package models

import "time"

// Role determines access to administrative endpoints
type Role string

// UserRole constants
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Avatar references an object on the external media host
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// User represents a user in the credential store
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Role         Role      `json:"role"`
	Avatar       Avatar    `json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`

	// Reset token fields are both set or both nil
	ResetPasswordToken  *string    `json:"-"`
	ResetPasswordExpire *time.Time `json:"-"`
}
