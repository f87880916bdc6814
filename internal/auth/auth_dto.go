package auth

import "slices"

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// User is the authenticated identity as reported by the backend. The
// storefront reads it but only the backend changes it.
type User struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ActiveRole Role   `json:"activeRole" validate:"required,oneof=buyer supplier agent admin"`
	Roles      []Role `json:"roles" validate:"dive,oneof=buyer supplier agent admin"`
}

// HasRole reports whether role is among the user's capabilities, active or not.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	return u.ActiveRole == role || slices.Contains(u.Roles, role)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}
