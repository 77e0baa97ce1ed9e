package users

import (
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
)

// Role enumerates account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the sanitized account projection. It is the only user shape that leaves the directory.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
}

// Identity converts u into the claims embedded in a session token.
func (u User) Identity() security.Identity {
	return security.Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
		Avatar:    u.Avatar,
	}
}

// FromIdentity rebuilds a user projection from token claims.
func FromIdentity(id security.Identity) User {
	return User{
		ID:        id.ID,
		Name:      id.Name,
		Email:     id.Email,
		Role:      Role(id.Role),
		IsActive:  id.IsActive,
		CreatedAt: id.CreatedAt,
		LastLogin: id.LastLogin,
		Avatar:    id.Avatar,
	}
}

// Account is the stored record: the user plus its bcrypt hash.
type Account struct {
	User
	Password string `json:"password"`
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	Name      *string
	Email     *string
	Role      *Role
	IsActive  *bool
	Avatar    *string
	LastLogin *time.Time
}

func (p Patch) apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.LastLogin != nil {
		t := *p.LastLogin
		u.LastLogin = &t
	}
}

// DefaultAdmin describes the bootstrap administrator.
type DefaultAdmin struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// Bootstrap administrator defaults.
const (
	DefaultAdminID    = "admin-default-id"
	DefaultAdminEmail = "admin@assistentefinanceiro.com"
	DefaultAdminName  = "Administrador"
)
