/**
 * @description
 * Identity and role types shared by the backend and the portal client.
 *
 * @notes
 * - Roles are a closed set. The original backend emitted Spring-style names
 *   ("ROLE_CUSTOMER"); ParseRole accepts both forms and the bare name is the
 *   canonical wire value.
 */

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of actor roles.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleEmployee Role = "EMPLOYEE"
	RoleAdmin    Role = "ADMIN"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole normalises a wire role into the closed set.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "ROLE_")
	switch Role(normalized) {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return Role(normalized), nil
	default:
		return "", ErrUnknownRole
	}
}

// IsStaff reports whether the role belongs to the employee portal.
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// User is the persisted login identity.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Identity is the snapshot issued alongside a session token.
type Identity struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

// LoginRequest is the body of POST auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the bearer token and the identity snapshot.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int64     `json:"expiresIn"`
	Role      Role      `json:"role"`
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}

// Identity extracts the snapshot from a login response.
func (r LoginResponse) Identity() Identity {
	return Identity{UserID: r.UserID, Username: r.Username, Email: r.Email, Role: r.Role}
}

// RegisterRequest holds the self-service customer registration fields.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	DateOfBirth  string `json:"dateOfBirth,omitempty"`
	PanNumber    string `json:"panNumber,omitempty"`
	AadharNumber string `json:"aadharNumber,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PinCode      string `json:"pinCode,omitempty"`
}

// RegisterResponse acknowledges a registration. Email verification happens out of band.
type RegisterResponse struct {
	UserID        uuid.UUID `json:"userId"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	AccountNumber string    `json:"accountNumber"`
}
