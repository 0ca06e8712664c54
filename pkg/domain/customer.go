package domain

import (
	"time"

	"github.com/google/uuid"
)

// KycStatus is the customer-level aggregate derived from document decisions.
type KycStatus string

const (
	KycPending   KycStatus = "PENDING"
	KycSubmitted KycStatus = "SUBMITTED"
	KycApproved  KycStatus = "APPROVED"
	KycRejected  KycStatus = "REJECTED"
)

// Customer maps to the customers table.
type Customer struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Phone        string     `json:"phone"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	PanNumber    string     `json:"panNumber,omitempty"`
	AadharNumber string     `json:"aadharNumber,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	PinCode      string     `json:"pinCode,omitempty"`
	KycStatus    KycStatus  `json:"kycStatus"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// CustomerProfile is the read model returned by profile and directory endpoints.
type CustomerProfile struct {
	Customer
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"emailVerified"`
}

// Employee maps to the employees table.
type Employee struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	EmployeeCode string    `json:"employeeCode"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Department   string    `json:"department,omitempty"`
	Designation  string    `json:"designation,omitempty"`
}
