package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Page is one 0-indexed slice of a server-side paged collection. A page at or
// beyond TotalPages has no items.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// PageRequest bounds a list query.
type PageRequest struct {
	Page   int
	Size   int
	Search string
}

// Offset converts the page cursor into a SQL offset. It saturates instead of
// wrapping negative.
func (p PageRequest) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// NewPage builds a page from the total row count. Items is never nil so the
// wire form is always an array.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// CustomerDashboard is the read-only snapshot for the customer portal.
type CustomerDashboard struct {
	Profile             CustomerProfile `json:"profile"`
	TotalBalance        decimal.Decimal `json:"totalBalance"`
	TotalAccounts       int             `json:"totalAccounts"`
	ActiveLoans         int             `json:"activeLoans"`
	ActiveCards         int             `json:"activeCards"`
	UnreadNotifications int64           `json:"unreadNotifications"`
	Accounts            []Account       `json:"accounts"`
	RecentTransactions  []Transaction   `json:"recentTransactions"`
}

// EmployeeDashboard is the read-only snapshot for the employee portal.
type EmployeeDashboard struct {
	TotalCustomers int `json:"totalCustomers"`
	PendingKyc     int `json:"pendingKyc"`
	PendingLoans   int `json:"pendingLoans"`
	ActiveLoans    int `json:"activeLoans"`
}

// APIResponse is the envelope every backend response is wrapped in.
type APIResponse[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}
