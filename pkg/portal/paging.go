package portal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/finsecure/portal-core/pkg/domain"
)

// Collection is a server-paged resource.
type Collection struct {
	path  string
	roles RoleSet
}

func (c Collection) Path() string {
	return c.path
}

var (
	CustomerDirectory = Collection{path: "employee/customers", roles: StaffRoles}
	PendingKycQueue   = Collection{path: "employee/kyc/pending", roles: StaffRoles}
	PendingLoanQueue  = Collection{path: "employee/loans/pending", roles: StaffRoles}
	NotificationFeed  = Collection{path: "customer/notifications", roles: CustomerRoles}
)

// TransactionHistory is the paged history of one account.
func TransactionHistory(accountID uuid.UUID) Collection {
	return Collection{path: "customer/transactions/" + accountID.String(), roles: CustomerRoles}
}

// List fetches one 0-indexed page. A page at or beyond the last returns no
// items and no error. filter is sent as the search term.
func List[T any](ctx context.Context, c *Client, collection Collection, page, pageSize int, filter string) (domain.Page[T], error) {
	if page < 0 {
		return domain.Page[T]{}, validationError(errors.New("page must not be negative"))
	}
	if pageSize <= 0 {
		return domain.Page[T]{}, validationError(errors.New("page size must be positive"))
	}
	if err := c.Gate(collection.roles); err != nil {
		return domain.Page[T]{}, err
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(pageSize))
	if f := strings.TrimSpace(filter); f != "" {
		query.Set("search", f)
	}

	var result domain.Page[T]
	if err := c.call(ctx, http.MethodGet, collection.path, query, nil, &result); err != nil {
		return domain.Page[T]{}, err
	}
	if result.Items == nil || page >= result.TotalPages {
		result.Items = []T{}
	}
	return result, nil
}

// Cursor tracks a caller's position in a paged collection.
type Cursor struct {
	Page   int
	Size   int
	Filter string
}

func NewCursor(size int) *Cursor {
	return &Cursor{Size: size}
}

// SetFilter changes the filter and goes back to the first page when it differs.
func (c *Cursor) SetFilter(filter string) {
	filter = strings.TrimSpace(filter)
	if filter != c.Filter {
		c.Filter = filter
		c.Page = 0
	}
}

// Next advances when another page exists.
func (c *Cursor) Next(totalPages int) bool {
	if c.Page+1 >= totalPages {
		return false
	}
	c.Page++
	return true
}

func (c *Cursor) Prev() bool {
	if c.Page == 0 {
		return false
	}
	c.Page--
	return true
}
