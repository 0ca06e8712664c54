package portal

import "github.com/finsecure/portal-core/pkg/domain"

// LoginPath is where a denied caller is sent.
const LoginPath = "/login"

// RoleSet is the set of roles allowed to perform an action.
type RoleSet []domain.Role

var (
	CustomerRoles = RoleSet{domain.RoleCustomer}
	StaffRoles    = RoleSet{domain.RoleEmployee, domain.RoleAdmin}
)

func (rs RoleSet) Contains(role domain.Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Decision is the outcome of Authorize. Redirect is set only when denied.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Authorize decides whether identity may act under required. It performs no I/O.
func Authorize(required RoleSet, identity *domain.Identity) Decision {
	if identity == nil || !required.Contains(identity.Role) {
		return Decision{Allowed: false, Redirect: LoginPath}
	}
	return Decision{Allowed: true}
}
