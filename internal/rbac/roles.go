package rbac

import "strconv"

// Role is the numeric role code carried in the token's "role" claim.
// Keep these stable; they are part of the backend token contract.
type Role int

const (
	RoleCustomer Role = 2
	RoleAdmin    Role = 4
	RoleInternal Role = 6
)

// Role names as used by the route table.
const (
	NameUser     = "user"
	NameAdmin    = "admin"
	NameInternal = "internal"
)

// Landing pages per role. These are legacy paths; the route table redirects them.
const (
	LandingCustomer = "/home"
	LandingAdmin    = "/home-admin"
	LandingInternal = "/intuser-home"
)

var byName = map[string]Role{
	NameUser:     RoleCustomer,
	NameAdmin:    RoleAdmin,
	NameInternal: RoleInternal,
}

// ParseName maps a route role name to its code. Unknown names never match any role.
func ParseName(name string) (Role, bool) {
	r, ok := byName[name]
	return r, ok
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleInternal:
		return true
	default:
		return false
	}
}

func (r Role) Name() string {
	switch r {
	case RoleCustomer:
		return NameUser
	case RoleAdmin:
		return NameAdmin
	case RoleInternal:
		return NameInternal
	default:
		return "unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

func (r Role) String() string { return r.Name() }

// LandingPage is the default page for a role. Unknown roles land on the customer page.
func LandingPage(r Role) string {
	switch r {
	case RoleAdmin:
		return LandingAdmin
	case RoleInternal:
		return LandingInternal
	default:
		return LandingCustomer
	}
}

// Matches reports whether r maps into any of the named roles.
// An invalid role matches nothing.
func Matches(r Role, names []string) bool {
	if !r.Valid() {
		return false
	}
	for _, n := range names {
		if code, ok := ParseName(n); ok && code == r {
			return true
		}
	}
	return false
}
