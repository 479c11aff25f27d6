package domain

// User roles issued by the auth collaborator.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the authenticated caller as extracted from the bearer token.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

// IsAdmin reports whether the identity holds the admin capability.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
