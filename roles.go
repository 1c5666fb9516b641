package auth

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "user"
	// RoleManager can manage records within its account
	RoleManager UserRole = "manager"
	// RoleAdmin can manage users and settings within its account
	RoleAdmin UserRole = "admin"
	// RoleOwner is the account owner
	RoleOwner UserRole = "owner"
)

// roleRank orders roles from least to most privileged.
var roleRank = map[UserRole]int{
	RoleUser:    0,
	RoleManager: 1,
	RoleAdmin:   2,
	RoleOwner:   3,
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleAtLeast checks if role has at least the privileges of min.
// Unknown roles never satisfy any minimum.
func RoleAtLeast(role, min UserRole) bool {
	rr, ok := roleRank[role]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}
