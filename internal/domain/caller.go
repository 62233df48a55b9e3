package domain

import "unicode"

// maxUserIDLen bounds identity-provider subjects.
const maxUserIDLen = 128

type Role string

const (
	RoleParticipant Role = "participant"
	RoleSeller      Role = "seller"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Caller is the identity supplied by the auth provider for the current request.
// The core trusts it and only checks the role.
type Caller struct {
	UserID string
	Role   Role
}

// Require returns ErrRoleNotAllowed unless the caller holds one of roles.
func (c Caller) Require(roles ...Role) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return ErrRoleNotAllowed
}

// ValidUserID reports whether id looks like an identity-provider subject:
// non-empty, at most maxUserIDLen bytes, printable and without spaces.
func ValidUserID(id string) bool {
	if id == "" || len(id) > maxUserIDLen {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
