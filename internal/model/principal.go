package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAnnotator Role = "ANNOTATOR"
	RoleViewer    Role = "VIEWER"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsAnnotator() bool {
	return p.Role == RoleAnnotator
}

func (p Principal) IsViewer() bool {
	return p.Role == RoleViewer
}

// CanAnnotate reports whether the principal may create or mutate
// annotations and sessions.
func (p Principal) CanAnnotate() bool {
	return p.IsAdmin() || p.IsAnnotator()
}
