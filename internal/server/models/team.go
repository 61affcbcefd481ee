package models

import "time"

// Team groups users and owns cards and labels. MemberCount is filled in by
// reads only.
type Team struct {
	ID          int64
	Name        string
	Description string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedBy   *int64
	UpdatedAt   *time.Time
	IsActive    bool
	MemberCount int
}

type TeamRole string

const (
	RoleViewer TeamRole = "Viewer"
	RoleMember TeamRole = "Member"
	RoleOwner  TeamRole = "Owner"
)

// Rank orders roles: Owner > Member > Viewer. Unknown roles rank 0.
func (r TeamRole) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

func (r TeamRole) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r grants everything min grants.
func (r TeamRole) AtLeast(min TeamRole) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

type TeamMembership struct {
	TeamID    int64
	UserID    int64
	Role      TeamRole
	CreatedBy *int64
	CreatedAt time.Time
}

// TeamMember is a membership joined with the member's profile.
type TeamMember struct {
	TeamID      int64
	UserID      int64
	DisplayName string
	Email       string
	Role        TeamRole
	CreatedAt   time.Time
}
