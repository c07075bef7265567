package model

import "time"

// Role is a user's role inside a group.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// IsValid checks if the role is a known value.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Membership links a user to a group with a role.
// Group creation writes exactly one ADMIN membership for the creator.
type Membership struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	GroupID  int64     `json:"groupId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}
