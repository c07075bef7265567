// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/fairshare/fairshare/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error       string       `json:"error"`
	Code        string       `json:"code"`
	Fields      []FieldError `json:"fields,omitempty"`
	UserID      *int64       `json:"userId,omitempty"`
	ProvisionID string       `json:"provisionId,omitempty"`
	Step        string       `json:"step,omitempty"`
}

// FieldError names one invalid request field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	Name          string `json:"name"`
	CreatorUserID int64  `json:"creatorUserId"`
}

// ProvisionGroupRequest is the body of POST /groups:provision.
type ProvisionGroupRequest struct {
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	GroupName string `json:"groupName"`
}

// DiscardOrphansRequest is the body of POST /users:discard-orphans.
type DiscardOrphansRequest struct {
	UserIDs []int64 `json:"userIds"`
}

// DiscardOrphansResponse lists the users that were discarded.
type DiscardOrphansResponse struct {
	Discarded []int64 `json:"discarded"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	CreatedAt time.Time `json:"createdAt"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatorUserID int64     `json:"creatorUserId"`
}

// MembershipResponse represents a group membership.
type MembershipResponse struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	GroupID  int64     `json:"groupId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ProvisionResponse is returned by POST /groups:provision.
type ProvisionResponse struct {
	ProvisionID string        `json:"provisionId"`
	User        UserResponse  `json:"user"`
	Group       GroupResponse `json:"group"`
}

// ToUserResponse converts a User model.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		UserID:    u.ID,
		UserName:  u.Name,
		UserEmail: u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ToUserListResponse converts a slice of users.
func ToUserListResponse(users []*model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u))
	}
	return out
}

// ToGroupResponse converts a Group model.
func ToGroupResponse(g *model.Group) GroupResponse {
	return GroupResponse{
		ID:            g.ID,
		Name:          g.Name,
		CreatedAt:     g.CreatedAt,
		CreatorUserID: g.CreatorUserID,
	}
}

// ToGroupListResponse converts a slice of groups, preserving order.
func ToGroupListResponse(groups []*model.Group) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, ToGroupResponse(g))
	}
	return out
}

// ToMembershipListResponse converts a slice of memberships.
func ToMembershipListResponse(members []*model.Membership) []MembershipResponse {
	out := make([]MembershipResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MembershipResponse{
			ID:       m.ID,
			UserID:   m.UserID,
			GroupID:  m.GroupID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return out
}
