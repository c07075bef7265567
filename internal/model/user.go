// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// User is a person who can create and administer groups.
type User struct {
	ID        int64      `json:"userId"`
	Name      string     `json:"userName"`
	Email     string     `json:"userEmail"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"-"`
}

// IsDeleted reports whether the user was discarded as an orphan.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// NormalizeEmail trims and lower-cases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
