package model

import (
	"strconv"
	"time"
)

// Group is a named collection of users. Its creator is its first administrator.
type Group struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CreatorUserID int64     `json:"creatorUserId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CachedGroup is the Redis hash representation of a group.
// All values are strings so the struct maps onto HSET fields directly.
type CachedGroup struct {
	Name          string
	CreatorUserID string
	CreatedAt     string
}

// ToCachedGroup converts a Group to its cache representation.
func (g *Group) ToCachedGroup() *CachedGroup {
	return &CachedGroup{
		Name:          g.Name,
		CreatorUserID: strconv.FormatInt(g.CreatorUserID, 10),
		CreatedAt:     g.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToGroup rebuilds a Group from its cache representation.
func (c *CachedGroup) ToGroup(id int64) (*Group, error) {
	creatorID, err := strconv.ParseInt(c.CreatorUserID, 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Group{
		ID:            id,
		Name:          c.Name,
		CreatorUserID: creatorID,
		CreatedAt:     createdAt.UTC(),
	}, nil
}
