package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fairshare/fairshare/internal/cache"
	"github.com/fairshare/fairshare/internal/metrics"
	"github.com/fairshare/fairshare/internal/model"
)

// QueryService serves read-only group queries. Groups never change after
// creation, so single-group reads go through the cache when one is configured.
type QueryService struct {
	groups  *GroupService
	cache   GroupCache
	metrics metrics.Recorder
}

// NewQueryService creates a new QueryService. cache may be nil.
func NewQueryService(groups *GroupService, cache GroupCache, recorder metrics.Recorder) *QueryService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &QueryService{groups: groups, cache: cache, metrics: recorder}
}

// ListGroups returns every group in creation order.
func (q *QueryService) ListGroups(ctx context.Context) ([]*model.Group, error) {
	return q.groups.ListGroups(ctx)
}

// ListMembers returns the members of a group.
func (q *QueryService) ListMembers(ctx context.Context, groupID int64) ([]*model.Membership, error) {
	return q.groups.ListMembers(ctx, groupID)
}

// GetGroup returns a group, consulting the cache first.
// Cache errors never fail the read; storage is the source of truth.
func (q *QueryService) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	if q.cache == nil {
		return q.groups.GetGroup(ctx, id)
	}

	if neg, err := q.cache.IsNegativelyCached(ctx, id); err == nil && neg {
		q.metrics.IncGroupCacheHit()
		return nil, ErrGroupNotFound
	}

	group, err := q.cache.GetGroup(ctx, id)
	if err == nil {
		q.metrics.IncGroupCacheHit()
		return group, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.WarnContext(ctx, "group cache read failed", "group_id", id, "error", err)
	}
	q.metrics.IncGroupCacheMiss()

	group, err = q.groups.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			if cerr := q.cache.SetNegativeCache(ctx, id); cerr != nil {
				slog.WarnContext(ctx, "group negative cache fill failed", "group_id", id, "error", cerr)
			}
		}
		return nil, err
	}

	if err := q.cache.SetGroup(ctx, group); err != nil {
		slog.WarnContext(ctx, "group cache fill failed", "group_id", id, "error", err)
	}
	return group, nil
}
