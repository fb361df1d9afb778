package application

import (
	"context"

	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"go.uber.org/zap"
)

// DirectoryProvider loads a point-in-time view of the resource directory.
type DirectoryProvider interface {
	Snapshot(ctx context.Context) (resource.Snapshot, error)
}

// RuleProvider loads a point-in-time view of the rule store.
type RuleProvider interface {
	Snapshot(ctx context.Context) (rules.Snapshot, error)
}

// SnapshotCache is the short-TTL cache in front of the directory and rule
// store. Cache failures degrade to direct reads, never to request errors.
type SnapshotCache interface {
	GetResourceSnapshot(ctx context.Context) (resource.Snapshot, bool, error)
	SetResourceSnapshot(ctx context.Context, snap resource.Snapshot) error
	GetRuleSnapshot(ctx context.Context) (rules.Snapshot, bool, error)
	SetRuleSnapshot(ctx context.Context, snap rules.Snapshot) error
}

// SnapshotSource hands out directory and rule snapshots. Read-side queries
// take the cached path; the commit path always reads fresh, because a
// stale rule set must never decide a booking.
type SnapshotSource struct {
	directory DirectoryProvider
	rules     RuleProvider
	cache     SnapshotCache
	logger    *zap.Logger
}

// NewSnapshotSource creates a SnapshotSource. cache may be nil, in which
// case every read goes to the store.
func NewSnapshotSource(directory DirectoryProvider, ruleStore RuleProvider, cache SnapshotCache, logger *zap.Logger) *SnapshotSource {
	return &SnapshotSource{
		directory: directory,
		rules:     ruleStore,
		cache:     cache,
		logger:    logger,
	}
}

// Cached returns snapshots from the cache when fresh, falling back to the
// store on a miss or cache error.
func (s *SnapshotSource) Cached(ctx context.Context) (resource.Snapshot, rules.Snapshot, error) {
	resSnap, resOK := s.cachedResources(ctx)
	ruleSnap, ruleOK := s.cachedRules(ctx)
	if resOK && ruleOK {
		return resSnap, ruleSnap, nil
	}

	freshRes, freshRules, err := s.Fresh(ctx)
	if err != nil {
		return resource.Snapshot{}, rules.Snapshot{}, err
	}

	if s.cache != nil {
		if !resOK {
			if err := s.cache.SetResourceSnapshot(ctx, freshRes); err != nil {
				s.logger.Warn("failed to cache resource snapshot", zap.Error(err))
			}
		}
		if !ruleOK {
			if err := s.cache.SetRuleSnapshot(ctx, freshRules); err != nil {
				s.logger.Warn("failed to cache rule snapshot", zap.Error(err))
			}
		}
	}
	return freshRes, freshRules, nil
}

// Fresh reads both snapshots straight from the store.
func (s *SnapshotSource) Fresh(ctx context.Context) (resource.Snapshot, rules.Snapshot, error) {
	resSnap, err := s.directory.Snapshot(ctx)
	if err != nil {
		return resource.Snapshot{}, rules.Snapshot{}, err
	}
	ruleSnap, err := s.rules.Snapshot(ctx)
	if err != nil {
		return resource.Snapshot{}, rules.Snapshot{}, err
	}
	return resSnap, ruleSnap, nil
}

func (s *SnapshotSource) cachedResources(ctx context.Context) (resource.Snapshot, bool) {
	if s.cache == nil {
		return resource.Snapshot{}, false
	}
	snap, ok, err := s.cache.GetResourceSnapshot(ctx)
	if err != nil {
		s.logger.Warn("resource snapshot cache read failed", zap.Error(err))
		return resource.Snapshot{}, false
	}
	return snap, ok
}

func (s *SnapshotSource) cachedRules(ctx context.Context) (rules.Snapshot, bool) {
	if s.cache == nil {
		return rules.Snapshot{}, false
	}
	snap, ok, err := s.cache.GetRuleSnapshot(ctx)
	if err != nil {
		s.logger.Warn("rule snapshot cache read failed", zap.Error(err))
		return rules.Snapshot{}, false
	}
	return snap, ok
}
