// Package leaderboard ranks users by their total closed-shift minutes.
package leaderboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
)

// TopN is how many entries the chat and embed views show.
const TopN = 10

type Store interface {
	AggregateDurations(ctx context.Context, department string) ([]models.DurationTotal, error)
}

// Cache stores computed leaderboards by department filter. Implementations
// may drop entries at any time.
//
// Every Invalidate starts a new generation. Get reports the generation it
// looked in, and Set stores only into that same generation, so a result
// computed before an invalidation is never served after it.
type Cache interface {
	Get(ctx context.Context, key string) (entries []models.LeaderboardEntry, gen int64, ok bool)
	Set(ctx context.Context, key string, gen int64, entries []models.LeaderboardEntry)
	Invalidate(ctx context.Context)
}

// allDepartmentsKey cannot collide with cacheKey of a department label.
const allDepartmentsKey = "*"

func cacheKey(department string) string {
	if department == "" {
		return allDepartmentsKey
	}
	return "=" + department
}

type Service struct {
	store Store
	cache Cache
	log   *zap.Logger
}

// NewService builds the aggregator. cache may be nil.
func NewService(store Store, cache Cache, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, log: logger.Named("leaderboard")}
}

// Get returns the ranked totals for one department, or every department when
// department is empty. Only closed shifts count: a user whose only shift in
// scope is still open is omitted, like a user without shifts. Ties keep user
// creation order.
func (s *Service) Get(ctx context.Context, department string) ([]models.LeaderboardEntry, error) {
	scope := Scope(department)
	key := cacheKey(department)
	gen := int64(-1)
	if s.cache != nil {
		entries, g, ok := s.cache.Get(ctx, key)
		if ok {
			return entries, nil
		}
		gen = g
	}

	totals, err := s.store.AggregateDurations(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", scope, err)
	}

	entries := make([]models.LeaderboardEntry, len(totals))
	for i, t := range totals {
		entries[i] = models.LeaderboardEntry{
			Rank:         i + 1,
			ExternalID:   t.ExternalID,
			DisplayName:  t.DisplayName,
			TotalMinutes: t.TotalMinutes,
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, gen, entries)
	}
	s.log.Debug("leaderboard computed", zap.String("scope", scope), zap.Int("entries", len(entries)))
	return entries, nil
}

// Scope returns the label for a department filter: the department itself or
// models.GlobalScope.
func Scope(department string) string {
	if department == "" {
		return models.GlobalScope
	}
	return department
}

// Top returns at most n leading entries.
func Top(entries []models.LeaderboardEntry, n int) []models.LeaderboardEntry {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
