// Package reference caches the static lookup entities (facilities, stores,
// employees, users) the dashboards join against. The backend serves them
// slowly and they change rarely, so the gateway fetches each list once and
// serves it from memory until the TTL lapses or a store change invalidates
// the cache.
package reference

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/logger"
)

// DefaultTTL is how long a reference list is served from cache.
const DefaultTTL = 5 * time.Minute

// API is the slice of the backend client the reference cache needs.
type API interface {
	Facilities(ctx context.Context) ([]workflow.Facility, error)
	Stores(ctx context.Context) ([]workflow.Store, error)
	Employees(ctx context.Context) ([]workflow.Employee, error)
	Users(ctx context.Context) ([]workflow.User, error)
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// Service is the reference-data cache. Concurrent misses for the same list
// are collapsed into a single upstream call.
type Service struct {
	upstream API
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]entry
}

// NewService creates the cache. A non-positive ttl falls back to DefaultTTL.
func NewService(up API, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		upstream: up,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		cache:    make(map[string]entry),
	}
}

// Facilities returns the cached facility list.
func (s *Service) Facilities(ctx context.Context) ([]workflow.Facility, error) {
	value, err := s.fetch(ctx, "facilities", func(ctx context.Context) (interface{}, error) {
		return s.upstream.Facilities(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]workflow.Facility), nil
}

// Stores returns the cached store list.
func (s *Service) Stores(ctx context.Context) ([]workflow.Store, error) {
	value, err := s.fetch(ctx, "stores", func(ctx context.Context) (interface{}, error) {
		return s.upstream.Stores(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]workflow.Store), nil
}

// Employees returns the cached employee list.
func (s *Service) Employees(ctx context.Context) ([]workflow.Employee, error) {
	value, err := s.fetch(ctx, "employees", func(ctx context.Context) (interface{}, error) {
		return s.upstream.Employees(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]workflow.Employee), nil
}

// Users returns the cached user list.
func (s *Service) Users(ctx context.Context) ([]workflow.User, error) {
	value, err := s.fetch(ctx, "users", func(ctx context.Context) (interface{}, error) {
		return s.upstream.Users(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]workflow.User), nil
}

// Invalidate drops every cached list. Called when an operator's assigned
// store changed, since employee and user store assignments are part of the
// cached data.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]entry)
	s.mu.Unlock()
	s.log.Info("reference cache invalidated")
}

func (s *Service) fetch(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.fetchedAt) < s.ttl {
		return cached.value, nil
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check: another caller may have filled the cache while this one
		// waited on the flight group.
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && s.now().Sub(cached.fetchedAt) < s.ttl {
			return cached.value, nil
		}

		fresh, err := load(ctx)
		if err != nil {
			// Serve stale data on refresh failure rather than erroring a
			// screen that was working a second ago.
			if ok {
				s.log.Warn("reference refresh failed, serving stale", "list", key, "error", err)
				return cached.value, nil
			}
			return nil, err
		}

		s.mu.Lock()
		s.cache[key] = entry{value: fresh, fetchedAt: s.now()}
		s.mu.Unlock()
		return fresh, nil
	})
	return value, err
}
