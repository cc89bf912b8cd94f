// AngelaMos | 2026
// service.go

package settings

import (
	"context"
	"sync"
	"time"
)

// Service is the injected read path for runtime settings: cached with a
// TTL, explicitly invalidated on admin updates. Callers never touch the
// settings row directly.
type Service struct {
	repo Repository
	ttl  time.Duration

	mu        sync.RWMutex
	cached    Settings
	fetchedAt time.Time
}

func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, ttl: ttl}
}

func (s *Service) Current(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	fresh, err := s.repo.Get(ctx)
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	s.cached = fresh
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return fresh, nil
}

func (s *Service) Update(ctx context.Context, updated Settings) error {
	if err := s.repo.Update(ctx, updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = updated
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return nil
}

func (s *Service) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
