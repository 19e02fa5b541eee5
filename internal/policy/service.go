package policy

import "context"

// ResolverPort abstracts the repository for the service.
type ResolverPort interface {
	Resolve(ctx context.Context, orgID int64) (Policy, error)
}

// Service resolves policies with optional caching.
type Service struct {
	repo  ResolverPort
	cache *Cache
}

// NewService builds Service. A nil cache disables caching.
func NewService(repo ResolverPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get returns the policy in effect for the organization.
func (s *Service) Get(ctx context.Context, orgID int64) (Policy, error) {
	if s.cache == nil {
		return s.repo.Resolve(ctx, orgID)
	}
	return s.cache.Fetch(ctx, orgID, func(ctx context.Context) (Policy, error) {
		return s.repo.Resolve(ctx, orgID)
	})
}

// Invalidate drops any cached policy for the organization, typically after a
// settings update.
func (s *Service) Invalidate(ctx context.Context, orgID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, orgID)
}
