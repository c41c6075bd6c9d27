// Package catalog resolves the services appointments are booked against.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/internal/repository"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
)

const DefaultTTL = 5 * time.Minute

// Service caches service rows. Category never changes for an existing
// service, so a stale entry only delays an activation flag.
type Service struct {
	repo  repository.ServiceRepository
	cache *cache.Cache
}

func NewService(repo repository.ServiceRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	if cached, found := s.cache.Get(id.String()); found {
		return cached.(*model.Service), nil
	}

	svc, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("service", err)
		}
		return nil, fmt.Errorf("failed to load service %s: %w", id, err)
	}

	s.cache.Set(id.String(), svc, cache.DefaultExpiration)
	return svc, nil
}

// Category reports whether the service runs the health-card pipeline.
func (s *Service) Category(ctx context.Context, id uuid.UUID) (model.ServiceCategory, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return svc.Category, nil
}

// Invalidate drops a cached service.
func (s *Service) Invalidate(id uuid.UUID) {
	s.cache.Delete(id.String())
}
