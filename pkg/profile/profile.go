// Package profile serves profile, company and feed lookups, backed by the
// upstream facade and per-entity caches.
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joblinkhq/linkedin-agent/pkg/entitycache"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

const logPrefix = "profile:service"

// Fetcher is the slice of the upstream facade this service consumes.
type Fetcher interface {
	FetchProfile(ctx context.Context, profileID string) (map[string]any, error)
	FetchCompany(ctx context.Context, companyID string) (map[string]any, error)
	FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error)
}

var _ Fetcher = (*upstream.Facade)(nil)

type Service struct {
	fetcher   Fetcher
	profiles  *entitycache.Cache
	companies *entitycache.Cache
}

func NewService(fetcher Fetcher, profiles, companies *entitycache.Cache) *Service {
	return &Service{fetcher: fetcher, profiles: profiles, companies: companies}
}

// GetProfile returns the profile record, serving a fresh cached copy without
// touching the network. Fetched records merge into the cache so partial
// results never erase previously captured fields.
func (s *Service) GetProfile(ctx context.Context, profileID string) (map[string]any, error) {
	if cached := s.profiles.GetFresh(profileID); cached != nil {
		slog.Debug(fmt.Sprintf("%s - serving profile %s from cache", logPrefix, profileID))
		return cached, nil
	}

	record, err := s.fetcher.FetchProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Put(profileID, record); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to cache profile %s: %v", logPrefix, profileID, err))
	}
	return record, nil
}

// GetCompany mirrors GetProfile for company pages.
func (s *Service) GetCompany(ctx context.Context, companyID string) (map[string]any, error) {
	if cached := s.companies.GetFresh(companyID); cached != nil {
		slog.Debug(fmt.Sprintf("%s - serving company %s from cache", logPrefix, companyID))
		return cached, nil
	}

	record, err := s.fetcher.FetchCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := s.companies.Put(companyID, record); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to cache company %s: %v", logPrefix, companyID, err))
	}
	return record, nil
}

// GetFeed returns recent feed posts. Feed content is never cached: it is
// stale the moment it lands.
func (s *Service) GetFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	if count <= 0 {
		count = 10
	}
	return s.fetcher.FetchFeed(ctx, count, feedType)
}
