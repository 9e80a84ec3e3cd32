// Package jobsearch serves job discovery: keyword search, job details,
// recommendations, and the saved-jobs list.
package jobsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joblinkhq/linkedin-agent/pkg/entitycache"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

const logPrefix = "jobsearch:service"

const (
	defaultSearchCount = 20
	defaultListCount   = 10
)

// Searcher is the slice of the upstream facade this service consumes.
type Searcher interface {
	SearchJobs(ctx context.Context, filter upstream.SearchFilter, page, count int) (*upstream.SearchResult, error)
	FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error)
	FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error)
	FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error)
	SaveJob(ctx context.Context, jobID string) error
}

var _ Searcher = (*upstream.Facade)(nil)

type Service struct {
	searcher Searcher
	jobs     *entitycache.Cache
}

func NewService(searcher Searcher, jobs *entitycache.Cache) *Service {
	return &Service{searcher: searcher, jobs: jobs}
}

// Search runs a job search. Every filter field is optional: a location-only
// or filter-only search is valid. Result summaries merge into the job cache
// so a later details fetch starts from what the search already knew, and a
// summary never clobbers fields a full details record filled in earlier.
func (s *Service) Search(ctx context.Context, filter upstream.SearchFilter, page, count int) (*upstream.SearchResult, error) {
	if page <= 0 {
		page = 1
	}
	if count <= 0 {
		count = defaultSearchCount
	}

	result, err := s.searcher.SearchJobs(ctx, filter, page, count)
	if err != nil {
		return nil, err
	}
	s.cacheJobRecords(result.Results)
	return result, nil
}

// GetJobDetails returns the full job record, serving a fresh cached copy
// without touching the network.
func (s *Service) GetJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	if cached := s.jobs.GetFresh(jobID); cached != nil {
		slog.Debug(fmt.Sprintf("%s - serving job %s from cache", logPrefix, jobID))
		return cached, nil
	}

	record, err := s.searcher.FetchJobDetails(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Put(jobID, record); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to cache job %s: %v", logPrefix, jobID, err))
	}
	return record, nil
}

// GetRecommended returns personalized job recommendations.
func (s *Service) GetRecommended(ctx context.Context, count int) ([]map[string]any, error) {
	if count <= 0 {
		count = defaultListCount
	}
	jobs, err := s.searcher.FetchRecommendedJobs(ctx, count)
	if err != nil {
		return nil, err
	}
	s.cacheJobRecords(jobs)
	return jobs, nil
}

// GetSaved returns the user's saved-jobs list.
func (s *Service) GetSaved(ctx context.Context, count int) ([]map[string]any, error) {
	if count <= 0 {
		count = defaultListCount
	}
	jobs, err := s.searcher.FetchSavedJobs(ctx, count)
	if err != nil {
		return nil, err
	}
	s.cacheJobRecords(jobs)
	return jobs, nil
}

// Save adds a job to the user's saved list.
func (s *Service) Save(ctx context.Context, jobID string) error {
	return s.searcher.SaveJob(ctx, jobID)
}

func (s *Service) cacheJobRecords(records []map[string]any) {
	for _, record := range records {
		jobID, _ := record["job_id"].(string)
		if jobID == "" {
			continue
		}
		if err := s.jobs.Put(jobID, record); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to cache job %s: %v", logPrefix, jobID, err))
		}
	}
}
