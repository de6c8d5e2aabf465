package seapp

import (
	"context"

	"github.com/BigKAA/artStore-sub005/internal/config"
	"github.com/BigKAA/artStore-sub005/internal/version"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/health"
	"github.com/BigKAA/artStore-sub005/pkg/mode"
	"github.com/BigKAA/artStore-sub005/pkg/se/httpapi"
)

// cacheStoreCounter adapts *cache.Store's ListFileIDs into the Count this
// package needs; no dedicated count query exists on the cache store.
type cacheStoreCounter struct {
	store *cache.Store
}

func (c cacheStoreCounter) Count(ctx context.Context) (int64, error) {
	ids, err := c.store.ListFileIDs(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// infoService answers the §6.3 discovery/capacity endpoints by reusing the
// Health Reporter's sample instead of computing capacity a second way.
type infoService struct {
	cfg      *config.SEConfig
	mode     *mode.Controller
	reporter *health.Reporter
	files    filesLister
}

// filesLister reports how many files this Storage Element currently
// tracks. Satisfied by cacheStoreCounter, which wraps *cache.Store.
type filesLister interface {
	Count(ctx context.Context) (int64, error)
}

func newInfoService(cfg *config.SEConfig, m *mode.Controller, reporter *health.Reporter, files filesLister) *infoService {
	return &infoService{cfg: cfg, mode: m, reporter: reporter, files: files}
}

func (s *infoService) Info(ctx context.Context) (httpapi.InfoResponse, error) {
	rec, err := s.reporter.Sample(ctx)
	if err != nil {
		return httpapi.InfoResponse{}, err
	}
	count, err := s.files.Count(ctx)
	if err != nil {
		return httpapi.InfoResponse{}, err
	}
	return httpapi.InfoResponse{
		Name:         s.cfg.StorageElementID,
		DisplayName:  s.cfg.StorageElementID,
		Version:      version.Version,
		Mode:         string(s.mode.Mode()),
		StorageType:  s.cfg.StorageType,
		BasePath:     s.cfg.StorageBasePath,
		CapacityByte: rec.CapacityTotal,
		UsedBytes:    rec.CapacityUsed,
		FileCount:    count,
		Status:       string(rec.CapacityStatus),
	}, nil
}

func (s *infoService) Capacity(ctx context.Context) (httpapi.CapacityResponse, error) {
	rec, err := s.reporter.Sample(ctx)
	if err != nil {
		return httpapi.CapacityResponse{}, err
	}
	return httpapi.CapacityResponse{
		CapacityTotal:   rec.CapacityTotal,
		CapacityUsed:    rec.CapacityUsed,
		CapacityFree:    rec.CapacityFree,
		CapacityPercent: rec.CapacityPercent,
		Status:          string(rec.CapacityStatus),
	}, nil
}
