package services

import (
	"context"
	"sync"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/metrics"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type toolLister interface {
	ListTools(ctx context.Context) ([]dto.ToolDescriptor, error)
}

type catalogService struct {
	remote   toolLister
	ttl      time.Duration
	clockNow func() time.Time

	mu          sync.RWMutex
	tools       []dto.ToolDescriptor
	refreshedAt time.Time
	loaded      bool
}

func NewCatalogService(remote toolLister, ttl time.Duration) *catalogService {
	return &catalogService{
		remote:   remote,
		ttl:      ttl,
		clockNow: time.Now,
	}
}

// GetTools returns the cached catalog, fetching it when empty or older than
// the TTL. A failed fetch leaves the previous snapshot in place.
func (s *catalogService) GetTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	s.mu.RLock()
	fresh := s.loaded && s.clockNow().Sub(s.refreshedAt) < s.ttl
	if fresh {
		out := cloneTools(s.tools)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

// Two callers may both observe a stale snapshot and fetch; the later
// replacement wins and the snapshot is never partially written.
func (s *catalogService) refresh(ctx context.Context) ([]dto.ToolDescriptor, error) {
	log := logger.FromContext(ctx)

	tools, err := s.remote.ListTools(ctx)
	metrics.RecordCatalogRefresh(err)
	if err != nil {
		log.Error("tool catalog fetch failed", "error", err)
		return nil, errs.NewCatalogFetchError(err)
	}

	snapshot := cloneTools(tools)
	s.mu.Lock()
	s.tools = snapshot
	s.refreshedAt = s.clockNow()
	s.loaded = true
	s.mu.Unlock()

	log.Info("tool catalog refreshed", "count", len(snapshot))
	return cloneTools(snapshot), nil
}

// Invalidate forces the next GetTools to fetch.
func (s *catalogService) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// Snapshot reports the cached catalog without fetching.
func (s *catalogService) Snapshot() ([]dto.ToolDescriptor, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTools(s.tools), s.refreshedAt
}

func cloneTools(in []dto.ToolDescriptor) []dto.ToolDescriptor {
	if in == nil {
		return nil
	}
	out := make([]dto.ToolDescriptor, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
