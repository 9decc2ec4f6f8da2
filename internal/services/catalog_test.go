package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/pkg/helpers"
)

type fakeToolLister struct {
	calls int
	tools []dto.ToolDescriptor
	err   error
}

func (f *fakeToolLister) ListTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tools, nil
}

func sampleTools() []dto.ToolDescriptor {
	return []dto.ToolDescriptor{
		{
			Name:        "list_projects",
			Description: "List projects",
			InputSchema: dto.ToolInputSchema{
				Type:       "object",
				Properties: map[string]dto.ToolProperty{"page_size": {Type: "integer", Description: "Results per page"}},
			},
		},
		{
			Name:        "list_applications",
			Description: "List applications",
		},
	}
}

func TestCatalogFetchesOncePerTTL(t *testing.T) {
	remote := &fakeToolLister{tools: sampleTools()}
	svc := NewCatalogService(remote, 5*time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.clockNow = func() time.Time { return now }
	ctx := helpers.TestCtx()

	for i := 0; i < 5; i++ {
		if _, err := svc.GetTools(ctx); err != nil {
			t.Fatalf("GetTools error: %v", err)
		}
		now = now.Add(time.Minute - time.Second)
	}
	if remote.calls != 1 {
		t.Fatalf("expected 1 fetch inside the ttl window, got %d", remote.calls)
	}

	now = time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)
	if _, err := svc.GetTools(ctx); err != nil {
		t.Fatalf("GetTools error: %v", err)
	}
	if remote.calls != 2 {
		t.Fatalf("expected refetch at ttl boundary, got %d", remote.calls)
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	remote := &fakeToolLister{tools: sampleTools()}
	svc := NewCatalogService(remote, time.Minute)
	ctx := helpers.TestCtx()

	first, err := svc.GetTools(ctx)
	if err != nil {
		t.Fatalf("GetTools error: %v", err)
	}
	first[0].Name = "mutated"
	first[0].InputSchema.Properties["page_size"] = dto.ToolProperty{Type: "string"}

	second, err := svc.GetTools(ctx)
	if err != nil {
		t.Fatalf("GetTools error: %v", err)
	}
	if second[0].Name != "list_projects" {
		t.Fatalf("cached snapshot was mutated: %q", second[0].Name)
	}
	if second[0].InputSchema.Properties["page_size"].Type != "integer" {
		t.Fatalf("cached schema was mutated")
	}
}

func TestCatalogFetchFailureKeepsSnapshot(t *testing.T) {
	remote := &fakeToolLister{tools: sampleTools()}
	svc := NewCatalogService(remote, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.clockNow = func() time.Time { return now }
	ctx := helpers.TestCtx()

	if _, err := svc.GetTools(ctx); err != nil {
		t.Fatalf("GetTools error: %v", err)
	}

	remote.err = errors.New("connection refused")
	now = now.Add(2 * time.Minute)
	_, err := svc.GetTools(ctx)
	var fetchErr *errs.CatalogFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected CatalogFetchError, got %v", err)
	}

	tools, refreshedAt := svc.Snapshot()
	if len(tools) != 2 {
		t.Fatalf("expected previous snapshot to survive, got %d tools", len(tools))
	}
	if !refreshedAt.Equal(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("refreshedAt changed on failure: %v", refreshedAt)
	}
}

func TestCatalogInvalidateForcesFetch(t *testing.T) {
	remote := &fakeToolLister{tools: sampleTools()}
	svc := NewCatalogService(remote, time.Hour)
	ctx := helpers.TestCtx()

	if _, err := svc.GetTools(ctx); err != nil {
		t.Fatalf("GetTools error: %v", err)
	}
	svc.Invalidate()
	if _, err := svc.GetTools(ctx); err != nil {
		t.Fatalf("GetTools error: %v", err)
	}
	if remote.calls != 2 {
		t.Fatalf("expected 2 fetches, got %d", remote.calls)
	}
}

// generationLister returns a distinct complete catalog on every call.
type generationLister struct {
	calls atomic.Int64
}

func (g *generationLister) ListTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	gen := g.calls.Add(1)
	tools := make([]dto.ToolDescriptor, 3)
	for i := range tools {
		tools[i] = dto.ToolDescriptor{Name: fmt.Sprintf("gen%d_tool%d", gen, i)}
	}
	return tools, nil
}

// consistentGeneration reports whether tools is one whole catalog from a
// single ListTools call.
func consistentGeneration(tools []dto.ToolDescriptor) bool {
	if len(tools) != 3 {
		return false
	}
	prefix, _, ok := strings.Cut(tools[0].Name, "_")
	if !ok {
		return false
	}
	for i, tool := range tools {
		if tool.Name != fmt.Sprintf("%s_tool%d", prefix, i) {
			return false
		}
	}
	return true
}

func TestCatalogConcurrentRefreshNeverMixesSnapshots(t *testing.T) {
	remote := &generationLister{}
	// a zero ttl makes every call refresh
	svc := NewCatalogService(remote, 0)
	ctx := helpers.TestCtx()

	const workers = 32
	results := make([][]dto.ToolDescriptor, workers)
	errCh := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				svc.Invalidate()
			}
			tools, err := svc.GetTools(ctx)
			if err != nil {
				errCh <- err
				return
			}
			results[i] = tools
			if snap, _ := svc.Snapshot(); !consistentGeneration(snap) {
				errCh <- fmt.Errorf("mixed snapshot observed: %v", snap)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent refresh: %v", err)
	}
	for i, tools := range results {
		if !consistentGeneration(tools) {
			t.Fatalf("caller %d got a mixed catalog: %v", i, tools)
		}
	}
	snap, _ := svc.Snapshot()
	if !consistentGeneration(snap) {
		t.Fatalf("final snapshot is not one whole catalog: %v", snap)
	}
	if remote.calls.Load() != workers {
		t.Fatalf("expected %d fetches with a zero ttl, got %d", workers, remote.calls.Load())
	}
}
