package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/knulata/satteli/internal/models"
)

const summaryCacheTTL = 60 * time.Second

// DashboardService serves the tenant-facing aggregates through a short-TTL
// read-through cache. Mutating services invalidate on write, so a summary
// read after a completed mutation reflects it.
type DashboardService struct {
	store DashboardStore
	cache Cache
}

func NewDashboardService(store DashboardStore, cache Cache) *DashboardService {
	return &DashboardService{store: store, cache: cache}
}

func summaryCacheKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("dashboard:summary:%s", tenantID)
}

func (s *DashboardService) GetTenantSummary(ctx context.Context, scope models.AccessScope, tenantID uuid.UUID) (*models.TenantSummary, error) {
	if !scope.Allows(tenantID) {
		return nil, fmt.Errorf("tenant %s summary: %w", tenantID, models.ErrNotFound)
	}

	if s.cache != nil {
		var cached models.TenantSummary
		hit, err := s.cache.GetJSON(ctx, summaryCacheKey(tenantID), &cached)
		if err != nil {
			slog.Warn("summary cache read failed", "tenant_id", tenantID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	summary, err := s.store.GetTenantSummary(ctx, scope, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, summaryCacheKey(tenantID), summary, summaryCacheTTL); err != nil {
			slog.Warn("summary cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return summary, nil
}

// InvalidateTenant drops the cached summary after any mutation that feeds
// into it. Cache failures are logged, never propagated.
func (s *DashboardService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, summaryCacheKey(tenantID)); err != nil {
		slog.Warn("summary cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}
