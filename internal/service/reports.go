package service

import (
	"context"
	"fmt"
	"time"

	"ponselkita/backend/internal/domain"
	"ponselkita/backend/internal/store"
)

func summaryKey(branchID int64, day time.Time) string {
	return fmt.Sprintf("summary:%d:%s", branchID, day.UTC().Format("2006-01-02"))
}

// SalesSummary aggregates one branch day. Results are cached; any sale
// mutation for that branch day evicts the entry.
func (s *Service) SalesSummary(ctx context.Context, branchID int64, date string) (*domain.SalesSummary, error) {
	resolved, err := s.resolveBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if resolved == 0 {
		return nil, fmt.Errorf("%w: branch_id is required", store.ErrInvalidInput)
	}
	branchID = resolved

	day := time.Now().UTC()
	if date != "" {
		day, err = time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	key := summaryKey(branchID, from)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.log.WithError(err).Warn("summary cache read failed")
	}

	summary, err := s.repo.GetSalesSummary(ctx, branchID, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		s.log.WithError(err).Warn("summary cache write failed")
	}
	return &summary, nil
}

func (s *Service) invalidateSummary(ctx context.Context, branchID int64, saleDay time.Time) {
	if err := s.cache.Delete(ctx, summaryKey(branchID, saleDay)); err != nil {
		s.log.WithError(err).Warn("summary cache evict failed")
	}
}
