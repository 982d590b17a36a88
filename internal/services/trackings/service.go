package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/icellshop/labelbox/internal/cache"
	"github.com/icellshop/labelbox/internal/models"
)

type Repository interface {
	GetTrackingByCode(ctx context.Context, trackingCode string) (*models.Tracking, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL}
}

// GetByCode returns the current state of one tracking, cache first. The cache
// is best effort: a miss or a broken entry just falls through to the DB.
// Returns (nil, nil) for unknown codes.
func (s *Service) GetByCode(ctx context.Context, trackingCode string) (*models.Tracking, error) {
	if trackingCode == "" {
		return nil, errors.New("trackingCode is required")
	}

	key := currentKey(trackingCode)
	if s.cache != nil && s.currentTTL > 0 {
		b, ok, err := s.cache.Get(ctx, key)
		if err == nil && ok {
			var t models.Tracking
			if json.Unmarshal(b, &t) == nil {
				return &t, nil
			}
		}
	}

	t, err := s.repo.GetTrackingByCode(ctx, trackingCode)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	if s.cache != nil && s.currentTTL > 0 {
		b, _ := json.Marshal(t)
		_ = s.cache.Set(ctx, key, b, s.currentTTL)
	}
	return t, nil
}

func currentKey(code string) string {
	return fmt.Sprintf("tracking:%s:current", code)
}
