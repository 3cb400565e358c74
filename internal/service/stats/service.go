package stats

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/cache"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Stats は管理画面のダッシュボードに表示する集計値です
type Stats struct {
	Presets      int64                             `json:"presets"`
	Products     int64                             `json:"products"`
	Reservations map[model.ReservationStatus]int64 `json:"reservations"`
	Cache        cache.Stats                       `json:"cache"`
}

type Service struct {
	presets      repository.PresetRepository
	products     repository.ProductRepository
	reservations repository.ReservationRepository
	cache        cache.ConfigCache
	logger       zerolog.Logger
}

func NewService(
	presets repository.PresetRepository,
	products repository.ProductRepository,
	reservations repository.ReservationRepository,
	configCache cache.ConfigCache,
	logger zerolog.Logger,
) *Service {
	if configCache == nil {
		configCache = cache.NoopConfigCache{}
	}
	return &Service{
		presets:      presets,
		products:     products,
		reservations: reservations,
		cache:        configCache,
		logger:       logger,
	}
}

// Get は各集計を並行して取得します
// キャッシュの集計に失敗した場合はログに残し、空の値を返します
func (s *Service) Get(ctx context.Context) (*Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.presets.Count(gctx)
		if err != nil {
			return apperror.Database("count presets", err)
		}
		stats.Presets = n
		return nil
	})
	g.Go(func() error {
		n, err := s.products.Count(gctx)
		if err != nil {
			return apperror.Database("count products", err)
		}
		stats.Products = n
		return nil
	})
	g.Go(func() error {
		counts, err := s.reservations.CountByStatus(gctx)
		if err != nil {
			return apperror.Database("count reservations", err)
		}
		stats.Reservations = counts
		return nil
	})
	g.Go(func() error {
		cs, err := s.cache.Stats(gctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to get cache stats")
			return nil
		}
		stats.Cache = cs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stats.Reservations == nil {
		stats.Reservations = map[model.ReservationStatus]int64{}
	}
	for _, status := range []model.ReservationStatus{
		model.ReservationStatusPending,
		model.ReservationStatusConfirmed,
		model.ReservationStatusCancelled,
	} {
		if _, ok := stats.Reservations[status]; !ok {
			stats.Reservations[status] = 0
		}
	}
	return &stats, nil
}
