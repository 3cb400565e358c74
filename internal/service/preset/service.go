package preset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/cache"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/validation"
	"golang.org/x/sync/errgroup"
)

// Service はプリセットの統合設定の取得・更新・削除を担当します
type Service struct {
	tx       repository.Transactor
	presets  repository.PresetRepository
	products repository.ProductRepository
	links    repository.PresetProductRepository
	forms    repository.FormSettingsRepository
	windows  repository.PickupWindowRepository
	cache    cache.ConfigCache
	loc      *time.Location
	logger   zerolog.Logger

	// 書き込みのたびに進めます。読み込み中に進んだ設定はキャッシュしません
	generation atomic.Uint64
}

type Repositories struct {
	Tx             repository.Transactor
	Presets        repository.PresetRepository
	Products       repository.ProductRepository
	PresetProducts repository.PresetProductRepository
	FormSettings   repository.FormSettingsRepository
	PickupWindows  repository.PickupWindowRepository
}

func NewService(repos Repositories, configCache cache.ConfigCache, loc *time.Location, logger zerolog.Logger) *Service {
	if configCache == nil {
		configCache = cache.NoopConfigCache{}
	}
	return &Service{
		tx:       repos.Tx,
		presets:  repos.Presets,
		products: repos.Products,
		links:    repos.PresetProducts,
		forms:    repos.FormSettings,
		windows:  repos.PickupWindows,
		cache:    configCache,
		loc:      loc,
		logger:   logger,
	}
}

// ListPresets はプリセットの一覧を返します
func (s *Service) ListPresets(ctx context.Context) ([]model.Preset, error) {
	presets, err := s.presets.List(ctx)
	if err != nil {
		return nil, apperror.Database("list presets", err)
	}
	return presets, nil
}

// GetConfig はプリセットの統合設定を返します
func (s *Service) GetConfig(ctx context.Context, rawID string) (*model.PresetConfig, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}
	return s.Config(ctx, id)
}

// Config はIDを指定して統合設定を返します
// フォーム設定がない場合は既定値を補い、有効かつ表示対象の商品だけを表示順に並べます
func (s *Service) Config(ctx context.Context, id int64) (_ *model.PresetConfig, err error) {
	ctx, end := tracing.Start(ctx, "PresetService.Config")
	defer func() { end(err) }()

	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	gen := s.generation.Load()

	preset, err := s.getPreset(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		settings model.FormSettings
		details  []model.PresetProductDetail
		windows  []model.PickupWindow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fs, err := s.forms.GetByPresetID(gctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			settings = model.DefaultFormSettings(id)
			return nil
		}
		if err != nil {
			return apperror.Database("get form settings", err)
		}
		settings = *fs
		return nil
	})
	g.Go(func() error {
		var err error
		if details, err = s.links.ListDetails(gctx, id); err != nil {
			return apperror.Database("list preset products", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if windows, err = s.windows.ListByPresetID(gctx, id); err != nil {
			return apperror.Database("list pickup windows", err)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	if windows == nil {
		windows = []model.PickupWindow{}
	}
	cfg := &model.PresetConfig{
		Preset:        *preset,
		FormSettings:  settings,
		Products:      model.EffectiveCatalog(details),
		PickupWindows: windows,
		PickupSlots:   model.PickupSlotsFor(windows, s.loc),
	}
	if s.generation.Load() == gen {
		s.cache.Set(ctx, id, cfg)
	}
	return cfg, nil
}

// UpdateConfig はフォーム設定と商品の紐付けを1トランザクションで更新し、更新後の統合設定を返します
func (s *Service) UpdateConfig(ctx context.Context, rawID string, input model.UpdatePresetConfigInput) (_ *model.PresetConfig, err error) {
	ctx, end := tracing.Start(ctx, "PresetService.UpdateConfig")
	defer func() { end(err) }()

	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}

	var msgs apperror.Messages
	validation.Struct(&msgs, input)
	if err := msgs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.getPreset(ctx, id); err != nil {
		return nil, err
	}

	var settings *model.FormSettings
	if input.FormSettings != nil {
		current, err := s.forms.GetByPresetID(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			d := model.DefaultFormSettings(id)
			current = &d
		case err != nil:
			return nil, apperror.Database("get form settings", err)
		}
		updated := input.FormSettings.Apply(*current)
		updated.PresetID = id
		settings = &updated
	}

	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if settings != nil {
			if err := s.forms.UpsertByPresetID(ctx, tx, settings); err != nil {
				return err
			}
		}
		if len(input.Products) > 0 {
			if err := s.links.Upsert(ctx, tx, toLinks(id, input.Products)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Database("update preset config", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info().Int64("preset_id", id).Bool("form_settings", settings != nil).Int("products", len(input.Products)).Msg("preset config updated")
	return s.Config(ctx, id)
}

// DeletePreset はプリセットと、フォーム設定・受け取り時間帯・商品の紐付けを1トランザクションで削除します
func (s *Service) DeletePreset(ctx context.Context, rawID string) (*repository.DeleteSummary, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}

	summary, err := s.presets.DeleteCascade(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.PresetNotFound(id)
	}
	if err != nil {
		return nil, apperror.Database("delete preset", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info().
		Int64("preset_id", id).
		Int64("form_settings", summary.FormSettings).
		Int64("pickup_windows", summary.PickupWindows).
		Int64("preset_products", summary.PresetProducts).
		Msg("preset deleted")
	return summary, nil
}

// ListPresetProducts は無効なものも含めてプリセットの紐付けを返します
func (s *Service) ListPresetProducts(ctx context.Context, rawID string) ([]model.PresetProductDetail, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}
	if _, err := s.getPreset(ctx, id); err != nil {
		return nil, err
	}

	details, err := s.links.ListDetails(ctx, id)
	if err != nil {
		return nil, apperror.Database("list preset products", err)
	}
	if details == nil {
		details = []model.PresetProductDetail{}
	}
	return details, nil
}

// ReplacePresetProducts はプリセットの紐付けを指定した内容に置き換えます
func (s *Service) ReplacePresetProducts(ctx context.Context, rawID string, inputs []model.PresetProductInput) ([]model.PresetProductDetail, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}

	var msgs apperror.Messages
	validation.Struct(&msgs, model.UpdatePresetConfigInput{Products: inputs})
	if err := msgs.Err(); err != nil {
		return nil, err
	}
	if _, err := s.getPreset(ctx, id); err != nil {
		return nil, err
	}

	keep := make([]int64, len(inputs))
	for i, in := range inputs {
		keep[i] = in.ProductID
	}
	err := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.links.DeleteExcept(ctx, tx, id, keep); err != nil {
			return err
		}
		return s.links.Upsert(ctx, tx, toLinks(id, inputs))
	})
	if err != nil {
		return nil, apperror.Database("replace preset products", err)
	}

	s.invalidate(ctx, id)
	return s.ListPresetProducts(ctx, rawID)
}

// AddPresetProduct は商品をプリセットに紐付けます。既に紐付いている場合は表示順と有効フラグを更新します
func (s *Service) AddPresetProduct(ctx context.Context, rawID string, input model.PresetProductInput) (*model.PresetProductDetail, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}

	var msgs apperror.Messages
	validation.Struct(&msgs, input)
	if err := msgs.Err(); err != nil {
		return nil, err
	}
	if _, err := s.getPreset(ctx, id); err != nil {
		return nil, err
	}

	if _, err := s.products.Get(ctx, input.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(apperror.CodeProductNotFound, fmt.Sprintf("商品(ID: %d)が見つかりません", input.ProductID))
		}
		return nil, apperror.Database("get product", err)
	}

	if err := s.links.Upsert(ctx, nil, toLinks(id, []model.PresetProductInput{input})); err != nil {
		return nil, apperror.Database("add preset product", err)
	}
	s.invalidate(ctx, id)

	details, err := s.links.ListDetails(ctx, id)
	if err != nil {
		return nil, apperror.Database("list preset products", err)
	}
	for _, d := range details {
		if d.Link.ProductID == input.ProductID {
			return &d, nil
		}
	}
	return nil, apperror.Internal(fmt.Errorf("preset product %d/%d not found after upsert", id, input.ProductID))
}

func (s *Service) getPreset(ctx context.Context, id int64) (*model.Preset, error) {
	preset, err := s.presets.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.PresetNotFound(id)
	}
	if err != nil {
		return nil, apperror.Database("get preset", err)
	}
	return preset, nil
}

func toLinks(presetID int64, inputs []model.PresetProductInput) []model.PresetProduct {
	links := make([]model.PresetProduct, len(inputs))
	for i, in := range inputs {
		links[i] = model.PresetProduct{
			PresetID:     presetID,
			ProductID:    in.ProductID,
			DisplayOrder: in.DisplayOrder,
			IsActive:     in.Active(),
		}
	}
	return links
}

// invalidate は書き込み後に呼び、世代を進めてからキャッシュを削除します
// 世代の確認とSetの間に割り込まれた場合に残る古い設定はTTLで失効します
func (s *Service) invalidate(ctx context.Context, id int64) {
	s.generation.Add(1)
	s.cache.Invalidate(ctx, id)
}
