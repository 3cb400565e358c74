package formsettings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/cache"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/validation"
)

// Service は管理画面からのフォーム設定の操作を担当します
type Service struct {
	presets repository.PresetRepository
	forms   repository.FormSettingsRepository
	cache   cache.ConfigCache
	logger  zerolog.Logger
}

func NewService(presets repository.PresetRepository, forms repository.FormSettingsRepository, configCache cache.ConfigCache, logger zerolog.Logger) *Service {
	if configCache == nil {
		configCache = cache.NoopConfigCache{}
	}
	return &Service{
		presets: presets,
		forms:   forms,
		cache:   configCache,
		logger:  logger,
	}
}

func (s *Service) List(ctx context.Context) ([]model.FormSettings, error) {
	list, err := s.forms.List(ctx)
	if err != nil {
		return nil, apperror.Database("list form settings", err)
	}
	if list == nil {
		list = []model.FormSettings{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (*model.FormSettings, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}
	return s.get(ctx, id)
}

// Create はプリセットにフォーム設定を登録します。指定されなかった項目は既定値になります
func (s *Service) Create(ctx context.Context, input model.FormSettingsInput) (*model.FormSettings, error) {
	var msgs apperror.Messages
	validation.Struct(&msgs, input)
	if input.PresetID == nil {
		msgs.Add("preset_id is required")
	}
	if err := msgs.Err(); err != nil {
		return nil, err
	}

	presetID := *input.PresetID
	if _, err := s.presets.Get(ctx, presetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.PresetNotFound(presetID)
		}
		return nil, apperror.Database("get preset", err)
	}

	settings := input.Apply(model.DefaultFormSettings(presetID))
	if err := s.forms.Create(ctx, nil, &settings); err != nil {
		return nil, apperror.Database("create form settings", err)
	}

	s.cache.Invalidate(ctx, presetID)
	s.logger.Info().Int64("form_settings_id", settings.ID).Int64("preset_id", presetID).Msg("form settings created")
	return &settings, nil
}

// Update は指定された項目だけを更新します。紐付くプリセットは変更できません
func (s *Service) Update(ctx context.Context, rawID string, input model.FormSettingsInput) (*model.FormSettings, error) {
	id, ok := model.ParseID(rawID)
	if !ok {
		return nil, apperror.InvalidID(rawID)
	}
	var msgs apperror.Messages
	validation.Struct(&msgs, input)
	if err := msgs.Err(); err != nil {
		return nil, err
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.PresetID != nil && *input.PresetID != current.PresetID {
		return nil, apperror.Validation([]string{"preset_id cannot be changed"})
	}

	updated := input.Apply(*current)
	if err := s.forms.Update(ctx, nil, &updated); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, formSettingsNotFound(id)
		}
		return nil, apperror.Database("update form settings", err)
	}

	s.cache.Invalidate(ctx, updated.PresetID)
	s.logger.Info().Int64("form_settings_id", id).Int64("preset_id", updated.PresetID).Msg("form settings updated")
	return &updated, nil
}

func (s *Service) get(ctx context.Context, id int64) (*model.FormSettings, error) {
	settings, err := s.forms.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, formSettingsNotFound(id)
	}
	if err != nil {
		return nil, apperror.Database("get form settings", err)
	}
	return settings, nil
}

func formSettingsNotFound(id int64) *apperror.Error {
	return apperror.NotFound(apperror.CodeFormSettingsNotFound, fmt.Sprintf("フォーム設定(ID: %d)が見つかりません", id))
}
