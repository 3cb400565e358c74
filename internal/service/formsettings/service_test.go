package formsettings

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/cache"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
)

type MockPresetRepository struct {
	ids map[int64]bool
}

func (m *MockPresetRepository) Get(ctx context.Context, id int64) (*model.Preset, error) {
	if !m.ids[id] {
		return nil, repository.ErrNotFound
	}
	return &model.Preset{ID: id, IsActive: true}, nil
}

func (m *MockPresetRepository) List(ctx context.Context) ([]model.Preset, error) { return nil, nil }

func (m *MockPresetRepository) Count(ctx context.Context) (int64, error) { return int64(len(m.ids)), nil }

func (m *MockPresetRepository) DeleteCascade(ctx context.Context, id int64) (*repository.DeleteSummary, error) {
	return nil, errors.New("not implemented")
}

// MockFormSettingsRepository はID順にフォーム設定を保持します
type MockFormSettingsRepository struct {
	rows    []model.FormSettings
	listErr error
}

func (m *MockFormSettingsRepository) GetByPresetID(ctx context.Context, presetID int64) (*model.FormSettings, error) {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].PresetID == presetID {
			fs := m.rows[i]
			return &fs, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockFormSettingsRepository) GetByID(ctx context.Context, id int64) (*model.FormSettings, error) {
	for _, fs := range m.rows {
		if fs.ID == id {
			return &fs, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockFormSettingsRepository) List(ctx context.Context) ([]model.FormSettings, error) {
	return m.rows, m.listErr
}

func (m *MockFormSettingsRepository) Create(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error {
	settings.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *settings)
	return nil
}

func (m *MockFormSettingsRepository) Update(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error {
	for i, fs := range m.rows {
		if fs.ID == settings.ID {
			m.rows[i] = *settings
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockFormSettingsRepository) UpsertByPresetID(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error {
	return errors.New("not implemented")
}

type MockConfigCache struct {
	cache.NoopConfigCache
	invalidated []int64
}

func (m *MockConfigCache) Invalidate(ctx context.Context, presetID int64) {
	m.invalidated = append(m.invalidated, presetID)
}

func newTestService() (*Service, *MockFormSettingsRepository, *MockConfigCache) {
	forms := &MockFormSettingsRepository{}
	c := &MockConfigCache{}
	s := NewService(&MockPresetRepository{ids: map[int64]bool{1: true, 2: true}}, forms, c, zerolog.Nop())
	return s, forms, c
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func TestService_Create(t *testing.T) {
	s, forms, c := newTestService()

	created, err := s.Create(context.Background(), model.FormSettingsInput{
		PresetID:     int64Ptr(1),
		RequirePhone: boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, int64(1), created.PresetID)
	assert.False(t, created.RequirePhone)
	assert.True(t, created.IsEnabled)
	assert.Len(t, forms.rows, 1)
	assert.Equal(t, []int64{1}, c.invalidated)
}

func TestService_Create_エラー(t *testing.T) {
	long := string(make([]rune, model.MaxCustomMessageLength+1))

	tests := []struct {
		name     string
		input    model.FormSettingsInput
		wantKind apperror.Kind
		wantLen  int
	}{
		{name: "プリセットID未指定", input: model.FormSettingsInput{}, wantKind: apperror.KindValidation, wantLen: 1},
		{name: "複数の不備", input: model.FormSettingsInput{PresetID: int64Ptr(-1), CustomMessage: &long}, wantKind: apperror.KindValidation, wantLen: 2},
		{name: "プリセットIDが0", input: model.FormSettingsInput{PresetID: int64Ptr(0)}, wantKind: apperror.KindValidation, wantLen: 1},
		{name: "存在しないプリセット", input: model.FormSettingsInput{PresetID: int64Ptr(9)}, wantKind: apperror.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, forms, _ := newTestService()

			_, err := s.Create(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			if tt.wantLen > 0 {
				assert.Len(t, apperror.As(err).Details, tt.wantLen)
			}
			assert.Empty(t, forms.rows)
		})
	}
}

func TestService_GetとUpdate(t *testing.T) {
	s, _, c := newTestService()
	ctx := context.Background()

	created, err := s.Create(ctx, model.FormSettingsInput{PresetID: int64Ptr(2)})
	require.NoError(t, err)

	msg := "前日までにご予約ください"
	updated, err := s.Update(ctx, "1", model.FormSettingsInput{CustomMessage: &msg, IsEnabled: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, msg, updated.CustomMessage)
	assert.False(t, updated.IsEnabled)
	assert.Equal(t, created.ShowPrice, updated.ShowPrice)
	assert.Equal(t, []int64{2, 2}, c.invalidated)

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, msg, got.CustomMessage)

	_, err = s.Update(ctx, "1", model.FormSettingsInput{PresetID: int64Ptr(1)})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = s.Get(ctx, "2")
	assert.Equal(t, apperror.CodeFormSettingsNotFound, apperror.As(err).Code)

	_, err = s.Update(ctx, "5", model.FormSettingsInput{CustomMessage: &msg})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = s.Get(ctx, "abc")
	assert.Equal(t, apperror.CodeInvalidID, apperror.As(err).Code)
}

func TestService_List(t *testing.T) {
	s, forms, _ := newTestService()

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	forms.listErr = errors.New("connection refused")
	_, err = s.List(context.Background())
	assert.Equal(t, apperror.KindDatabase, apperror.KindOf(err))
}
