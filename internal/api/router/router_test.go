package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-pickup/internal/api"
	"github.com/uma-arai/sbcntr-pickup/internal/api/handler"
	m "github.com/uma-arai/sbcntr-pickup/internal/api/middleware"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/service/productimport"
	"github.com/uma-arai/sbcntr-pickup/internal/service/stats"
)

// MockPresetService はプリセット1件分の統合設定をメモリ上に保持します
type MockPresetService struct {
	config model.PresetConfig
}

func (s *MockPresetService) ListPresets(ctx context.Context) ([]model.Preset, error) {
	return []model.Preset{s.config.Preset}, nil
}

func (s *MockPresetService) GetConfig(ctx context.Context, rawID string) (*model.PresetConfig, error) {
	if rawID != "1" {
		return nil, apperror.PresetNotFound(2)
	}
	cfg := s.config
	return &cfg, nil
}

func (s *MockPresetService) UpdateConfig(ctx context.Context, rawID string, input model.UpdatePresetConfigInput) (*model.PresetConfig, error) {
	if input.FormSettings != nil {
		s.config.FormSettings = input.FormSettings.Apply(s.config.FormSettings)
	}
	return s.GetConfig(ctx, rawID)
}

func (s *MockPresetService) DeletePreset(ctx context.Context, rawID string) (*repository.DeleteSummary, error) {
	return &repository.DeleteSummary{FormSettings: 1, PickupWindows: 2, PresetProducts: 3}, nil
}

func (s *MockPresetService) ListPresetProducts(ctx context.Context, rawID string) ([]model.PresetProductDetail, error) {
	return []model.PresetProductDetail{}, nil
}

func (s *MockPresetService) ReplacePresetProducts(ctx context.Context, rawID string, inputs []model.PresetProductInput) ([]model.PresetProductDetail, error) {
	return []model.PresetProductDetail{}, nil
}

func (s *MockPresetService) AddPresetProduct(ctx context.Context, rawID string, input model.PresetProductInput) (*model.PresetProductDetail, error) {
	return &model.PresetProductDetail{}, nil
}

type MockReservationService struct{}

func (MockReservationService) Submit(ctx context.Context, input model.ReservationInput) (*model.ReservationResult, error) {
	return &model.ReservationResult{Reservation: &model.Reservation{ID: "r-1"}}, nil
}

func (MockReservationService) Get(ctx context.Context, rawID string) (*model.Reservation, error) {
	return &model.Reservation{ID: rawID}, nil
}

func (MockReservationService) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (MockReservationService) Cancel(ctx context.Context, token string) (*model.Reservation, error) {
	return nil, apperror.NotFound(apperror.CodeReservationNotFound, "not found")
}

type MockProductImportService struct{}

func (MockProductImportService) Import(ctx context.Context, data []byte, dialect productimport.Dialect) (*model.ImportResult, error) {
	return &model.ImportResult{Imported: 0, Errors: []model.RowIssue{}, Warnings: []model.RowIssue{}}, nil
}

type MockFormSettingsService struct{}

func (MockFormSettingsService) List(ctx context.Context) ([]model.FormSettings, error) {
	return []model.FormSettings{}, nil
}

func (MockFormSettingsService) Get(ctx context.Context, rawID string) (*model.FormSettings, error) {
	return nil, apperror.InvalidID(rawID)
}

func (MockFormSettingsService) Create(ctx context.Context, input model.FormSettingsInput) (*model.FormSettings, error) {
	return &model.FormSettings{ID: 1}, nil
}

func (MockFormSettingsService) Update(ctx context.Context, rawID string, input model.FormSettingsInput) (*model.FormSettings, error) {
	return &model.FormSettings{ID: 1}, nil
}

type MockStatsService struct{}

func (MockStatsService) Get(ctx context.Context) (*stats.Stats, error) {
	return &stats.Stats{Presets: 1}, nil
}

func newTestRouter(t *testing.T, bucket *m.TokenBucket) (http.Handler, *MockPresetService) {
	t.Helper()
	rs := response.New(false)
	presets := &MockPresetService{config: model.PresetConfig{
		Preset:       model.Preset{ID: 1, Name: "秋の焼き菓子", IsActive: true},
		FormSettings: model.DefaultFormSettings(1),
	}}
	server := &api.Server{
		Responder:            rs,
		HealthHandler:        handler.NewHealthHandler(nil, rs),
		PresetHandler:        handler.NewPresetHandler(presets, rs),
		ReservationHandler:   handler.NewReservationHandler(MockReservationService{}, rs),
		ProductImportHandler: handler.NewProductImportHandler(MockProductImportService{}, rs),
		FormSettingsHandler:  handler.NewFormSettingsHandler(MockFormSettingsService{}, rs),
		AdminHandler:         handler.NewAdminHandler(MockStatsService{}, rs),
		WebhookHandler:       handler.NewWebhookHandler("secret", rs),
	}
	return SetupRouter(server, Options{ServiceName: "sbcntr-pickup", RateLimit: bucket}, zerolog.Nop()), presets
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func TestSetupRouter_ルーティング(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "ヘルスチェック", method: http.MethodGet, target: "/api/health", wantStatus: http.StatusOK},
		{name: "プリセット一覧", method: http.MethodGet, target: "/api/presets", wantStatus: http.StatusOK},
		{name: "統合設定の取得", method: http.MethodGet, target: "/api/presets/1/config", wantStatus: http.StatusOK},
		{name: "存在しないプリセット", method: http.MethodGet, target: "/api/presets/2/config", wantStatus: http.StatusNotFound},
		{name: "プリセットの削除", method: http.MethodDelete, target: "/api/presets/1", wantStatus: http.StatusOK},
		{name: "商品の一覧", method: http.MethodGet, target: "/api/presets/1/products", wantStatus: http.StatusOK},
		{name: "商品の置き換え", method: http.MethodPut, target: "/api/presets/1/products", body: `{"products":[]}`, wantStatus: http.StatusOK},
		{name: "商品の追加", method: http.MethodPost, target: "/api/presets/1/products", body: `{"product_id":1}`, wantStatus: http.StatusCreated},
		{name: "予約の登録", method: http.MethodPost, target: "/api/reservations", body: `{"preset_id":1}`, wantStatus: http.StatusCreated},
		{name: "予約の一覧", method: http.MethodGet, target: "/api/reservations", wantStatus: http.StatusOK},
		{name: "予約の取得", method: http.MethodGet, target: "/api/reservations/r-1", wantStatus: http.StatusOK},
		{name: "予約のキャンセル", method: http.MethodPost, target: "/api/reservations/cancel/xxx", wantStatus: http.StatusNotFound},
		{name: "商品の取り込み", method: http.MethodPost, target: "/api/admin/products/import", body: "name,price\n", wantStatus: http.StatusOK},
		{name: "POS商品の取り込み", method: http.MethodPost, target: "/api/admin/products/import-pos", body: "商品名,価格\n", wantStatus: http.StatusOK},
		{name: "フォーム設定の一覧", method: http.MethodGet, target: "/api/admin/form-settings", wantStatus: http.StatusOK},
		{name: "フォーム設定の作成", method: http.MethodPost, target: "/api/admin/form-settings", body: `{"preset_id":1}`, wantStatus: http.StatusCreated},
		{name: "不正なフォーム設定ID", method: http.MethodGet, target: "/api/admin/form-settings/abc", wantStatus: http.StatusBadRequest},
		{name: "フォーム設定の更新", method: http.MethodPut, target: "/api/admin/form-settings/1", body: `{}`, wantStatus: http.StatusOK},
		{name: "集計", method: http.MethodGet, target: "/api/admin/stats", wantStatus: http.StatusOK},
		{name: "署名のないWebhook", method: http.MethodPost, target: "/api/webhook/line", body: `{}`, wantStatus: http.StatusUnauthorized},
		{name: "未定義のパス", method: http.MethodGet, target: "/api/unknown", wantStatus: http.StatusNotFound},
		{name: "未定義のメソッド", method: http.MethodPatch, target: "/api/presets/1/config", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(m.RequestIDHeader))
		})
	}
}

func TestSetupRouter_カスタムメッセージの保存と取得(t *testing.T) {
	h, presets := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPut, "/api/presets/1/config", `{"form_settings":{"custom_message":"X"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "X", presets.config.FormSettings.CustomMessage)

	rec = do(t, h, http.MethodGet, "/api/presets/1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"custom_message":"X"`)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestSetupRouter_レート制限(t *testing.T) {
	bucket := m.NewTokenBucket(1, 0)
	h, _ := newTestRouter(t, bucket)

	rec := do(t, h, http.MethodPost, "/api/reservations", `{"preset_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/reservations", `{"preset_id":1}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), apperror.CodeRateLimited)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// 参照系は制限しない
	rec = do(t, h, http.MethodGet, "/api/reservations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
