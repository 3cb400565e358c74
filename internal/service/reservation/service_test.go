package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/service/notification"
)

// MockConfigProvider はプリセットIDごとの統合設定を返します
type MockConfigProvider struct {
	configs map[int64]*model.PresetConfig
}

func (m *MockConfigProvider) Config(ctx context.Context, presetID int64) (*model.PresetConfig, error) {
	cfg, ok := m.configs[presetID]
	if !ok {
		return nil, apperror.PresetNotFound(presetID)
	}
	return cfg, nil
}

// MockReservationRepository は予約をメモリ上に保持します
type MockReservationRepository struct {
	reservations map[string]*model.Reservation
	createErr    error
	updateErr    error
	lastFilter   model.ReservationFilter
}

func (m *MockReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.reservations == nil {
		m.reservations = map[string]*model.Reservation{}
	}
	stored := *r
	m.reservations[r.ID] = &stored
	return nil
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *MockReservationRepository) GetByCancelToken(ctx context.Context, token string) (*model.Reservation, error) {
	for _, r := range m.reservations {
		if r.CancelToken == token {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockReservationRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, from, to model.ReservationStatus) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return repository.ErrStatusConflict
	}
	r.Status = to
	return nil
}

func (m *MockReservationRepository) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	m.lastFilter = filter
	list := []model.Reservation{}
	for _, r := range m.reservations {
		list = append(list, *r)
	}
	return list, nil
}

func (m *MockReservationRepository) CountByStatus(ctx context.Context) (map[model.ReservationStatus]int64, error) {
	return nil, nil
}

type pushed struct {
	to   string
	kind model.NotificationKind
}

// MockNotifier は送信内容を記録します
type MockNotifier struct {
	sent []pushed
	err  error
}

func (m *MockNotifier) Push(ctx context.Context, to string, kind model.NotificationKind, r *model.Reservation) error {
	m.sent = append(m.sent, pushed{to: to, kind: kind})
	return m.err
}

var jst = time.FixedZone("Asia/Tokyo", 9*60*60)

func testConfig(presetID int64) *model.PresetConfig {
	return &model.PresetConfig{
		Preset:       model.Preset{ID: presetID, Name: "お弁当予約", IsActive: true},
		FormSettings: model.DefaultFormSettings(presetID),
		Products: []model.ConfigProduct{
			{ID: 10, Name: "おにぎり", Price: 200},
			{ID: 11, Name: "唐揚げ弁当", Price: 650},
		},
		PickupSlots: model.DefaultPickupSlots,
	}
}

type testEnv struct {
	configs      *MockConfigProvider
	reservations *MockReservationRepository
	notifier     *MockNotifier
	service      *Service
}

func newTestEnv() *testEnv {
	inactive := testConfig(2)
	inactive.Preset.IsActive = false
	disabled := testConfig(3)
	disabled.FormSettings.IsEnabled = false
	noFurigana := testConfig(4)
	noFurigana.FormSettings.RequireFurigana = false
	noFurigana.FormSettings.RequirePhone = false
	expensive := testConfig(5)
	expensive.Products = append(expensive.Products, model.ConfigProduct{ID: 12, Name: "特注オードブル", Price: math.MaxInt64 / 2})

	env := &testEnv{
		configs: &MockConfigProvider{configs: map[int64]*model.PresetConfig{
			1: testConfig(1),
			2: inactive,
			3: disabled,
			4: noFurigana,
			5: expensive,
		}},
		reservations: &MockReservationRepository{},
		notifier:     &MockNotifier{},
	}
	env.service = NewService(
		env.configs,
		env.reservations,
		env.notifier,
		notification.NewTemplater("https://pickup.example.com"),
		jst,
		zerolog.Nop(),
	)
	env.service.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, jst) }
	seq := 0
	env.service.newID = func() string {
		seq++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
	}
	return env
}

func int64Ptr(v int64) *int64 { return &v }

func validInput() model.ReservationInput {
	return model.ReservationInput{
		PresetID:    1,
		UserName:    "山田 太郎",
		Furigana:    "ヤマダ タロウ",
		PhoneNumber: "090-1234-5678",
		LineUserID:  "U1234",
		PickupDate:  "2026-10-17",
		PickupTime:  "12:00-14:00",
		SelectedProducts: []model.SelectedProductInput{
			{ProductID: 10, Name: "おにぎり", Quantity: 3, UnitPrice: int64Ptr(200), TotalPrice: int64Ptr(600)},
		},
		TotalAmount: int64Ptr(600),
	}
}

func TestService_Submit_正常系(t *testing.T) {
	env := newTestEnv()

	result, err := env.service.Submit(context.Background(), validInput())
	require.NoError(t, err)

	r := result.Reservation
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", r.ID)
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", r.CancelToken)
	assert.Equal(t, model.ReservationStatusConfirmed, r.Status)
	assert.Equal(t, int64(600), r.TotalAmount)
	require.Len(t, r.SelectedProducts, 1)
	assert.Equal(t, model.SelectedProduct{ProductID: 10, Name: "おにぎり", Quantity: 3, UnitPrice: 200, TotalPrice: 600}, r.SelectedProducts[0])
	require.NotNil(t, r.PickupDate)
	assert.Equal(t, "2026-10-17", *r.PickupDate)
	assert.Equal(t, "https://pickup.example.com/reservations/cancel/"+r.CancelToken, result.CancelURL)

	assert.Contains(t, env.reservations.reservations, r.ID)
	assert.Equal(t, []pushed{{to: "U1234", kind: model.NotificationKindConfirmation}}, env.notifier.sent)
}

func TestService_Submit_金額はサーバ側で計算する(t *testing.T) {
	env := newTestEnv()

	input := validInput()
	input.SelectedProducts = []model.SelectedProductInput{
		{ProductID: 10, Name: "おにぎり", Quantity: 3, UnitPrice: int64Ptr(1), TotalPrice: int64Ptr(3)},
		{ProductID: 11, Name: "唐揚げ弁当", Quantity: 2},
	}
	input.TotalAmount = int64Ptr(3)

	result, err := env.service.Submit(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, int64(600+1300), result.Reservation.TotalAmount)
	assert.Equal(t, int64(200), result.Reservation.SelectedProducts[0].UnitPrice)
	assert.Equal(t, int64(1300), result.Reservation.SelectedProducts[1].TotalPrice)
}

func TestService_Submit_バリデーションエラーをまとめて返す(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(in *model.ReservationInput)
		wantDetail []string
	}{
		{
			name: "名前と商品がなく合計が負",
			modify: func(in *model.ReservationInput) {
				in.UserName = " "
				in.SelectedProducts = nil
				in.TotalAmount = int64Ptr(-1)
			},
			wantDetail: []string{
				"user_name is required",
				"total_amount must be >= 0",
				"selected_products is required",
			},
		},
		{
			name: "商品が空配列",
			modify: func(in *model.ReservationInput) {
				in.SelectedProducts = []model.SelectedProductInput{}
			},
			wantDetail: []string{
				"selected_products must contain at least 1 item(s)",
			},
		},
		{
			name: "数量が上限を超える",
			modify: func(in *model.ReservationInput) {
				in.SelectedProducts[0].Quantity = 46116860184273880
			},
			wantDetail: []string{
				"selected_products[0].quantity must be <= 999",
			},
		},
		{
			name: "小計がint64を超える",
			modify: func(in *model.ReservationInput) {
				in.PresetID = 5
				in.SelectedProducts = []model.SelectedProductInput{
					{ProductID: 12, Name: "特注オードブル", Quantity: 3},
				}
			},
			wantDetail: []string{
				"selected_products[0].total_price is too large",
			},
		},
		{
			name: "合計がint64を超える",
			modify: func(in *model.ReservationInput) {
				in.PresetID = 5
				in.SelectedProducts = []model.SelectedProductInput{
					{ProductID: 12, Name: "特注オードブル", Quantity: 2},
					{ProductID: 12, Name: "特注オードブル", Quantity: 1},
				}
			},
			wantDetail: []string{
				"total_amount is too large",
			},
		},
		{
			name: "文字数の上限",
			modify: func(in *model.ReservationInput) {
				in.UserName = strings.Repeat("あ", 101)
				in.Note = strings.Repeat("a", 1001)
				in.PickupDate = "2026/10/17"
			},
			wantDetail: []string{
				"user_name must be at most 100 characters",
				"note must be at most 1000 characters",
				"pickup_date must be in YYYY-MM-DD format",
			},
		},
		{
			name: "商品行の不備",
			modify: func(in *model.ReservationInput) {
				in.SelectedProducts = []model.SelectedProductInput{
					{ProductID: 0, Name: "", Quantity: 0, UnitPrice: int64Ptr(-1), TotalPrice: int64Ptr(-1)},
				}
			},
			wantDetail: []string{
				"selected_products[0].product_id must be a positive integer",
				"selected_products[0].name is required",
				"selected_products[0].quantity must be >= 1",
				"selected_products[0].unit_price must be >= 0",
				"selected_products[0].total_price must be >= 0",
			},
		},
		{
			name: "フォーム設定で必須の項目",
			modify: func(in *model.ReservationInput) {
				in.PhoneNumber = ""
				in.Furigana = ""
			},
			wantDetail: []string{
				"phone_number is required",
				"furigana is required",
			},
		},
		{
			name: "プリセットにない商品",
			modify: func(in *model.ReservationInput) {
				in.SelectedProducts[0].ProductID = 99
			},
			wantDetail: []string{
				"selected_products[0].product_id 99 is not available in this preset",
			},
		},
		{
			name: "受け取り日時",
			modify: func(in *model.ReservationInput) {
				in.PickupDate = "2026-10-15"
				in.PickupTime = "09:00"
			},
			wantDetail: []string{
				"pickup_date must not be in the past",
				`pickup_time "09:00" is not available`,
			},
		},
		{
			name: "電話番号の形式",
			modify: func(in *model.ReservationInput) {
				in.PhoneNumber = "abc"
			},
			wantDetail: []string{
				"phone_number is invalid",
			},
		},
		{
			name: "プリセットIDが不正",
			modify: func(in *model.ReservationInput) {
				in.PresetID = 0
				in.UserName = ""
			},
			wantDetail: []string{
				"user_name is required",
				"preset_id must be a positive integer",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			input := validInput()
			tt.modify(&input)

			result, err := env.service.Submit(context.Background(), input)
			require.Error(t, err)
			assert.Nil(t, result)

			appErr := apperror.As(err)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.ElementsMatch(t, tt.wantDetail, appErr.Details)
			assert.Empty(t, env.reservations.reservations)
			assert.Empty(t, env.notifier.sent)
		})
	}
}

func TestService_Submit_プリセットの状態(t *testing.T) {
	tests := []struct {
		name     string
		presetID int64
		wantKind apperror.Kind
		wantCode string
	}{
		{name: "存在しない", presetID: 404, wantKind: apperror.KindNotFound, wantCode: apperror.CodePresetNotFound},
		{name: "無効なプリセット", presetID: 2, wantKind: apperror.KindInactive, wantCode: apperror.CodePresetInactive},
		{name: "フォームが無効", presetID: 3, wantKind: apperror.KindInactive, wantCode: apperror.CodePresetInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			input := validInput()
			input.PresetID = tt.presetID

			_, err := env.service.Submit(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			assert.Equal(t, tt.wantCode, apperror.As(err).Code)
		})
	}
}

func TestService_Submit_フォーム設定で無効な項目は保存しない(t *testing.T) {
	env := newTestEnv()
	input := validInput()
	input.PresetID = 4
	input.Furigana = ""
	input.PhoneNumber = ""
	input.Gender = "male"
	input.Note = "温めてください"

	result, err := env.service.Submit(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, result.Reservation.Gender)
	assert.Equal(t, "温めてください", result.Reservation.Note)
}

func TestService_Submit_通知の失敗は予約を失敗させない(t *testing.T) {
	env := newTestEnv()
	env.notifier.err = apperror.ExternalService("line push", errors.New("503"))

	result, err := env.service.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Contains(t, env.reservations.reservations, result.Reservation.ID)
	assert.Len(t, env.notifier.sent, 1)
}

func TestService_Submit_LINEユーザーがいない場合は通知しない(t *testing.T) {
	env := newTestEnv()
	input := validInput()
	input.LineUserID = ""

	_, err := env.service.Submit(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, env.notifier.sent)
}

func TestService_Submit_保存失敗(t *testing.T) {
	env := newTestEnv()
	env.reservations.createErr = errors.New("connection reset")

	_, err := env.service.Submit(context.Background(), validInput())
	assert.Equal(t, apperror.KindDatabase, apperror.KindOf(err))
	assert.Empty(t, env.notifier.sent)
}

func TestService_Get(t *testing.T) {
	env := newTestEnv()
	result, err := env.service.Submit(context.Background(), validInput())
	require.NoError(t, err)

	got, err := env.service.Get(context.Background(), result.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Reservation.ID, got.ID)

	_, err = env.service.Get(context.Background(), "not-a-uuid")
	assert.Equal(t, apperror.CodeInvalidID, apperror.As(err).Code)

	_, err = env.service.Get(context.Background(), "6f1c2f0e-1111-4222-8333-444455556666")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, apperror.CodeReservationNotFound, apperror.As(err).Code)
}

func TestService_Cancel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	result, err := env.service.Submit(ctx, validInput())
	require.NoError(t, err)
	token := result.Reservation.CancelToken

	cancelled, err := env.service.Cancel(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, model.ReservationStatusCancelled, env.reservations.reservations[cancelled.ID].Status)
	assert.Equal(t, model.NotificationKindCancellation, env.notifier.sent[len(env.notifier.sent)-1].kind)

	_, err = env.service.Cancel(ctx, token)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.Equal(t, apperror.CodeAlreadyCancelled, apperror.As(err).Code)

	_, err = env.service.Cancel(ctx, "6f1c2f0e-1111-4222-8333-444455556666")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = env.service.Cancel(ctx, "../../etc/passwd")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestService_Cancel_同時キャンセル(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	result, err := env.service.Submit(ctx, validInput())
	require.NoError(t, err)

	env.reservations.updateErr = repository.ErrStatusConflict
	_, err = env.service.Cancel(ctx, result.Reservation.CancelToken)
	assert.Equal(t, apperror.CodeAlreadyCancelled, apperror.As(err).Code)

	env.reservations.updateErr = errors.New("timeout")
	_, err = env.service.Cancel(ctx, result.Reservation.CancelToken)
	assert.Equal(t, apperror.KindDatabase, apperror.KindOf(err))
}

func TestService_List(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.service.List(ctx, model.ReservationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 50, env.reservations.lastFilter.Limit)

	tests := []struct {
		name   string
		filter model.ReservationFilter
	}{
		{name: "不正な状態", filter: model.ReservationFilter{Status: "done"}},
		{name: "不正な日付", filter: model.ReservationFilter{PickupDate: "10/17"}},
		{name: "件数の上限超過", filter: model.ReservationFilter{Limit: 1000}},
		{name: "負のオフセット", filter: model.ReservationFilter{Offset: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.List(ctx, tt.filter)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}
