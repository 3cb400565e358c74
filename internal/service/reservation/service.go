package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/validation"
)

// ConfigProvider はプリセットの統合設定を返します
type ConfigProvider interface {
	Config(ctx context.Context, presetID int64) (*model.PresetConfig, error)
}

// Notifier は予約に関する通知を1ユーザーに送信します
type Notifier interface {
	Push(ctx context.Context, to string, kind model.NotificationKind, r *model.Reservation) error
}

// LinkBuilder はキャンセル用URLを組み立てます
type LinkBuilder interface {
	CancelURL(cancelToken string) string
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	configs      ConfigProvider
	reservations repository.ReservationRepository
	notifier     Notifier
	links        LinkBuilder
	loc          *time.Location
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() string
}

func NewService(
	configs ConfigProvider,
	reservations repository.ReservationRepository,
	notifier Notifier,
	links LinkBuilder,
	loc *time.Location,
	logger zerolog.Logger,
) *Service {
	return &Service{
		configs:      configs,
		reservations: reservations,
		notifier:     notifier,
		links:        links,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Submit は予約を検証して登録します
// 入力の不備はすべてまとめて返し、金額は統合設定の商品価格から再計算します
func (s *Service) Submit(ctx context.Context, input model.ReservationInput) (_ *model.ReservationResult, err error) {
	ctx, end := tracing.Start(ctx, "ReservationService.Submit")
	defer func() { end(err) }()

	var msgs apperror.Messages
	validation.Struct(&msgs, input)
	if input.PresetID <= 0 {
		return nil, msgs.Err()
	}

	cfg, err := s.configs.Config(ctx, input.PresetID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsAcceptingReservations() {
		return nil, apperror.Inactive(apperror.CodePresetInactive, "このプリセットは現在予約を受け付けていません")
	}

	s.validateAgainstConfig(&msgs, input, cfg)
	lines, total := priceLines(&msgs, input.SelectedProducts, cfg)
	if err := msgs.Err(); err != nil {
		return nil, err
	}

	if input.TotalAmount != nil && *input.TotalAmount != total {
		s.logger.Warn().
			Int64("preset_id", input.PresetID).
			Int64("client_total", *input.TotalAmount).
			Int64("server_total", total).
			Msg("client total differs from catalog price")
	}

	now := s.now()
	r := &model.Reservation{
		ID:               s.newID(),
		PresetID:         input.PresetID,
		UserName:         strings.TrimSpace(input.UserName),
		Furigana:         strings.TrimSpace(input.Furigana),
		PhoneNumber:      strings.TrimSpace(input.PhoneNumber),
		LineUserID:       strings.TrimSpace(input.LineUserID),
		PickupTime:       strings.TrimSpace(input.PickupTime),
		SelectedProducts: lines,
		TotalAmount:      total,
		Status:           model.ReservationStatusConfirmed,
		CancelToken:      s.newID(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if d := strings.TrimSpace(input.PickupDate); d != "" {
		r.PickupDate = &d
	}
	fs := cfg.FormSettings
	if fs.AllowNotes {
		r.Note = strings.TrimSpace(input.Note)
	}
	if fs.EnableGender {
		r.Gender = strings.TrimSpace(input.Gender)
	}
	if fs.EnableBirthday {
		r.Birthday = strings.TrimSpace(input.Birthday)
	}
	if fs.EnableAddress {
		r.Address = strings.TrimSpace(input.Address)
	}

	if err := s.reservations.Create(ctx, r); err != nil {
		return nil, apperror.Database("create reservation", err)
	}

	s.logger.Info().
		Str("reservation_id", r.ID).
		Int64("preset_id", r.PresetID).
		Int64("total_amount", r.TotalAmount).
		Int("lines", len(r.SelectedProducts)).
		Msg("reservation created")

	s.notify(ctx, model.NotificationKindConfirmation, r)

	return &model.ReservationResult{
		Reservation: r,
		CancelURL:   s.links.CancelURL(r.CancelToken),
	}, nil
}

// Get はIDを指定して予約を返します
func (s *Service) Get(ctx context.Context, rawID string) (*model.Reservation, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, apperror.InvalidID(rawID)
	}

	r, err := s.reservations.GetByID(ctx, id.String())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reservationNotFound()
	}
	if err != nil {
		return nil, apperror.Database("get reservation", err)
	}
	return r, nil
}

// List は条件に一致する予約を返します
func (s *Service) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	var msgs apperror.Messages
	switch filter.Status {
	case "", model.ReservationStatusPending, model.ReservationStatusConfirmed, model.ReservationStatusCancelled:
	default:
		msgs.Add("status must be one of pending, confirmed, cancelled")
	}
	if filter.PickupDate != "" {
		if _, err := time.Parse(time.DateOnly, filter.PickupDate); err != nil {
			msgs.Add("pickup_date must be YYYY-MM-DD")
		}
	}
	if filter.Limit < 0 || filter.Limit > maxListLimit {
		msgs.Add("limit must be between 1 and %d", maxListLimit)
	}
	if filter.Offset < 0 {
		msgs.Add("offset must be >= 0")
	}
	if err := msgs.Err(); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}

	reservations, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, apperror.Database("list reservations", err)
	}
	return reservations, nil
}

// Cancel はキャンセルトークンで予約を取り消します
func (s *Service) Cancel(ctx context.Context, token string) (_ *model.Reservation, err error) {
	ctx, end := tracing.Start(ctx, "ReservationService.Cancel")
	defer func() { end(err) }()

	if _, err := uuid.Parse(strings.TrimSpace(token)); err != nil {
		return nil, reservationNotFound()
	}

	r, err := s.reservations.GetByCancelToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reservationNotFound()
	}
	if err != nil {
		return nil, apperror.Database("get reservation by cancel token", err)
	}
	if r.Status == model.ReservationStatusCancelled {
		return nil, alreadyCancelled()
	}

	err = s.reservations.UpdateStatus(ctx, nil, r.ID, r.Status, model.ReservationStatusCancelled)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, alreadyCancelled()
	}
	if err != nil {
		return nil, apperror.Database("cancel reservation", err)
	}
	r.Status = model.ReservationStatusCancelled
	r.UpdatedAt = s.now()

	s.logger.Info().Str("reservation_id", r.ID).Msg("reservation cancelled")
	s.notify(ctx, model.NotificationKindCancellation, r)
	return r, nil
}

// notify は通知を送信します。失敗しても予約の処理結果には影響させません
func (s *Service) notify(ctx context.Context, kind model.NotificationKind, r *model.Reservation) {
	if s.notifier == nil || r.LineUserID == "" {
		return
	}
	if err := s.notifier.Push(ctx, r.LineUserID, kind, r); err != nil {
		s.logger.Error().
			Err(err).
			Str("reservation_id", r.ID).
			Str("kind", string(kind)).
			Msg("failed to send reservation notification")
	}
}

func (s *Service) validateAgainstConfig(msgs *apperror.Messages, input model.ReservationInput, cfg *model.PresetConfig) {
	fs := cfg.FormSettings
	if fs.RequirePhone && strings.TrimSpace(input.PhoneNumber) == "" {
		msgs.Add("phone_number is required")
	}
	if fs.RequireFurigana && strings.TrimSpace(input.Furigana) == "" {
		msgs.Add("furigana is required")
	}

	if d := strings.TrimSpace(input.PickupDate); d != "" {
		date, err := time.ParseInLocation(time.DateOnly, d, s.loc)
		today := s.now().In(s.loc).Format(time.DateOnly)
		if err == nil && date.Format(time.DateOnly) < today {
			msgs.Add("pickup_date must not be in the past")
		}
	}
	if t := strings.TrimSpace(input.PickupTime); t != "" && !matchesSlot(t, cfg.PickupSlots) {
		msgs.Add("pickup_time %q is not available", t)
	}
}

// priceLines は統合設定の商品価格で各行の金額と合計を計算します
func priceLines(msgs *apperror.Messages, inputs []model.SelectedProductInput, cfg *model.PresetConfig) (model.SelectedProducts, int64) {
	lines := make(model.SelectedProducts, 0, len(inputs))
	for i, in := range inputs {
		if in.ProductID <= 0 || in.Quantity < 1 || in.Quantity > model.MaxQuantity {
			continue
		}
		product, ok := cfg.FindProduct(in.ProductID)
		if !ok {
			msgs.Add("selected_products[%d].product_id %d is not available in this preset", i, in.ProductID)
			continue
		}
		lineTotal, ok := model.LineTotal(product.Price, in.Quantity)
		if !ok {
			msgs.Add("selected_products[%d].total_price is too large", i)
			continue
		}
		lines = append(lines, model.SelectedProduct{
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   in.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: lineTotal,
		})
	}
	total, ok := lines.Total()
	if !ok {
		msgs.Add("total_amount is too large")
	}
	return lines, total
}

// matchesSlot は "10:00-12:00" 形式または開始時刻のみの指定を受け付けます
func matchesSlot(value string, slots []model.PickupSlot) bool {
	for _, slot := range slots {
		if value == slot.Start || value == slot.Start+"-"+slot.End {
			return true
		}
	}
	return false
}

func reservationNotFound() *apperror.Error {
	return apperror.NotFound(apperror.CodeReservationNotFound, "予約が見つかりません")
}

func alreadyCancelled() *apperror.Error {
	return apperror.Conflict(apperror.CodeAlreadyCancelled, "この予約は既にキャンセルされています", nil)
}
