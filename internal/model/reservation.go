package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// MaxQuantity は1行あたりに指定できる数量の上限です
// SelectedProductInputのvalidateタグと揃えます
const MaxQuantity = 999

// ReservationStatus は予約の状態です
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID               string            `db:"id" json:"id"`
	PresetID         int64             `db:"preset_id" json:"preset_id"`
	UserName         string            `db:"user_name" json:"user_name"`
	Furigana         string            `db:"furigana" json:"furigana"`
	PhoneNumber      string            `db:"phone_number" json:"phone_number"`
	Gender           string            `db:"gender" json:"gender,omitempty"`
	Birthday         string            `db:"birthday" json:"birthday,omitempty"`
	Address          string            `db:"address" json:"address,omitempty"`
	Note             string            `db:"note" json:"note,omitempty"`
	LineUserID       string            `db:"line_user_id" json:"line_user_id,omitempty"`
	PickupDate       *string           `db:"pickup_date" json:"pickup_date,omitempty"` // YYYY-MM-DD
	PickupTime       string            `db:"pickup_time" json:"pickup_time,omitempty"`
	SelectedProducts SelectedProducts  `db:"selected_products" json:"selected_products"`
	TotalAmount      int64             `db:"total_amount" json:"total_amount"`
	Status           ReservationStatus `db:"status" json:"status"` // pending, confirmed, cancelled
	CancelToken      string            `db:"cancel_token" json:"-"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// SelectedProduct は予約に含まれる商品1行分です
type SelectedProduct struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

// SelectedProducts はJSONBカラムとして保存されます
type SelectedProducts []SelectedProduct

func (s SelectedProducts) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *SelectedProducts) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = SelectedProducts{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unexpected type for selected_products: %T", src)
	}
	return json.Unmarshal(data, s)
}

// Total は各行の小計の合計を返します
// 合計がint64を超える場合はfalseを返します
func (s SelectedProducts) Total() (int64, bool) {
	var total int64
	for _, p := range s {
		if p.TotalPrice < 0 || p.TotalPrice > math.MaxInt64-total {
			return 0, false
		}
		total += p.TotalPrice
	}
	return total, true
}

// LineTotal は単価と数量から小計を計算します
// 負の値やint64を超える結果はfalseを返します
func LineTotal(unitPrice int64, quantity int) (int64, bool) {
	if unitPrice < 0 || quantity < 0 {
		return 0, false
	}
	if quantity > 0 && unitPrice > math.MaxInt64/int64(quantity) {
		return 0, false
	}
	return unitPrice * int64(quantity), true
}

// ReservationInput は予約フォームから送信される内容です
type ReservationInput struct {
	PresetID         int64                  `json:"preset_id" validate:"gt=0"`
	UserName         string                 `json:"user_name" validate:"notblank,max=100"`
	Furigana         string                 `json:"furigana" validate:"max=100"`
	PhoneNumber      string                 `json:"phone_number" validate:"omitempty,phone"`
	Gender           string                 `json:"gender" validate:"max=20"`
	Birthday         string                 `json:"birthday" validate:"max=20"`
	Address          string                 `json:"address" validate:"max=255"`
	Note             string                 `json:"note" validate:"max=1000"`
	LineUserID       string                 `json:"line_user_id" validate:"max=64"`
	PickupDate       string                 `json:"pickup_date" validate:"omitempty,datetime=2006-01-02"`
	PickupTime       string                 `json:"pickup_time" validate:"max=20"`
	SelectedProducts []SelectedProductInput `json:"selected_products" validate:"required,min=1,dive"`
	TotalAmount      *int64                 `json:"total_amount" validate:"omitempty,gte=0"`
}

// SelectedProductInput は送信された商品1行分です
// 金額はサーバ側で再計算します
type SelectedProductInput struct {
	ProductID  int64  `json:"product_id" validate:"gt=0"`
	Name       string `json:"name" validate:"notblank,max=255"`
	Quantity   int    `json:"quantity" validate:"min=1,max=999"`
	UnitPrice  *int64 `json:"unit_price" validate:"omitempty,gte=0"`
	TotalPrice *int64 `json:"total_price" validate:"omitempty,gte=0"`
}

// ReservationResult は予約登録のレスポンスです
type ReservationResult struct {
	Reservation *Reservation `json:"reservation"`
	CancelURL   string       `json:"cancel_url"`
}

// ReservationFilter は予約一覧の絞り込み条件です
type ReservationFilter struct {
	PresetID   *int64
	Status     ReservationStatus
	PickupDate string
	Limit      int
	Offset     int
}

// ReminderEvent はリマインド送信結果をStep Functionsへ返すための構造体です
type ReminderEvent struct {
	PickupDate string `json:"pickup_date"`
	Targets    int    `json:"targets"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}
