package model

import (
	"strconv"
	"strings"
	"time"
)

// Preset は注文ページ1つ分の設定のまとまりです
type Preset struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PresetConfig はプリセットの統合設定です
// フォーム画面はこの1オブジェクトだけで描画できます
type PresetConfig struct {
	Preset        Preset          `json:"preset"`
	FormSettings  FormSettings    `json:"form_settings"`
	Products      []ConfigProduct `json:"products"`
	PickupWindows []PickupWindow  `json:"pickup_windows"`
	PickupSlots   []PickupSlot    `json:"pickup_slots"`
}

// IsAcceptingReservations はこのプリセットで予約を受け付けられるかを返します
func (c *PresetConfig) IsAcceptingReservations() bool {
	return c.Preset.IsActive && c.FormSettings.IsEnabled
}

// FindProduct は有効なカタログから商品を探します
func (c *PresetConfig) FindProduct(productID int64) (ConfigProduct, bool) {
	for _, p := range c.Products {
		if p.ID == productID {
			return p, true
		}
	}
	return ConfigProduct{}, false
}

// UpdatePresetConfigInput は統合設定の更新内容です
// nilのフィールドは変更しません
type UpdatePresetConfigInput struct {
	FormSettings *FormSettingsInput   `json:"form_settings"`
	Products     []PresetProductInput `json:"products" validate:"dive"`
}

// ParseID はパスパラメータなどの文字列を正の整数IDとして解釈します
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
