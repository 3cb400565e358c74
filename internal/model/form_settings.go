package model

import (
	"time"
)

// FormSettings はプリセットごとのフォーム設定です
type FormSettings struct {
	ID              int64     `db:"id" json:"id"`
	PresetID        int64     `db:"preset_id" json:"preset_id"`
	ShowPrice       bool      `db:"show_price" json:"show_price"`
	RequirePhone    bool      `db:"require_phone" json:"require_phone"`
	RequireFurigana bool      `db:"require_furigana" json:"require_furigana"`
	AllowNotes      bool      `db:"allow_notes" json:"allow_notes"`
	IsEnabled       bool      `db:"is_enabled" json:"is_enabled"`
	EnableGender    bool      `db:"enable_gender" json:"enable_gender"`
	EnableBirthday  bool      `db:"enable_birthday" json:"enable_birthday"`
	EnableAddress   bool      `db:"enable_address" json:"enable_address"`
	CustomMessage   string    `db:"custom_message" json:"custom_message"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultFormSettings はフォーム設定が存在しないプリセットに使う既定値です
// 既定値はここだけで定義します
func DefaultFormSettings(presetID int64) FormSettings {
	return FormSettings{
		PresetID:        presetID,
		ShowPrice:       true,
		RequirePhone:    true,
		RequireFurigana: true,
		AllowNotes:      true,
		IsEnabled:       true,
		EnableGender:    false,
		EnableBirthday:  false,
		EnableAddress:   false,
		CustomMessage:   "",
	}
}

// FormSettingsInput はフォーム設定の部分更新です
type FormSettingsInput struct {
	PresetID        *int64  `json:"preset_id" validate:"omitempty,gt=0"`
	ShowPrice       *bool   `json:"show_price"`
	RequirePhone    *bool   `json:"require_phone"`
	RequireFurigana *bool   `json:"require_furigana"`
	AllowNotes      *bool   `json:"allow_notes"`
	IsEnabled       *bool   `json:"is_enabled"`
	EnableGender    *bool   `json:"enable_gender"`
	EnableBirthday  *bool   `json:"enable_birthday"`
	EnableAddress   *bool   `json:"enable_address"`
	CustomMessage   *string `json:"custom_message" validate:"omitempty,max=1000"`
}

// MaxCustomMessageLength はカスタムメッセージの最大文字数です
// FormSettingsInputのvalidateタグと揃えます
const MaxCustomMessageLength = 1000

// Apply は指定されたフィールドだけを上書きした設定を返します
func (in FormSettingsInput) Apply(base FormSettings) FormSettings {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.ShowPrice, in.ShowPrice)
	set(&base.RequirePhone, in.RequirePhone)
	set(&base.RequireFurigana, in.RequireFurigana)
	set(&base.AllowNotes, in.AllowNotes)
	set(&base.IsEnabled, in.IsEnabled)
	set(&base.EnableGender, in.EnableGender)
	set(&base.EnableBirthday, in.EnableBirthday)
	set(&base.EnableAddress, in.EnableAddress)
	if in.CustomMessage != nil {
		base.CustomMessage = *in.CustomMessage
	}
	return base
}
