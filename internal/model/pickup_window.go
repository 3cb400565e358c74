package model

import (
	"sort"
	"time"
)

// PickupWindow は受け取り可能な時間帯です
// ProductIDがnilの場合はプリセット全体に適用されます
type PickupWindow struct {
	ID        int64     `db:"id" json:"id"`
	PresetID  int64     `db:"preset_id" json:"preset_id"`
	ProductID *int64    `db:"product_id" json:"product_id,omitempty"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Price     *int64    `db:"price" json:"price,omitempty"`
	Comment   string    `db:"comment" json:"comment"`
}

// PickupSlot は受け取り時間の選択肢です
type PickupSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DefaultPickupSlots は受け取り時間帯が登録されていない場合の選択肢です
var DefaultPickupSlots = []PickupSlot{
	{Start: "10:00", End: "12:00"},
	{Start: "12:00", End: "14:00"},
	{Start: "14:00", End: "16:00"},
	{Start: "16:00", End: "18:00"},
}

// PickupSlotsFor は受け取り時間帯から選択肢を作成します
// 時間帯がない場合は既定の選択肢を返します
func PickupSlotsFor(windows []PickupWindow, loc *time.Location) []PickupSlot {
	if len(windows) == 0 {
		return append([]PickupSlot(nil), DefaultPickupSlots...)
	}

	seen := make(map[PickupSlot]struct{}, len(windows))
	slots := make([]PickupSlot, 0, len(windows))
	for _, w := range windows {
		slot := PickupSlot{
			Start: w.StartAt.In(loc).Format("15:04"),
			End:   w.EndAt.In(loc).Format("15:04"),
		}
		if _, ok := seen[slot]; ok {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].End < slots[j].End
	})
	return slots
}
