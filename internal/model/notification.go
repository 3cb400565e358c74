package model

import "time"

// NotificationKind は通知の種類を表します
type NotificationKind string

const (
	// NotificationKindConfirmation は予約完了の通知を表します
	NotificationKindConfirmation NotificationKind = "confirmation"
	// NotificationKindReminder は受け取り前日のリマインドを表します
	NotificationKindReminder NotificationKind = "reminder"
	// NotificationKindCancellation は予約キャンセルの通知を表します
	NotificationKindCancellation NotificationKind = "cancellation"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationKindConfirmation, NotificationKindReminder, NotificationKindCancellation:
		return true
	}
	return false
}

// NotificationLog は送信試行1回分の記録です
// 追記のみで更新はしません
type NotificationLog struct {
	ID            int64            `db:"id" json:"id"`
	Recipient     string           `db:"recipient" json:"recipient"`
	Kind          NotificationKind `db:"kind" json:"kind"`
	ReservationID *string          `db:"reservation_id" json:"reservation_id,omitempty"`
	Attempt       int              `db:"attempt" json:"attempt"`
	Success       bool             `db:"success" json:"success"`
	StatusCode    *int             `db:"status_code" json:"status_code,omitempty"`
	ErrorMessage  string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}
