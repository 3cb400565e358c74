package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

// NotificationLogRepository は通知送信履歴の永続化を担当するインターフェースです
type NotificationLogRepository interface {
	Append(ctx context.Context, entry *model.NotificationLog) error
	ListByReservationID(ctx context.Context, reservationID string) ([]model.NotificationLog, error)
}

// NotificationLogRepositoryImpl は通知送信履歴の永続化を担当します
type NotificationLogRepositoryImpl struct {
	db *DB
}

// NewNotificationLogRepository は新しいNotificationLogRepositoryを作成します
func NewNotificationLogRepository(db *DB) *NotificationLogRepositoryImpl {
	return &NotificationLogRepositoryImpl{
		db: db,
	}
}

// Append は送信履歴を1件追記します
func (r *NotificationLogRepositoryImpl) Append(ctx context.Context, entry *model.NotificationLog) (err error) {
	ctx, end := tracing.Start(ctx, "NotificationLogRepository.Append")
	defer func() { end(err) }()

	query := `
		INSERT INTO notification_logs (
			recipient, kind, reservation_id, attempt, success, status_code, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING id`

	err = r.db.QueryRowContext(ctx,
		query,
		entry.Recipient,
		entry.Kind,
		entry.ReservationID,
		entry.Attempt,
		entry.Success,
		entry.StatusCode,
		entry.ErrorMessage,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

// ListByReservationID は予約に関する送信履歴を古い順に取得します
func (r *NotificationLogRepositoryImpl) ListByReservationID(ctx context.Context, reservationID string) (_ []model.NotificationLog, err error) {
	ctx, end := tracing.Start(ctx, "NotificationLogRepository.ListByReservationID")
	defer func() { end(err) }()

	logs := []model.NotificationLog{}
	query := `
		SELECT id, recipient, kind, reservation_id, attempt, success, status_code, error_message, created_at
		FROM notification_logs
		WHERE reservation_id = $1
		ORDER BY created_at ASC, id ASC`
	if err = sqlx.SelectContext(ctx, r.db, &logs, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to query notification logs: %w", err)
	}
	return logs, nil
}
