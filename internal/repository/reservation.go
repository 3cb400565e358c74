package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByCancelToken(ctx context.Context, token string) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, from, to model.ReservationStatus) error
	List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
	CountByStatus(ctx context.Context) (map[model.ReservationStatus]int64, error)
}

// ErrStatusConflict は状態遷移元の状態が一致しない場合に返します
var ErrStatusConflict = errors.New("reservation status conflict")

type ReservationRepositoryImpl struct {
	db *DB
}

func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

// pickup_dateはDATE型のため、YYYY-MM-DD形式の文字列として取得する
const reservationColumns = `id, preset_id, user_name, furigana, phone_number, gender, birthday, address,
	note, line_user_id, pickup_date::text AS pickup_date, pickup_time, selected_products, total_amount,
	status, cancel_token, created_at, updated_at`

// Create は予約を登録します
func (r *ReservationRepositoryImpl) Create(ctx context.Context, reservation *model.Reservation) (err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.Create")
	defer func() { end(err) }()

	query := `
		INSERT INTO reservations (
			id, preset_id, user_name, furigana, phone_number, gender, birthday, address,
			note, line_user_id, pickup_date, pickup_time, selected_products, total_amount,
			status, cancel_token, created_at, updated_at
		) VALUES (
			:id, :preset_id, :user_name, :furigana, :phone_number, :gender, :birthday, :address,
			:note, :line_user_id, :pickup_date, :pickup_time, :selected_products, :total_amount,
			:status, :cancel_token, :created_at, :updated_at
		)`

	if _, err = r.db.NamedExecContext(ctx, query, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepositoryImpl) GetByID(ctx context.Context, id string) (_ *model.Reservation, err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.GetByID")
	defer func() { end(err) }()

	return r.getOne(ctx, `id = $1`, id)
}

func (r *ReservationRepositoryImpl) GetByCancelToken(ctx context.Context, token string) (_ *model.Reservation, err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.GetByCancelToken")
	defer func() { end(err) }()

	return r.getOne(ctx, `cancel_token = $1`, token)
}

func (r *ReservationRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.Reservation, error) {
	var reservation model.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where
	if err := sqlx.GetContext(ctx, r.db, &reservation, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &reservation, nil
}

// UpdateStatus は予約の状態をfromからtoへ更新します
// 現在の状態がfromでない場合はErrStatusConflictを返します
func (r *ReservationRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, from, to model.ReservationStatus) (err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.UpdateStatus")
	defer func() { end(err) }()

	query := `
		UPDATE reservations
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ext(tx).ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}

// List は条件に一致する予約を受け取り日、作成日時の順に取得します
func (r *ReservationRepositoryImpl) List(ctx context.Context, filter model.ReservationFilter) (_ []model.Reservation, err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.List")
	defer func() { end(err) }()

	var (
		conds []string
		args  []any
	)
	if filter.PresetID != nil {
		args = append(args, *filter.PresetID)
		conds = append(conds, fmt.Sprintf("preset_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PickupDate != "" {
		args = append(args, filter.PickupDate)
		conds = append(conds, fmt.Sprintf("pickup_date = $%d", len(args)))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY pickup_date ASC NULLS LAST, created_at ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	reservations := []model.Reservation{}
	if err = sqlx.SelectContext(ctx, r.db, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// CountByStatus は状態ごとの予約件数を返します
func (r *ReservationRepositoryImpl) CountByStatus(ctx context.Context) (_ map[model.ReservationStatus]int64, err error) {
	ctx, end := tracing.Start(ctx, "ReservationRepository.CountByStatus")
	defer func() { end(err) }()

	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM reservations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}
	defer rows.Close()

	counts := map[model.ReservationStatus]int64{
		model.ReservationStatusPending:   0,
		model.ReservationStatusConfirmed: 0,
		model.ReservationStatusCancelled: 0,
	}
	for rows.Next() {
		var (
			status model.ReservationStatus
			count  int64
		)
		if err = rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reservation count: %w", err)
		}
		counts[status] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation counts: %w", err)
	}
	return counts, nil
}
