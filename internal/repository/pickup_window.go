package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type PickupWindowRepository interface {
	ListByPresetID(ctx context.Context, presetID int64) ([]model.PickupWindow, error)
}

type PickupWindowRepositoryImpl struct {
	db *DB
}

func NewPickupWindowRepository(db *DB) *PickupWindowRepositoryImpl {
	return &PickupWindowRepositoryImpl{db: db}
}

// ListByPresetID はプリセットの受け取り時間帯を開始時刻順に取得します
func (r *PickupWindowRepositoryImpl) ListByPresetID(ctx context.Context, presetID int64) (_ []model.PickupWindow, err error) {
	ctx, end := tracing.Start(ctx, "PickupWindowRepository.ListByPresetID")
	defer func() { end(err) }()

	windows := []model.PickupWindow{}
	query := `
		SELECT id, preset_id, product_id, start_at, end_at, price, comment
		FROM pickup_windows
		WHERE preset_id = $1
		ORDER BY start_at ASC, id ASC
	`
	if err = sqlx.SelectContext(ctx, r.db, &windows, query, presetID); err != nil {
		return nil, fmt.Errorf("failed to list pickup windows of preset %d: %w", presetID, err)
	}
	return windows, nil
}
