package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type PresetRepository interface {
	Get(ctx context.Context, id int64) (*model.Preset, error)
	List(ctx context.Context) ([]model.Preset, error)
	Count(ctx context.Context) (int64, error)
	DeleteCascade(ctx context.Context, id int64) (*DeleteSummary, error)
}

// DeleteSummary はプリセット削除時に削除した子レコードの件数です
type DeleteSummary struct {
	FormSettings   int64 `json:"form_settings"`
	PickupWindows  int64 `json:"pickup_windows"`
	PresetProducts int64 `json:"preset_products"`
}

type PresetRepositoryImpl struct {
	db *DB
}

func NewPresetRepository(db *DB) *PresetRepositoryImpl {
	return &PresetRepositoryImpl{db: db}
}

const presetColumns = `id, name, description, is_active, created_at, updated_at`

// Get はIDでプリセットを取得します
func (r *PresetRepositoryImpl) Get(ctx context.Context, id int64) (_ *model.Preset, err error) {
	ctx, end := tracing.Start(ctx, "PresetRepository.Get")
	defer func() { end(err) }()

	var preset model.Preset
	query := `SELECT ` + presetColumns + ` FROM presets WHERE id = $1`
	if err = sqlx.GetContext(ctx, r.db, &preset, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preset %d: %w", id, err)
	}
	return &preset, nil
}

func (r *PresetRepositoryImpl) List(ctx context.Context) (_ []model.Preset, err error) {
	ctx, end := tracing.Start(ctx, "PresetRepository.List")
	defer func() { end(err) }()

	presets := []model.Preset{}
	query := `SELECT ` + presetColumns + ` FROM presets ORDER BY id ASC`
	if err = sqlx.SelectContext(ctx, r.db, &presets, query); err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	return presets, nil
}

func (r *PresetRepositoryImpl) Count(ctx context.Context) (_ int64, err error) {
	ctx, end := tracing.Start(ctx, "PresetRepository.Count")
	defer func() { end(err) }()

	var count int64
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count presets: %w", err)
	}
	return count, nil
}

// DeleteCascade はプリセットと子テーブルのレコードを1トランザクションで削除します
// 子テーブルの外部キーはRESTRICTのため、子から順に削除する必要があります
func (r *PresetRepositoryImpl) DeleteCascade(ctx context.Context, id int64) (_ *DeleteSummary, err error) {
	ctx, end := tracing.Start(ctx, "PresetRepository.DeleteCascade")
	defer func() { end(err) }()

	summary := &DeleteSummary{}
	err = r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		// 削除中に他のトランザクションから子レコードが追加されないようロックする
		var locked int64
		if err := tx.QueryRowxContext(ctx, `SELECT id FROM presets WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock preset %d: %w", id, err)
		}

		steps := []struct {
			table string
			count *int64
		}{
			{table: "form_settings", count: &summary.FormSettings},
			{table: "pickup_windows", count: &summary.PickupWindows},
			{table: "preset_products", count: &summary.PresetProducts},
		}
		for _, step := range steps {
			result, err := tx.ExecContext(ctx, `DELETE FROM `+step.table+` WHERE preset_id = $1`, id)
			if err != nil {
				return fmt.Errorf("failed to delete %s of preset %d: %w", step.table, id, err)
			}
			if *step.count, err = result.RowsAffected(); err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM presets WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete preset %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
