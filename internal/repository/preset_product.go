package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type PresetProductRepository interface {
	ListDetails(ctx context.Context, presetID int64) ([]model.PresetProductDetail, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, links []model.PresetProduct) error
	DeleteExcept(ctx context.Context, tx *sqlx.Tx, presetID int64, keepProductIDs []int64) (int64, error)
}

type PresetProductRepositoryImpl struct {
	db *DB
}

func NewPresetProductRepository(db *DB) *PresetProductRepositoryImpl {
	return &PresetProductRepositoryImpl{db: db}
}

// presetProductRow は紐付けと商品をLEFT JOINした1行です
// 商品が存在しない場合、商品側のカラムはすべてNULLになります
type presetProductRow struct {
	LinkID           int64          `db:"link_id"`
	PresetID         int64          `db:"preset_id"`
	ProductID        int64          `db:"product_id"`
	LinkDisplayOrder *int           `db:"link_display_order"`
	IsActive         bool           `db:"is_active"`
	PID              sql.NullInt64  `db:"p_id"`
	Name             sql.NullString `db:"p_name"`
	Code             *string        `db:"p_code"`
	Barcode          *string        `db:"p_barcode"`
	VariationName    sql.NullString `db:"p_variation_name"`
	CategoryID       *int64         `db:"p_category_id"`
	Price            sql.NullInt64  `db:"p_price"`
	PriceType        sql.NullString `db:"p_price_type"`
	TaxCategory      sql.NullString `db:"p_tax_category"`
	Visible          sql.NullBool   `db:"p_visible"`
	DisplayOrder     *int           `db:"p_display_order"`
	Comment          sql.NullString `db:"p_comment"`
	CreatedAt        sql.NullTime   `db:"p_created_at"`
	UpdatedAt        sql.NullTime   `db:"p_updated_at"`
}

func (row presetProductRow) toDetail() model.PresetProductDetail {
	detail := model.PresetProductDetail{
		Link: model.PresetProduct{
			ID:           row.LinkID,
			PresetID:     row.PresetID,
			ProductID:    row.ProductID,
			DisplayOrder: row.LinkDisplayOrder,
			IsActive:     row.IsActive,
		},
	}
	if !row.PID.Valid {
		return detail
	}
	detail.Product = &model.Product{
		ID:            row.PID.Int64,
		Name:          row.Name.String,
		Code:          row.Code,
		Barcode:       row.Barcode,
		VariationName: row.VariationName.String,
		CategoryID:    row.CategoryID,
		Price:         row.Price.Int64,
		PriceType:     model.PriceType(row.PriceType.String),
		TaxCategory:   model.TaxCategory(row.TaxCategory.String),
		Visible:       row.Visible.Bool,
		DisplayOrder:  row.DisplayOrder,
		Comment:       row.Comment.String,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
	return detail
}

// ListDetails はプリセットの紐付けを商品と合わせて取得します
// 無効な紐付けや非表示の商品も含めて返すため、絞り込みは呼び出し側で行います
func (r *PresetProductRepositoryImpl) ListDetails(ctx context.Context, presetID int64) (_ []model.PresetProductDetail, err error) {
	ctx, end := tracing.Start(ctx, "PresetProductRepository.ListDetails")
	defer func() { end(err) }()

	query := `
		SELECT
			pp.id AS link_id,
			pp.preset_id,
			pp.product_id,
			pp.display_order AS link_display_order,
			pp.is_active,
			p.id AS p_id,
			p.name AS p_name,
			p.code AS p_code,
			p.barcode AS p_barcode,
			p.variation_name AS p_variation_name,
			p.category_id AS p_category_id,
			p.price AS p_price,
			p.price_type AS p_price_type,
			p.tax_category AS p_tax_category,
			p.visible AS p_visible,
			p.display_order AS p_display_order,
			p.comment AS p_comment,
			p.created_at AS p_created_at,
			p.updated_at AS p_updated_at
		FROM preset_products pp
		LEFT JOIN products p ON p.id = pp.product_id
		WHERE pp.preset_id = $1
		ORDER BY pp.id ASC
	`

	var rows []presetProductRow
	if err = sqlx.SelectContext(ctx, r.db, &rows, query, presetID); err != nil {
		return nil, fmt.Errorf("failed to list preset products of preset %d: %w", presetID, err)
	}

	details := make([]model.PresetProductDetail, len(rows))
	for i, row := range rows {
		details[i] = row.toDetail()
	}
	return details, nil
}

// Upsert は紐付けをまとめて登録・更新します
// (preset_id, product_id) が既に存在する場合は表示順と有効フラグを上書きします
func (r *PresetProductRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, links []model.PresetProduct) (err error) {
	ctx, end := tracing.Start(ctx, "PresetProductRepository.Upsert")
	defer func() { end(err) }()

	if len(links) == 0 {
		return nil
	}

	type linkRow struct {
		model.PresetProduct
		UpdatedAt time.Time `db:"updated_at"`
	}
	now := time.Now()
	rows := make([]linkRow, len(links))
	for i, link := range links {
		rows[i] = linkRow{PresetProduct: link, UpdatedAt: now}
	}

	query := `
		INSERT INTO preset_products (preset_id, product_id, display_order, is_active, created_at, updated_at)
		VALUES (:preset_id, :product_id, :display_order, :is_active, :updated_at, :updated_at)
		ON CONFLICT (preset_id, product_id) DO UPDATE SET
			display_order = EXCLUDED.display_order,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	if _, err = sqlx.NamedExecContext(ctx, r.db.ext(tx), query, rows); err != nil {
		return fmt.Errorf("failed to upsert preset products: %w", err)
	}
	return nil
}

// DeleteExcept は指定した商品以外の紐付けを削除します
func (r *PresetProductRepositoryImpl) DeleteExcept(ctx context.Context, tx *sqlx.Tx, presetID int64, keepProductIDs []int64) (_ int64, err error) {
	ctx, end := tracing.Start(ctx, "PresetProductRepository.DeleteExcept")
	defer func() { end(err) }()

	var (
		result sql.Result
		q      = r.db.ext(tx)
	)
	if len(keepProductIDs) == 0 {
		result, err = q.ExecContext(ctx, `DELETE FROM preset_products WHERE preset_id = $1`, presetID)
	} else {
		query, args, inErr := sqlx.In(`DELETE FROM preset_products WHERE preset_id = ? AND product_id NOT IN (?)`, presetID, keepProductIDs)
		if inErr != nil {
			return 0, fmt.Errorf("failed to build delete query: %w", inErr)
		}
		result, err = q.ExecContext(ctx, q.Rebind(query), args...)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete preset products of preset %d: %w", presetID, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
