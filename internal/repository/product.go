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

type ProductRepository interface {
	Get(ctx context.Context, id int64) (*model.Product, error)
	ExistingCodes(ctx context.Context, codes []string) ([]string, error)
	BulkInsert(ctx context.Context, tx *sqlx.Tx, products []model.Product) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type ProductRepositoryImpl struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepositoryImpl {
	return &ProductRepositoryImpl{db: db}
}

// bulkInsertChunkSize はPostgreSQLのパラメータ上限(65535)を超えないための1文あたりの行数です
const bulkInsertChunkSize = 1000

const productColumns = `id, name, code, barcode, variation_name, category_id, price, price_type,
	tax_category, visible, display_order, comment, created_at, updated_at`

func (r *ProductRepositoryImpl) Get(ctx context.Context, id int64) (_ *model.Product, err error) {
	ctx, end := tracing.Start(ctx, "ProductRepository.Get")
	defer func() { end(err) }()

	var product model.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err = sqlx.GetContext(ctx, r.db, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &product, nil
}

// ExistingCodes は指定したコードのうち既に登録済みのものを返します
func (r *ProductRepositoryImpl) ExistingCodes(ctx context.Context, codes []string) (_ []string, err error) {
	ctx, end := tracing.Start(ctx, "ProductRepository.ExistingCodes")
	defer func() { end(err) }()

	if len(codes) == 0 {
		return []string{}, nil
	}

	query, args, err := sqlx.In(`SELECT DISTINCT code FROM products WHERE code IN (?) ORDER BY code`, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to build existing codes query: %w", err)
	}

	existing := []string{}
	if err = sqlx.SelectContext(ctx, r.db, &existing, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query existing product codes: %w", err)
	}
	return existing, nil
}

// BulkInsert は商品をまとめて登録します
// 呼び出し側のトランザクション内で実行されるため、途中で失敗した場合は全件ロールバックされます
func (r *ProductRepositoryImpl) BulkInsert(ctx context.Context, tx *sqlx.Tx, products []model.Product) (_ int64, err error) {
	ctx, end := tracing.Start(ctx, "ProductRepository.BulkInsert")
	defer func() { end(err) }()
	tracing.AddMetadata(ctx, "product_count", len(products))

	query := `
		INSERT INTO products (
			name, code, barcode, variation_name, category_id, price, price_type,
			tax_category, visible, display_order, comment, created_at, updated_at
		) VALUES (
			:name, :code, :barcode, :variation_name, :category_id, :price, :price_type,
			:tax_category, :visible, :display_order, :comment, :created_at, :updated_at
		)`

	var inserted int64
	for start := 0; start < len(products); start += bulkInsertChunkSize {
		chunk := products[start:min(start+bulkInsertChunkSize, len(products))]
		result, err := sqlx.NamedExecContext(ctx, r.db.ext(tx), query, chunk)
		if err != nil {
			return 0, fmt.Errorf("failed to bulk insert products: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

func (r *ProductRepositoryImpl) Count(ctx context.Context) (_ int64, err error) {
	ctx, end := tracing.Start(ctx, "ProductRepository.Count")
	defer func() { end(err) }()

	var count int64
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}
