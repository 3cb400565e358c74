package productimport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
)

// Service は商品CSVの検証と一括登録を行います
type Service struct {
	tx       repository.Transactor
	products repository.ProductRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(tx repository.Transactor, products repository.ProductRepository, logger zerolog.Logger) *Service {
	return &Service{
		tx:       tx,
		products: products,
		logger:   logger,
		now:      time.Now,
	}
}

// Import はCSVを検証し、問題のない行をまとめて登録します
// 商品コードの重複が1件でもあれば何も登録せずConflictを返します
func (s *Service) Import(ctx context.Context, data []byte, dialect Dialect) (_ *model.ImportResult, err error) {
	ctx, end := tracing.Start(ctx, "ProductImportService.Import")
	defer func() { end(err) }()

	parsed, err := parse(data, dialect, s.now())
	if err != nil {
		return nil, apperror.Validation([]string{err.Error()})
	}

	duplicates, err := s.findDuplicates(ctx, parsed.rows)
	if err != nil {
		return nil, err
	}
	if len(duplicates) > 0 {
		s.logger.Warn().Str("dialect", dialect.Name).Int("duplicates", len(duplicates)).Msg("product import rejected by duplicate codes")
		return nil, apperror.Conflict(apperror.CodeDuplicateCode, "商品コードが重複しています", duplicates)
	}

	result := &model.ImportResult{
		Errors:   nonNil(parsed.errors),
		Warnings: nonNil(parsed.warnings),
	}
	if len(parsed.rows) == 0 {
		return result, nil
	}

	products := make([]model.Product, len(parsed.rows))
	for i, r := range parsed.rows {
		products[i] = r.product
	}

	var inserted int64
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.products.BulkInsert(ctx, tx, products)
		if err != nil {
			return err
		}
		if n != int64(len(products)) {
			return fmt.Errorf("inserted %d of %d products", n, len(products))
		}
		inserted = n
		return nil
	})
	if err != nil {
		return nil, apperror.Database("import products", err)
	}

	result.Imported = int(inserted)
	s.logger.Info().
		Str("dialect", dialect.Name).
		Int("imported", result.Imported).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("products imported")
	return result, nil
}

// findDuplicates はファイル内の重複と既存商品との重複をすべて列挙します
func (s *Service) findDuplicates(ctx context.Context, rows []parsedRow) ([]model.DuplicateCode, error) {
	byCode := map[string][]int{}
	var codes []string
	for _, r := range rows {
		if r.product.Code == nil {
			continue
		}
		code := *r.product.Code
		if _, ok := byCode[code]; !ok {
			codes = append(codes, code)
		}
		byCode[code] = append(byCode[code], r.row)
	}
	if len(codes) == 0 {
		return nil, nil
	}

	existing, err := s.products.ExistingCodes(ctx, codes)
	if err != nil {
		return nil, apperror.Database("find existing product codes", err)
	}
	stored := make(map[string]bool, len(existing))
	for _, code := range existing {
		stored[code] = true
	}

	var duplicates []model.DuplicateCode
	for _, code := range codes {
		if len(byCode[code]) > 1 || stored[code] {
			duplicates = append(duplicates, model.DuplicateCode{
				Code:     code,
				Rows:     byCode[code],
				Existing: stored[code],
			})
		}
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i].Code < duplicates[j].Code })
	return duplicates, nil
}

func nonNil(issues []model.RowIssue) []model.RowIssue {
	if issues == nil {
		return []model.RowIssue{}
	}
	return issues
}
