package productimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyFile はヘッダ行すらないファイルを表します
var ErrEmptyFile = errors.New("csv has no header row")

// decode はBOMを取り除き、UTF-8でない場合はShift_JISとして読み替えます
func decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Shift_JIS: %w", err)
	}
	return bytes.TrimPrefix(decoded, utf8BOM), nil
}

// parsedRow は1行分の解析結果です
type parsedRow struct {
	row     int
	product model.Product
}

type parseResult struct {
	rows     []parsedRow
	errors   []model.RowIssue
	warnings []model.RowIssue
}

func (r *parseResult) addError(row int, field Field, format string, args ...any) {
	r.errors = append(r.errors, model.RowIssue{Row: row, Field: string(field), Message: fmt.Sprintf(format, args...)})
}

func (r *parseResult) addWarning(row int, field Field, format string, args ...any) {
	r.warnings = append(r.warnings, model.RowIssue{Row: row, Field: string(field), Message: fmt.Sprintf(format, args...)})
}

// parse はCSV全体を読み込み、行ごとに検証します
// ヘッダの不備以外のエラーは行単位で記録し、処理は続行します
func parse(data []byte, dialect Dialect, now time.Time) (*parseResult, error) {
	data, err := decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	result := &parseResult{}
	columns := make(map[Field]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		field, ok := dialect.Mapping[name]
		if !ok {
			if name != "" {
				result.addWarning(1, "", "unknown column %q is ignored", name)
			}
			continue
		}
		if _, dup := columns[field]; dup {
			return nil, fmt.Errorf("column for %s appears more than once", field)
		}
		columns[field] = i
	}
	var missing []string
	for _, required := range []Field{FieldName, FieldPrice} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, string(required))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// 引用符の崩れなどは該当行のエラーとして扱います
			result.addError(row, "", "malformed row: %v", err)
			continue
		}
		if isBlank(record) {
			continue
		}

		get := func(f Field) string {
			i, ok := columns[f]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if product, ok := parseRow(result, row, get, now); ok {
			result.rows = append(result.rows, parsedRow{row: row, product: product})
		}
	}
	return result, nil
}

// parseRow は1行を商品に変換します。エラーがあった場合はfalseを返します
func parseRow(result *parseResult, row int, get func(Field) string, now time.Time) (model.Product, bool) {
	errCount := len(result.errors)

	name := get(FieldName)
	switch {
	case name == "":
		result.addError(row, FieldName, "name is required")
	case utf8.RuneCountInString(name) > model.MaxProductNameLength:
		result.addError(row, FieldName, "name must be at most %d characters", model.MaxProductNameLength)
	}

	priceType, ok := parsePriceType(get(FieldPriceType))
	if !ok {
		result.addError(row, FieldPriceType, "invalid price type %q", get(FieldPriceType))
	}

	var price int64
	rawPrice := get(FieldPrice)
	if rawPrice == "" {
		if priceType == model.PriceTypeVariable {
			result.addWarning(row, FieldPrice, "price is empty for a variable-price product, 0 is used")
		} else {
			result.addError(row, FieldPrice, "price is required")
		}
	} else {
		p, rounded, err := parsePrice(rawPrice)
		switch {
		case err != nil:
			result.addError(row, FieldPrice, "%v", err)
		case rounded:
			result.addWarning(row, FieldPrice, "price %q is rounded to %d", rawPrice, p)
		}
		price = p
	}

	taxCategory, ok := parseTaxCategory(get(FieldTaxCategory))
	if !ok {
		result.addError(row, FieldTaxCategory, "invalid tax category %q", get(FieldTaxCategory))
	}

	visible, ok := parseVisible(get(FieldVisible))
	if !ok {
		result.addError(row, FieldVisible, "invalid visibility %q", get(FieldVisible))
	}

	var categoryID *int64
	if raw := get(FieldCategoryID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			result.addError(row, FieldCategoryID, "category_id must be a positive integer: %q", raw)
		} else {
			categoryID = &id
		}
	}

	if len(result.errors) > errCount {
		return model.Product{}, false
	}

	product := model.NewProduct(name, price, now)
	product.Code = optional(get(FieldCode))
	product.Barcode = optional(get(FieldBarcode))
	product.VariationName = get(FieldVariation)
	product.CategoryID = categoryID
	product.PriceType = priceType
	product.TaxCategory = taxCategory
	product.Visible = visible
	product.Comment = get(FieldComment)
	return product, true
}

var priceReplacer = strings.NewReplacer(",", "", "¥", "", "￥", "", "円", "", " ", "")

// parsePrice は金額を円単位の整数に変換します。小数は四捨五入し、その場合はroundedがtrueになります
func parsePrice(raw string) (price int64, rounded bool, err error) {
	d, err := decimal.NewFromString(priceReplacer.Replace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("price must be numeric: %q", raw)
	}
	if d.IsNegative() {
		return 0, false, fmt.Errorf("price must be >= 0: %q", raw)
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, false, fmt.Errorf("price is too large: %q", raw)
	}
	if !d.IsInteger() {
		return d.Round(0).IntPart(), true, nil
	}
	return d.IntPart(), false, nil
}

func parsePriceType(raw string) (model.PriceType, bool) {
	switch strings.ToLower(raw) {
	case "", "固定", "fixed":
		return model.PriceTypeFixed, true
	case "変動", "variable":
		return model.PriceTypeVariable, true
	}
	return model.PriceTypeFixed, false
}

func parseTaxCategory(raw string) (model.TaxCategory, bool) {
	switch strings.ToLower(raw) {
	case "", "標準", "standard":
		return model.TaxCategoryStandard, true
	case "軽減", "reduced":
		return model.TaxCategoryReduced, true
	case "非課税", "exempt":
		return model.TaxCategoryExempt, true
	}
	return model.TaxCategoryStandard, false
}

func parseVisible(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "", "表示", "true", "1", "yes":
		return true, true
	case "非表示", "false", "0", "no":
		return false, true
	}
	return true, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
