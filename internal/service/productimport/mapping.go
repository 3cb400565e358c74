package productimport

import (
	"fmt"
	"strings"
)

// Field は商品の取り込み先の項目です
type Field string

const (
	FieldName        Field = "name"
	FieldCode        Field = "code"
	FieldBarcode     Field = "barcode"
	FieldVariation   Field = "variation_name"
	FieldPrice       Field = "price"
	FieldPriceType   Field = "price_type"
	FieldTaxCategory Field = "tax_category"
	FieldVisible     Field = "visible"
	FieldCategoryID  Field = "category_id"
	FieldComment     Field = "comment"
)

var knownFields = map[Field]bool{
	FieldName:        true,
	FieldCode:        true,
	FieldBarcode:     true,
	FieldVariation:   true,
	FieldPrice:       true,
	FieldPriceType:   true,
	FieldTaxCategory: true,
	FieldVisible:     true,
	FieldCategoryID:  true,
	FieldComment:     true,
}

// ColumnMapping はCSVのヘッダ名から取り込み先の項目への対応です
type ColumnMapping map[string]Field

// Dialect はCSVの種類ごとの取り込みルールです
type Dialect struct {
	Name    string
	Mapping ColumnMapping
}

// Generic は汎用の商品CSVです
var Generic = Dialect{
	Name: "generic",
	Mapping: ColumnMapping{
		"name":        FieldName,
		"external_id": FieldCode,
		"category_id": FieldCategoryID,
		"price":       FieldPrice,
		"variation":   FieldVariation,
		"comment":     FieldComment,
	},
}

// POS はPOSレジから書き出した商品CSVです。Shift_JISで出力されることがあります
var POS = Dialect{
	Name: "pos",
	Mapping: ColumnMapping{
		"商品名":      FieldName,
		"商品コード":    FieldCode,
		"バーコード":    FieldBarcode,
		"バリエーション名": FieldVariation,
		"価格":       FieldPrice,
		"価格区分":     FieldPriceType,
		"税区分":      FieldTaxCategory,
		"表示":       FieldVisible,
		"カテゴリID":   FieldCategoryID,
		"備考":       FieldComment,
	},
}

// ParseColumnMapping はリクエストで指定された対応表を検証します
func ParseColumnMapping(raw map[string]string) (ColumnMapping, error) {
	mapping := make(ColumnMapping, len(raw))
	for header, field := range raw {
		f := Field(strings.TrimSpace(field))
		if !knownFields[f] {
			return nil, fmt.Errorf("unknown field %q for column %q", field, header)
		}
		mapping[strings.TrimSpace(header)] = f
	}
	return mapping, nil
}

// WithMapping は対応表を差し替えた方言を返します
func (d Dialect) WithMapping(mapping ColumnMapping) Dialect {
	if len(mapping) == 0 {
		return d
	}
	return Dialect{Name: d.Name, Mapping: mapping}
}
