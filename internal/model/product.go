package model

import "time"

// TaxCategory は税区分です
type TaxCategory string

const (
	TaxCategoryStandard TaxCategory = "standard"
	TaxCategoryReduced  TaxCategory = "reduced"
	TaxCategoryExempt   TaxCategory = "exempt"
)

// PriceType は価格区分です。variableは店頭で価格を決める商品です
type PriceType string

const (
	PriceTypeFixed    PriceType = "fixed"
	PriceTypeVariable PriceType = "variable"
)

// DefaultDisplayOrder は表示順が未設定の場合に使う値です
const DefaultDisplayOrder = 999

// MaxProductNameLength は商品名の最大文字数です
const MaxProductNameLength = 255

type Product struct {
	ID            int64       `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Code          *string     `db:"code" json:"code,omitempty"`
	Barcode       *string     `db:"barcode" json:"barcode,omitempty"`
	VariationName string      `db:"variation_name" json:"variation_name"`
	CategoryID    *int64      `db:"category_id" json:"category_id,omitempty"`
	Price         int64       `db:"price" json:"price"`
	PriceType     PriceType   `db:"price_type" json:"price_type"`
	TaxCategory   TaxCategory `db:"tax_category" json:"tax_category"`
	Visible       bool        `db:"visible" json:"visible"`
	DisplayOrder  *int        `db:"display_order" json:"display_order,omitempty"`
	Comment       string      `db:"comment" json:"comment"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// NewProduct はインポート用に既定値を埋めた商品を作成します
func NewProduct(name string, price int64, now time.Time) Product {
	return Product{
		Name:        name,
		Price:       price,
		PriceType:   PriceTypeFixed,
		TaxCategory: TaxCategoryStandard,
		Visible:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
