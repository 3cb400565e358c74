package model

import (
	"cmp"
	"slices"
)

// PresetProduct はプリセットと商品の紐付けです
type PresetProduct struct {
	ID           int64 `db:"id" json:"id"`
	PresetID     int64 `db:"preset_id" json:"preset_id"`
	ProductID    int64 `db:"product_id" json:"product_id"`
	DisplayOrder *int  `db:"display_order" json:"display_order,omitempty"`
	IsActive     bool  `db:"is_active" json:"is_active"`
}

// PresetProductDetail は紐付けと商品をまとめたものです
// 商品が削除済みの場合Productはnilです
type PresetProductDetail struct {
	Link    PresetProduct `json:"link"`
	Product *Product      `json:"product,omitempty"`
}

// PresetProductInput は紐付けの登録・更新内容です
type PresetProductInput struct {
	ProductID    int64 `json:"product_id" validate:"gt=0"`
	DisplayOrder *int  `json:"display_order" validate:"omitempty,gte=0"`
	IsActive     *bool `json:"is_active"`
}

// Active は省略時にtrueとして扱います
func (in PresetProductInput) Active() bool {
	return in.IsActive == nil || *in.IsActive
}

// ConfigProduct は統合設定に含まれる商品です
type ConfigProduct struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Code          *string     `json:"code,omitempty"`
	VariationName string      `json:"variation_name"`
	CategoryID    *int64      `json:"category_id,omitempty"`
	Price         int64       `json:"price"`
	PriceType     PriceType   `json:"price_type"`
	TaxCategory   TaxCategory `json:"tax_category"`
	DisplayOrder  int         `json:"display_order"`
	Comment       string      `json:"comment"`
}

// EffectiveCatalog は紐付けが有効で商品が表示対象のものだけを表示順に並べて返します
// 並び順は紐付けの表示順、商品の表示順(未設定は999)、商品IDの順です
func EffectiveCatalog(details []PresetProductDetail) []ConfigProduct {
	type entry struct {
		linkOrder    int
		productOrder int
		product      ConfigProduct
	}

	entries := make([]entry, 0, len(details))
	for _, d := range details {
		if !d.Link.IsActive || d.Product == nil || !d.Product.Visible {
			continue
		}
		productOrder := orderOrDefault(d.Product.DisplayOrder)
		entries = append(entries, entry{
			linkOrder:    orderOrDefault(d.Link.DisplayOrder),
			productOrder: productOrder,
			product: ConfigProduct{
				ID:            d.Product.ID,
				Name:          d.Product.Name,
				Code:          d.Product.Code,
				VariationName: d.Product.VariationName,
				CategoryID:    d.Product.CategoryID,
				Price:         d.Product.Price,
				PriceType:     d.Product.PriceType,
				TaxCategory:   d.Product.TaxCategory,
				DisplayOrder:  orderOrDefault(d.Link.DisplayOrder),
				Comment:       d.Product.Comment,
			},
		})
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(
			cmp.Compare(a.linkOrder, b.linkOrder),
			cmp.Compare(a.productOrder, b.productOrder),
			cmp.Compare(a.product.ID, b.product.ID),
		)
	})

	products := make([]ConfigProduct, len(entries))
	for i, e := range entries {
		products[i] = e.product
	}
	return products
}

func orderOrDefault(order *int) int {
	if order == nil {
		return DefaultDisplayOrder
	}
	return *order
}
