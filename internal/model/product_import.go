package model

// RowIssue はインポート時の行単位のエラー・警告です
// Rowはヘッダ行を1とした行番号です
type RowIssue struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportResult は商品インポートの結果です
type ImportResult struct {
	Imported int        `json:"imported"`
	Errors   []RowIssue `json:"errors"`
	Warnings []RowIssue `json:"warnings"`
}

// DuplicateCode は重複した商品コードと出現行です
type DuplicateCode struct {
	Code string `json:"code"`
	// Rows はファイル内で重複した行番号です
	Rows []int `json:"rows"`
	// Existing は既存の商品と重複している場合にtrueです
	Existing bool `json:"existing"`
}
