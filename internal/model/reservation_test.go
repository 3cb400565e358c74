package model

import (
	"math"
	"testing"
)

func TestSelectedProducts_Scan(t *testing.T) {
	tests := []struct {
		name      string
		src       any
		wantLen   int
		wantTotal int64
		wantErr   bool
	}{
		{name: "NULLは空配列", src: nil, wantLen: 0},
		{name: "JSONBのバイト列", src: []byte(`[{"product_id":1,"name":"唐揚げ弁当","quantity":3,"unit_price":200,"total_price":600}]`), wantLen: 1, wantTotal: 600},
		{name: "文字列", src: `[{"product_id":1,"quantity":1,"unit_price":100,"total_price":100},{"product_id":2,"quantity":2,"unit_price":50,"total_price":100}]`, wantLen: 2, wantTotal: 200},
		{name: "不正な型", src: 12, wantErr: true},
		{name: "不正なJSON", src: []byte(`{`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s SelectedProducts
			err := s.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(s) != tt.wantLen {
				t.Errorf("Scan() len = %d, want %d", len(s), tt.wantLen)
			}
			if total, ok := s.Total(); !ok || total != tt.wantTotal {
				t.Errorf("Total() = %d, %v, want %d", total, ok, tt.wantTotal)
			}
		})
	}
}

func TestSelectedProducts_ValueNil(t *testing.T) {
	var s SelectedProducts
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("Value() = %s, want []", v)
	}
}

func TestSelectedProducts_TotalOverflow(t *testing.T) {
	tests := []struct {
		name   string
		lines  SelectedProducts
		want   int64
		wantOK bool
	}{
		{name: "空", lines: nil, want: 0, wantOK: true},
		{name: "上限ちょうど", lines: SelectedProducts{{TotalPrice: math.MaxInt64 - 1}, {TotalPrice: 1}}, want: math.MaxInt64, wantOK: true},
		{name: "上限超過", lines: SelectedProducts{{TotalPrice: math.MaxInt64}, {TotalPrice: 1}}, wantOK: false},
		{name: "負の小計", lines: SelectedProducts{{TotalPrice: -1}}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.lines.Total()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Total() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		quantity  int
		want      int64
		wantOK    bool
	}{
		{name: "通常", unitPrice: 200, quantity: 3, want: 600, wantOK: true},
		{name: "数量0", unitPrice: math.MaxInt64, quantity: 0, want: 0, wantOK: true},
		{name: "上限ちょうど", unitPrice: math.MaxInt64 / MaxQuantity, quantity: MaxQuantity, want: (math.MaxInt64 / MaxQuantity) * MaxQuantity, wantOK: true},
		{name: "乗算の桁あふれ", unitPrice: 200, quantity: 46116860184273880, wantOK: false},
		{name: "負の単価", unitPrice: -1, quantity: 1, wantOK: false},
		{name: "負の数量", unitPrice: 1, quantity: -1, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LineTotal(tt.unitPrice, tt.quantity)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("LineTotal() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNotificationKind_Valid(t *testing.T) {
	for _, k := range []NotificationKind{NotificationKindConfirmation, NotificationKindReminder, NotificationKindCancellation} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if NotificationKind("unknown").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
