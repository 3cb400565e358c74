package utils

import (
	"time"
	_ "time/tzdata"
)

// JST は日本標準時です
var JST = LoadLocation("Asia/Tokyo")

// LoadLocation はタイムゾーンを読み込みます。読み込めない場合は日本標準時の固定オフセットを返します
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Tomorrow はlocにおける翌日の日付をYYYY-MM-DD形式で返します
func Tomorrow(now time.Time, loc *time.Location) string {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Format(time.DateOnly)
}
