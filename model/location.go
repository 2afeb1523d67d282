package model

import "time"

// LocationFix 一筆裝置定位（僅保留最後一筆，每次新定位覆寫）
type LocationFix struct {
	Latitude  float64 `json:"latitude"`  // 緯度
	Longitude float64 `json:"longitude"` // 經度
	Timestamp int64   `json:"timestamp"` // 定位時間（毫秒）
}

// NewLocationFix 以當前時間建立定位
func NewLocationFix(lat, lng float64) LocationFix {
	return LocationFix{
		Latitude:  lat,
		Longitude: lng,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Time 回傳定位時間
func (f LocationFix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}
