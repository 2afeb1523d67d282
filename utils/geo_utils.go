package utils

import (
	"math"
	"strconv"
)

const earthRadiusM = 6371000.0

// FormatCoord 將座標轉為 API 使用的字串格式（7 位小數，約 1 公分精度）
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}

// DistanceM 計算兩座標間的距離（公尺），使用 haversine 公式
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
