package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT 檢查相關的通用錯誤
var (
	ErrEmptyToken     = errors.New("empty token")
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// InspectToken 在客戶端檢查 bearer token 是否仍可用。
// 客戶端沒有簽章密鑰，因此只解析 claims 不驗證簽章 —
// 真正的驗證由伺服器完成；這裡只用來決定是否值得開啟連線。
func InspectToken(tokenString string) error {
	if tokenString == "" {
		return ErrEmptyToken
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return ErrMalformedToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return ErrMalformedToken
	}
	// 沒有 exp claim 視為長效 token
	if exp != nil && exp.Before(time.Now()) {
		return ErrTokenExpired
	}

	return nil
}

// TokenUsable 是否可用此 token 開啟即時連線
func TokenUsable(tokenString string) bool {
	return InspectToken(tokenString) == nil
}

// TokenExpiry 回傳 token 的到期時間；無 exp claim 時回傳零值時間
func TokenExpiry(tokenString string) (time.Time, error) {
	if tokenString == "" {
		return time.Time{}, ErrEmptyToken
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, ErrMalformedToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, err
	}
	return exp.Time, nil
}
