package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("產生測試 token 失敗: %v", err)
	}
	return token
}

// TestInspectToken 測試客戶端 token 檢查
func TestInspectToken(t *testing.T) {
	testCases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"空 token", "", ErrEmptyToken},
		{"不是 JWT", "not-a-jwt", ErrMalformedToken},
		{"有效 token", signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}), nil},
		{"過期 token", signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), ErrTokenExpired},
		{"無 exp 視為長效", signToken(t, jwt.MapClaims{"sub": "u1"}), nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InspectToken(tc.token); got != tc.wantErr {
				t.Fatalf("預期 %v，實際 %v", tc.wantErr, got)
			}
		})
	}
}

// TestTokenUsable 測試開啟連線前的可用性判斷
func TestTokenUsable(t *testing.T) {
	if TokenUsable("") {
		t.Fatal("空 token 不應可用")
	}
	if !TokenUsable(signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})) {
		t.Fatal("有效 token 應可用")
	}
	if TokenUsable(signToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})) {
		t.Fatal("過期 token 不應可用")
	}
}

// TestTokenExpiry 測試到期時間解析
func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{"exp": exp.Unix()})

	got, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("解析到期時間失敗: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("到期時間錯誤: 預期 %v 實際 %v", exp, got)
	}

	// 無 exp claim 回傳零值
	got, err = TokenExpiry(signToken(t, jwt.MapClaims{"sub": "u1"}))
	if err != nil {
		t.Fatalf("無 exp 不應報錯: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("無 exp 應回傳零值時間，實際 %v", got)
	}
}
