package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// DiagAuthMiddleware 診斷 API 的簡易 bearer 保護。
// 診斷服務只在本機或開發環境使用，密鑰比對即可；
// 未設定密鑰時完全放行。
type DiagAuthMiddleware struct {
	secret string
}

func NewDiagAuthMiddleware(secret string) *DiagAuthMiddleware {
	return &DiagAuthMiddleware{secret: secret}
}

func (m *DiagAuthMiddleware) Auth() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if m.secret == "" {
			next(ctx)
			return
		}

		// 從 Authorization header 中獲取 token
		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")
			ctx.BodyWriter().Write([]byte(`{"message":"缺少授權標頭","detail":"missing authorization header"}`))
			return
		}

		// 檢查 Bearer 前綴
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")
			ctx.BodyWriter().Write([]byte(`{"message":"無效的授權格式","detail":"invalid authorization format"}`))
			return
		}

		if parts[1] != m.secret {
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")
			ctx.BodyWriter().Write([]byte(`{"message":"無效的診斷密鑰","detail":"invalid diagnostics secret"}`))
			return
		}

		next(ctx)
	}
}
