package httpmw

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type ctxKey string

const (
	ctxKeyToken  ctxKey = "token"
	ctxKeyUserID ctxKey = "user_id"
)

type TokenVerifier interface {
	UserID(token string) (int64, error)
}

// AuthMiddleware: Bearer-токен обязателен. При наличии verifier личность
// берётся из subject токена; без него (локальная разработка) — из X-User-ID.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(auth[7:])

			var uid int64
			if verifier != nil {
				id, err := verifier.UserID(token)
				if err != nil {
					http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
					return
				}
				uid = id
			} else {
				id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
				if err != nil || id <= 0 {
					http.Error(w, `{"error":"missing X-User-ID"}`, http.StatusUnauthorized)
					return
				}
				uid = id
			}

			ctx := context.WithValue(r.Context(), ctxKeyToken, token)
			ctx = context.WithValue(ctx, ctxKeyUserID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromCtx(ctx context.Context) int64 {
	if v := ctx.Value(ctxKeyUserID); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
