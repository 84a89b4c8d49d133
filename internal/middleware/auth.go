// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey は認証済みユーザーを格納するキー。
	userContextKey = contextKey("user")
	// userIDContextKey は認証済みユーザーIDを格納するキー。
	userIDContextKey = contextKey("user_id")
)

// TokenVerifier はBearerトークンの検証インターフェース。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// UserFinder はユーザー解決に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
func NewAuthMiddleware(verifier TokenVerifier, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNoCredentialsError())
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, token.ErrTokenExpired) {
					reason = "expired"
				}
				slog.Warn("token rejected",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationFailedError())
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				slog.Error("failed to resolve token subject",
					slog.String("user_id", claims.UserID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				slog.Warn("token subject not found", slog.String("user_id", claims.UserID))
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationFailedError())
				return
			}

			setLoggedUserID(r.Context(), user.ID)
			ctx := ContextWithUser(r.Context(), user.Public())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUser はコンテキストにユーザーとそのIDを注入する。
// テストやミドルウェア以外のコンテキスト生成でも使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, userIDContextKey, user.ID)
}
