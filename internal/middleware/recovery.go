package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500レスポンスを返すミドルウェアを生成する。
// 最外周に置き、認証済みであればpanicログにuser_idを含める。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, rl := withRequestLog(r.Context())
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandlerはクライアント切断の通知なので再送出する
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				args := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if rl.userID != "" {
					args = append(args, slog.String("user_id", rl.userID))
				}
				logger.Error("panic recovered", args...)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
