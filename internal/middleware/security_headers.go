package middleware

import "net/http"

// apiContentSecurityPolicy はJSON/XMLのみを返すAPI向けのCSP。
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はAPIレスポンスにセキュリティヘッダーを付与するミドルウェアを返す。
// hstsがtrueの場合のみStrict-Transport-Securityを付ける（BASE_URLがhttpsのとき）。
func NewSecurityHeadersMiddleware(hsts bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", apiContentSecurityPolicy)
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cross-Origin-Resource-Policy", "same-site")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			// Bearerトークン付きのレスポンスは共有キャッシュに載せない
			if r.Header.Get("Authorization") != "" {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
