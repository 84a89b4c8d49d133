// Package token はHS256署名のアクセストークンを発行・検証する。
// トークンはステートレスで、失効リストは持たない。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid は署名不一致・形式不正・subject欠落などの検証失敗を表す。
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired は有効期限切れを表す。
	ErrTokenExpired = errors.New("token is expired")
)

// Claims は検証済みトークンから取り出した内容。
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Service はトークンの発行と検証を行う。
// 署名鍵は起動時に1回だけ読み込み、以後変更しない。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを生成する。
func NewService(secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue はユーザーIDをsubjectとするトークンを発行する。
func (s *Service) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("issue token: empty user id")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify はトークンの署名と有効期限を検証し、Claimsを返す。
// 失敗時はErrTokenInvalidまたはErrTokenExpiredをラップしたエラーを返す。
func (s *Service) Verify(tokenString string) (*Claims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return &Claims{
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
