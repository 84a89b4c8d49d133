package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// ErrFederatedTokenInvalid は外部IdPのid_tokenを受け入れられない場合のエラー。
var ErrFederatedTokenInvalid = errors.New("federated token invalid")

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// FederatedClaims はid_tokenから取り出したユーザー情報。
type FederatedClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// FederatedVerifier は外部IdPのid_token検証インターフェース。
type FederatedVerifier interface {
	Verify(ctx context.Context, idToken string) (*FederatedClaims, error)
}

// IDTokenValidator はidtoken.Validatorの抽象化。テストで差し替える。
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleIDTokenVerifier はGoogleのid_tokenを検証する。
// 署名・有効期限・audienceの検証はidtokenパッケージに任せ、issuerとclaimを追加で確認する。
type GoogleIDTokenVerifier struct {
	validator IDTokenValidator
	clientID  string
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
// 公開鍵の取得にはhttpClientを使う。
func NewGoogleIDTokenVerifier(ctx context.Context, clientID string, httpClient *http.Client) (*GoogleIDTokenVerifier, error) {
	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}
	return NewGoogleIDTokenVerifierWithValidator(v, clientID), nil
}

// NewGoogleIDTokenVerifierWithValidator は任意のValidatorでGoogleIDTokenVerifierを生成する。
func NewGoogleIDTokenVerifierWithValidator(v IDTokenValidator, clientID string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{validator: v, clientID: clientID}
}

// Verify はid_tokenを検証してFederatedClaimsを返す。
// 失敗理由に関わらずErrFederatedTokenInvalidでラップして返す。
func (g *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken string) (*FederatedClaims, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrFederatedTokenInvalid)
	}

	payload, err := g.validator.Validate(ctx, idToken, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFederatedTokenInvalid, err)
	}

	if !isGoogleIssuer(payload.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrFederatedTokenInvalid, payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrFederatedTokenInvalid)
	}

	claims := &FederatedClaims{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrFederatedTokenInvalid)
	}
	// 未確認のメールアドレスで既存アカウントに連携させない
	if !claimBool(payload.Claims, "email_verified") {
		return nil, fmt.Errorf("%w: email not verified", ErrFederatedTokenInvalid)
	}
	return claims, nil
}

func isGoogleIssuer(iss string) bool {
	for _, allowed := range googleIssuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// claimBool はboolまたは"true"/"false"文字列のclaimを読む。欠落はfalse。
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// compile-time interface check
var _ FederatedVerifier = (*GoogleIDTokenVerifier)(nil)
