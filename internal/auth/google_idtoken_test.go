package auth

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/idtoken"
)

type mockIDTokenValidator struct {
	validateFn func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

func (m *mockIDTokenValidator) Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
	return m.validateFn(ctx, idToken, audience)
}

var _ IDTokenValidator = (*mockIDTokenValidator)(nil)

func validPayload() *idtoken.Payload {
	return &idtoken.Payload{
		Issuer:   "https://accounts.google.com",
		Audience: "client-id",
		Subject:  "1234567890",
		Claims: map[string]interface{}{
			"email":          "user@example.com",
			"email_verified": true,
			"name":           "Test User",
			"picture":        "https://lh3.example.com/photo.jpg",
		},
	}
}

func TestGoogleIDTokenVerifier_Verify(t *testing.T) {
	var gotAudience string
	v := NewGoogleIDTokenVerifierWithValidator(&mockIDTokenValidator{
		validateFn: func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
			gotAudience = audience
			return validPayload(), nil
		},
	}, "client-id")

	claims, err := v.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotAudience != "client-id" {
		t.Errorf("audience = %q, want client-id", gotAudience)
	}
	if claims.Subject != "1234567890" || claims.Email != "user@example.com" || claims.Name != "Test User" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Picture != "https://lh3.example.com/photo.jpg" {
		t.Errorf("Picture = %q", claims.Picture)
	}
}

func TestGoogleIDTokenVerifier_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		payload func() *idtoken.Payload
		err     error
	}{
		{name: "空トークン", token: "  "},
		{name: "検証エラー", token: "t", err: errors.New("idtoken: token expired")},
		{name: "不正なissuer", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			p.Issuer = "https://evil.example.com"
			return p
		}},
		{name: "subjectなし", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			p.Subject = ""
			return p
		}},
		{name: "emailなし", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			delete(p.Claims, "email")
			return p
		}},
		{name: "email未確認", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			p.Claims["email"] = "victim@example.com"
			p.Claims["email_verified"] = false
			return p
		}},
		{name: "email_verified欠落", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			delete(p.Claims, "email_verified")
			return p
		}},
		{name: "email_verifiedが文字列false", token: "t", payload: func() *idtoken.Payload {
			p := validPayload()
			p.Claims["email_verified"] = "false"
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewGoogleIDTokenVerifierWithValidator(&mockIDTokenValidator{
				validateFn: func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return tt.payload(), nil
				},
			}, "client-id")

			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrFederatedTokenInvalid) {
				t.Fatalf("err = %v, want ErrFederatedTokenInvalid", err)
			}
		})
	}
}

func TestGoogleIDTokenVerifier_AcceptsBareIssuer(t *testing.T) {
	v := NewGoogleIDTokenVerifierWithValidator(&mockIDTokenValidator{
		validateFn: func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
			p := validPayload()
			p.Issuer = "accounts.google.com"
			return p, nil
		},
	}, "client-id")

	if _, err := v.Verify(context.Background(), "t"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestGoogleIDTokenVerifier_AcceptsStringEmailVerified(t *testing.T) {
	v := NewGoogleIDTokenVerifierWithValidator(&mockIDTokenValidator{
		validateFn: func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
			p := validPayload()
			p.Claims["email_verified"] = "true"
			return p, nil
		},
	}, "client-id")

	if _, err := v.Verify(context.Background(), "t"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
