package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/inkpost/internal/auth"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	FederatedSignIn(ctx context.Context, idToken string) (*auth.Result, error)
}

// AuthHandler はパスワード認証とGoogle連携のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedRequest struct {
	IDToken string `json:"id_token"`
	// Credential はGoogle Identity Servicesが返すフィールド名。
	Credential string `json:"credential"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register はパスワードでユーザーを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// Federated はGoogleのid_tokenでサインインする。
// POST /auth/federated, POST /auth/google
func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	idToken := req.IDToken
	if idToken == "" {
		idToken = req.Credential
	}

	result, err := h.service.FederatedSignIn(r.Context(), idToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

func toAuthResponse(result *auth.Result) authResponse {
	return authResponse{
		User:      toUserResponse(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}
}
