// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはそのままクライアントに返すため、内部情報を含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeNoPasswordSet         = "NO_PASSWORD_SET"
	ErrCodeNoCredentials         = "NO_CREDENTIALS"
	ErrCodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodePostNotFound          = "POST_NOT_FOUND"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	ErrCodeDuplicateSlug         = "DUPLICATE_SLUG"
	ErrCodeFederatedTokenInvalid = "FEDERATED_TOKEN_INVALID"
)

// NewValidationError は入力値エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードの不一致エラーを生成する。
// どちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
	}
}

// NewNoPasswordSetError はGoogle連携のみのユーザーがパスワードログインした場合のエラーを生成する。
func NewNoPasswordSetError() *APIError {
	return &APIError{
		Code:     ErrCodeNoPasswordSet,
		Message:  "Use Google sign-in",
		Category: "auth",
	}
}

// NewNoCredentialsError はAuthorizationヘッダーがない場合のエラーを生成する。
func NewNoCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoCredentials,
		Message:  "No token",
		Category: "auth",
	}
}

// NewAuthenticationFailedError はトークン検証またはユーザー解決に失敗した場合のエラーを生成する。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "Authentication failed",
		Category: "auth",
	}
}

// NewForbiddenError は所有者以外による変更操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Not allowed",
		Category: "auth",
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(idOrSlug string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Post not found: %s", idOrSlug),
		Category: "content",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewDuplicateIdentityError はメールアドレスまたは連携アカウントの重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "Email in use",
		Category: "validation",
	}
}

// NewDuplicateSlugError はslugの一意制約違反エラーを生成する。
func NewDuplicateSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlug,
		Message:  fmt.Sprintf("Slug already exists: %s", slug),
		Category: "content",
	}
}

// NewFederatedTokenInvalidError は外部IdPトークンの検証失敗エラーを生成する。
func NewFederatedTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeFederatedTokenInvalid,
		Message:  "Federated sign-in failed",
		Category: "auth",
	}
}
