// Package auth はパスワード認証とGoogle連携によるサインイン、トークン発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/inkpost/internal/metrics"
	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// 認証方式（メトリクスのラベル）
const (
	MethodRegister  = "register"
	MethodPassword  = "password"
	MethodFederated = "federated"
)

const minPasswordLength = 8

// TokenIssuer はトークン発行のインターフェース。
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// AttemptRecorder は認証試行のメトリクス記録インターフェース。
type AttemptRecorder interface {
	RecordAuthAttempt(method, outcome string)
}

// Result は認証成功時の結果。Userはパスワードハッシュを含まない。
type Result struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput はパスワード登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	hasher    *PasswordHasher
	tokens    TokenIssuer
	federated FederatedVerifier
	metrics   AttemptRecorder
	now       func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	users repository.UserRepository,
	hasher *PasswordHasher,
	tokens TokenIssuer,
	federated FederatedVerifier,
	metrics AttemptRecorder,
) *Service {
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		federated: federated,
		metrics:   metrics,
		now:       time.Now,
	}
}

// NormalizeEmail は前後の空白を除いて小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はパスワードでユーザーを登録し、トークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (result *Result, err error) {
	defer func() { s.record(MethodRegister, err) }()

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, model.NewValidationError("Name, email and password are required")
	}
	if _, perr := mail.ParseAddress(email); perr != nil {
		return nil, model.NewValidationError("Invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Bookmarks:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateIdentityError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// メールアドレスが未登録の場合もダミーハッシュと比較し、応答時間で存在を推測させない。
func (s *Service) Login(ctx context.Context, email, password string) (result *Result, err error) {
	defer func() { s.record(MethodPassword, err) }()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("Email and password are required")
	}

	// 72バイトを超えるパスワードは先頭72バイトだけで一致してしまうため照合しない
	if len(password) > MaxPasswordBytes {
		s.hasher.CompareDummy(password[:MaxPasswordBytes])
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.hasher.CompareDummy(password)
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.HasPassword() {
		return nil, model.NewNoPasswordSetError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("password mismatch", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issue(user)
}

// FederatedSignIn はGoogleのid_tokenでサインインする。
// subjectで既存ユーザーを探し、なければ同じメールアドレスのユーザーに連携する。
// どちらもなければパスワードなしのユーザーを作成する。
func (s *Service) FederatedSignIn(ctx context.Context, idToken string) (result *Result, err error) {
	defer func() { s.record(MethodFederated, err) }()

	claims, err := s.federated.Verify(ctx, idToken)
	if err != nil {
		slog.Warn("federated token rejected", slog.String("error", err.Error()))
		return nil, model.NewFederatedTokenInvalidError()
	}

	user, err := s.users.FindByFederatedSubject(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by subject: %w", err)
	}
	if user != nil {
		return s.issue(user)
	}

	email := NormalizeEmail(claims.Email)
	user, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user != nil {
		if user.FederatedSubject != "" && user.FederatedSubject != claims.Subject {
			slog.Warn("email already linked to another federated subject", slog.String("user_id", user.ID))
			return nil, model.NewDuplicateIdentityError()
		}
		user.FederatedSubject = claims.Subject
		if user.ProfilePic == "" {
			user.ProfilePic = claims.Picture
		}
		user.UpdatedAt = s.now()
		if err := s.users.Save(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateFederatedSubject) {
				return nil, model.NewDuplicateIdentityError()
			}
			return nil, fmt.Errorf("failed to link federated subject: %w", err)
		}
		slog.Info("federated subject linked", slog.String("user_id", user.ID))
		return s.issue(user)
	}

	name := claims.Name
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	now := s.now()
	user = &model.User{
		ID:               uuid.New().String(),
		Name:             name,
		Email:            email,
		FederatedSubject: claims.Subject,
		ProfilePic:       claims.Picture,
		Bookmarks:        []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) || errors.Is(err, repository.ErrDuplicateFederatedSubject) {
			return nil, model.NewDuplicateIdentityError()
		}
		return nil, fmt.Errorf("failed to create federated user: %w", err)
	}

	slog.Info("federated user created", slog.String("user_id", user.ID))
	return s.issue(user)
}

func (s *Service) issue(user *model.User) (*Result, error) {
	tok, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Result{User: user.Public(), Token: tok, ExpiresAt: expiresAt}, nil
}

func (s *Service) record(method string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.RecordAuthAttempt(method, outcome)
}
