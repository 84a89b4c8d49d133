package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/inkpost/internal/model"
)

const userColumns = `id, name, email, password_hash, federated_subject, bio, profile_pic, bookmarks, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var passwordHash, federatedSubject sql.NullString
	var bookmarks pq.StringArray
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &passwordHash, &federatedSubject,
		&user.Bio, &user.ProfilePic, &bookmarks, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = nullStringValue(passwordHash)
	user.FederatedSubject = nullStringValue(federatedSubject)
	user.Bookmarks = []string(bookmarks)
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// UUIDとして不正なIDも未検出として扱う。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user, err := r.findOne(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はemailでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, `email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByFederatedSubject は外部IdPのsubjectでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByFederatedSubject(ctx context.Context, subject string) (*model.User, error) {
	user, err := r.findOne(ctx, `federated_subject = $1`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by federated subject: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// emailの一意制約違反はErrDuplicateEmail、subjectの違反はErrDuplicateFederatedSubjectになる。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, federated_subject, bio, profile_pic, bookmarks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Name, user.Email, nullString(user.PasswordHash), nullString(user.FederatedSubject),
		user.Bio, user.ProfilePic, pq.Array(nonNil(user.Bookmarks)), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return translateUserConflict(err)
	}
	return nil
}

// Save はプロフィール項目と外部IdP subjectを更新する。
// email、パスワード、ブックマークは変更しない。
func (r *PostgresUserRepo) Save(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, bio = $3, profile_pic = $4, federated_subject = $5, updated_at = $6
		 WHERE id = $1`,
		user.ID, user.Name, user.Bio, user.ProfilePic, nullString(user.FederatedSubject), user.UpdatedAt,
	)
	if err != nil {
		return translateUserConflict(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// AddBookmark は記事IDをブックマーク末尾に追加する。
// 重複チェックと追加を1文で行うため、同時実行でも重複しない。
func (r *PostgresUserRepo) AddBookmark(ctx context.Context, userID, postID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET bookmarks = array_append(bookmarks, $2), updated_at = now()
		 WHERE id = $1 AND NOT ($2 = ANY(bookmarks))`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark は記事IDをブックマークから取り除く。
func (r *PostgresUserRepo) RemoveBookmark(ctx context.Context, userID, postID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET bookmarks = array_remove(bookmarks, $2), updated_at = now()
		 WHERE id = $1 AND $2 = ANY(bookmarks)`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

func translateUserConflict(err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "users_email_key":
			return fmt.Errorf("failed to write user: %w", ErrDuplicateEmail)
		case "users_federated_subject_key":
			return fmt.Errorf("failed to write user: %w", ErrDuplicateFederatedSubject)
		}
	}
	return fmt.Errorf("failed to write user: %w", err)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
