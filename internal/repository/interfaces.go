// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/inkpost/internal/model"
)

var (
	// ErrDuplicateEmail はemailの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateFederatedSubject は外部IdP subjectの一意制約違反を表す。
	ErrDuplicateFederatedSubject = errors.New("federated subject already linked")
	// ErrDuplicateSlug はslugの一意制約違反を表す。
	ErrDuplicateSlug = errors.New("slug already exists")
	// ErrPostNotFound は更新・削除の対象記事が存在しないことを表す。
	ErrPostNotFound = errors.New("post not found")
)

// UserRepository はユーザー（Credential Store）の永続化インターフェース。
// emailは呼び出し側で正規化済みであることを前提とする。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByFederatedSubject は外部IdPのsubjectでユーザーを取得する。見つからない場合はnilを返す。
	FindByFederatedSubject(ctx context.Context, subject string) (*model.User, error)

	// Create はユーザーを作成する。email重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Save はプロフィール項目と外部IdP subjectを更新する。
	Save(ctx context.Context, user *model.User) error

	// AddBookmark は記事IDをブックマーク末尾に追加する。既に含まれていれば何もしない。
	AddBookmark(ctx context.Context, userID, postID string) error

	// RemoveBookmark は記事IDをブックマークから取り除く。含まれていなくてもエラーにしない。
	RemoveBookmark(ctx context.Context, userID, postID string) error
}

// PostRepository は記事（Content）の永続化インターフェース。
type PostRepository interface {
	// Create は記事を作成する。slug重複時はErrDuplicateSlugを返す。
	Create(ctx context.Context, post *model.Post) error

	// FindByIDOrSlug はIDまたはslugのどちらかに一致する記事を1クエリで取得する。
	// 見つからない場合はnilを返す。
	FindByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Update はタイトル・本文・タグ・画像を更新する。slugと投稿者は変更しない。
	// 対象がない場合はErrPostNotFoundを返す。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの記事を削除する。対象がない場合はErrPostNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// List は検索条件に一致する記事を新しい順に1ページ分取得し、総件数と共に返す。
	List(ctx context.Context, q model.ListQuery) ([]*model.Post, int, error)

	// ListByIDs は指定IDの記事を指定順で取得する。存在しないIDは無視する。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Post, error)

	// Latest は新しい順に最大limit件の記事を取得する。
	Latest(ctx context.Context, limit int) ([]*model.Post, error)

	// ToggleLike はユーザーのいいねを付け外しし、更新後の記事を返す。
	// 記事が存在しない場合はnilを返す。
	ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error)

	// AppendComment はコメントを末尾に追加し、更新後の記事を返す。
	// 記事が存在しない場合はnilを返す。
	AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error)
}

// Pinger はデータベース疎通確認用のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
