// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーが執筆した記事を表す。
// Slugは作成時に一度だけ決まり、タイトルを変更しても再計算しない。
type Post struct {
	ID       string
	Slug     string
	Title    string
	Content  string // サニタイズ済みHTML
	BodyText string // 検索インデックス用のプレーンテキスト
	Tags     []string
	Image    string
	AuthorID string

	// Author は一覧・詳細取得時にJOINされる投稿者情報。
	Author *Author

	Likes    []string
	Comments []Comment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Author は記事に埋め込む投稿者の公開プロフィール。
type Author struct {
	ID         string
	Name       string
	ProfilePic string
}

// Comment は記事に埋め込まれるコメント。
// モデレーションは行わず、追記のみ。
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostPatch は記事更新の部分パッチ。nilのフィールドは変更しない。
type PostPatch struct {
	Title   *string
	Content *string
	Tags    *[]string
	Image   *string
}

// ListQuery は記事一覧の検索条件。
type ListQuery struct {
	Page   int
	Limit  int
	Search string   // 空文字列は検索なし
	Tags   []string // いずれかに一致（OR）
}

// Offset はページ番号から読み飛ばす件数を返す。
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PostPage は記事一覧の1ページ分の結果。
type PostPage struct {
	Posts []*Post
	Total int
	Page  int
	Pages int
}

// PageCount は総件数とページサイズからページ数を切り上げで計算する。
func PageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// CanMutate は記事の更新・削除が許可されるかを判定する。
// 更新と削除の両方で同じ判定を使う。
func CanMutate(requesterID, ownerID string) bool {
	return requesterID != "" && requesterID == ownerID
}
