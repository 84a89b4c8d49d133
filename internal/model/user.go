// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービスに登録されたユーザー（Identity）を表す。
// パスワード認証とGoogle連携のどちらか、または両方で認証できる。
type User struct {
	ID    string
	Name  string
	Email string // 小文字に正規化済み

	// PasswordHash はbcryptハッシュ。Google連携のみのユーザーは空。
	PasswordHash string
	// FederatedSubject は外部IdPのsubject。未連携の場合は空。
	FederatedSubject string

	Bio        string
	ProfilePic string

	// Bookmarks はブックマークした記事IDの順序付き集合（重複なし）。
	Bookmarks []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword はパスワードログインが可能なユーザーかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Public はパスワードハッシュを除いたコピーを返す。
// リクエストコンテキストやレスポンスにはこちらを渡す。
func (u *User) Public() *User {
	cp := *u
	cp.PasswordHash = ""
	if u.Bookmarks != nil {
		cp.Bookmarks = append([]string(nil), u.Bookmarks...)
	}
	return &cp
}

// ProfileUpdate はプロフィール更新の部分パッチ。nilのフィールドは変更しない。
type ProfileUpdate struct {
	Name       *string
	Bio        *string
	ProfilePic *string
}
