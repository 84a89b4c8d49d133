package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/inkpost/internal/model"
)

// postSelect は投稿者情報をJOINした記事取得用のSELECT句。
// 呼び出し側でFROM句のエイリアスpを用意する。
const postSelect = `SELECT p.id, p.slug, p.title, p.content, p.body_text, p.tags, p.image, p.author_id,
	p.likes, p.comments, p.created_at, p.updated_at, u.name, u.profile_pic`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{Author: &model.Author{}}
	var image sql.NullString
	var tags, likes pq.StringArray
	var comments []byte
	err := row.Scan(
		&post.ID, &post.Slug, &post.Title, &post.Content, &post.BodyText, &tags, &image, &post.AuthorID,
		&likes, &comments, &post.CreatedAt, &post.UpdatedAt, &post.Author.Name, &post.Author.ProfilePic,
	)
	if err != nil {
		return nil, err
	}
	post.Image = nullStringValue(image)
	post.Tags = []string(tags)
	post.Likes = []string(likes)
	post.Author.ID = post.AuthorID
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &post.Comments); err != nil {
			return nil, fmt.Errorf("failed to decode comments: %w", err)
		}
	}
	return post, nil
}

func (r *PostgresPostRepo) queryPosts(ctx context.Context, query string, args ...any) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostgresPostRepo) queryPost(ctx context.Context, query string, args ...any) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Create は記事を作成する。slugの一意制約違反はErrDuplicateSlugになる。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	comments, err := json.Marshal(nonNilComments(post.Comments))
	if err != nil {
		return fmt.Errorf("failed to encode comments: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO posts (id, slug, title, content, body_text, tags, image, author_id, likes, comments, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, post.Slug, post.Title, post.Content, post.BodyText, pq.Array(nonNil(post.Tags)),
		nullString(post.Image), post.AuthorID, pq.Array(nonNil(post.Likes)), comments,
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "posts_slug_key" {
			return fmt.Errorf("failed to insert post: %w", ErrDuplicateSlug)
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByIDOrSlug はIDまたはslugに一致する記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error) {
	post, err := r.queryPost(ctx,
		postSelect+` FROM posts p JOIN users u ON u.id = p.author_id
		 WHERE p.slug = $1 OR p.id::text = $1
		 LIMIT 1`,
		idOrSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find post by id or slug: %w", err)
	}
	return post, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if !isUUID(id) {
		return nil, nil
	}
	post, err := r.queryPost(ctx,
		postSelect+` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// Update はタイトル・本文・タグ・画像を更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts
		 SET title = $2, content = $3, body_text = $4, tags = $5, image = $6, updated_at = $7
		 WHERE id = $1`,
		post.ID, post.Title, post.Content, post.BodyText, pq.Array(nonNil(post.Tags)),
		nullString(post.Image), post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPostNotFound, post.ID)
	}
	return nil
}

// Delete は指定IDの記事を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	return nil
}

// List は検索条件に一致する記事を created_at DESC, id DESC の順に1ページ分取得する。
// 総件数は同じ条件で別途COUNTする。
func (r *PostgresPostRepo) List(ctx context.Context, q model.ListQuery) ([]*model.Post, int, error) {
	var conds []string
	var args []any

	if tsq := SearchQuery(q.Search); tsq != "" {
		args = append(args, tsq)
		conds = append(conds, fmt.Sprintf("p.search_vector @@ to_tsquery('english', $%d)", len(args)))
	}
	if len(q.Tags) > 0 {
		args = append(args, pq.Array(q.Tags))
		conds = append(conds, fmt.Sprintf("p.tags && $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	posts, err := r.queryPosts(ctx,
		postSelect+` FROM posts p JOIN users u ON u.id = p.author_id`+where+
			fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, total, nil
}

// ListByIDs は指定IDの記事をidsの順序で取得する。
func (r *PostgresPostRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	if len(ids) == 0 {
		return []*model.Post{}, nil
	}
	posts, err := r.queryPosts(ctx,
		postSelect+` FROM posts p JOIN users u ON u.id = p.author_id
		 WHERE p.id::text = ANY($1)
		 ORDER BY array_position($1::text[], p.id::text)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by ids: %w", err)
	}
	return posts, nil
}

// Latest は新しい順に最大limit件の記事を取得する。
func (r *PostgresPostRepo) Latest(ctx context.Context, limit int) ([]*model.Post, error) {
	posts, err := r.queryPosts(ctx,
		postSelect+` FROM posts p JOIN users u ON u.id = p.author_id
		 ORDER BY p.created_at DESC, p.id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest posts: %w", err)
	}
	return posts, nil
}

// ToggleLike はユーザーIDがlikesに含まれていれば取り除き、含まれていなければ追加する。
// 判定と更新は1文で行う。
func (r *PostgresPostRepo) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	if !isUUID(postID) {
		return nil, nil
	}
	post, err := r.queryPost(ctx,
		`WITH p AS (
			UPDATE posts
			SET likes = CASE WHEN $2 = ANY(likes) THEN array_remove(likes, $2) ELSE array_append(likes, $2) END,
			    updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		`+postSelect+` FROM p JOIN users u ON u.id = p.author_id`,
		postID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	return post, nil
}

// AppendComment はコメントをcomments配列の末尾に追加する。
func (r *PostgresPostRepo) AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error) {
	if !isUUID(postID) {
		return nil, nil
	}
	encoded, err := json.Marshal(comment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode comment: %w", err)
	}
	post, err := r.queryPost(ctx,
		`WITH p AS (
			UPDATE posts
			SET comments = comments || jsonb_build_array($2::jsonb), updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		`+postSelect+` FROM p JOIN users u ON u.id = p.author_id`,
		postID, string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append comment: %w", err)
	}
	return post, nil
}

// SearchQuery は検索文字列から英数字の語を取り出し、OR結合したtsquery文字列を返す。
// 語が1つもなければ空文字列を返す。
func SearchQuery(search string) string {
	terms := strings.FieldsFunc(strings.ToLower(search), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(terms, " | ")
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func nonNilComments(cs []model.Comment) []model.Comment {
	if cs == nil {
		return []model.Comment{}
	}
	return cs
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
