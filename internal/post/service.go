// Package post は記事の作成・更新・削除・検索のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
	"github.com/hitoshi/inkpost/internal/security"
)

// URLValidator は画像URLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CreatedRecorder は記事作成のメトリクス記録インターフェース。
type CreatedRecorder interface {
	RecordPostCreated()
}

// maxPage はページ番号の上限。オフセット計算のオーバーフローを防ぐ。
const maxPage = math.MaxInt32 / 1000

// ServiceConfig は記事サービスの設定。
type ServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// CreateInput は記事作成の入力。
type CreateInput struct {
	Title   string
	Content string
	Tags    []string
	Image   string
}

// Service は記事に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizer
	urls      URLValidator
	slugs     *SlugGenerator
	metrics   CreatedRecorder
	config    ServiceConfig
	now       func() time.Time
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithSlugGenerator はslug生成器を差し替える。
func WithSlugGenerator(g *SlugGenerator) Option {
	return func(s *Service) { s.slugs = g }
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics は記事作成数の記録先を設定する。
func WithMetrics(m CreatedRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService はServiceを生成する。
func NewService(
	repo repository.PostRepository,
	sanitizer security.ContentSanitizer,
	urls URLValidator,
	config ServiceConfig,
	opts ...Option,
) *Service {
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 100
	}
	if config.DefaultPageSize <= 0 || config.DefaultPageSize > config.MaxPageSize {
		config.DefaultPageSize = min(10, config.MaxPageSize)
	}
	s := &Service{
		repo:      repo,
		sanitizer: sanitizer,
		urls:      urls,
		slugs:     NewSlugGenerator(),
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は記事を作成する。slugはタイトルから一度だけ生成し、以後変更しない。
// slugが衝突した場合は再試行せずDUPLICATE_SLUGを返す。
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*model.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("Title and content are required")
	}

	content := s.sanitizer.Sanitize(in.Content)
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("Content is empty after sanitization")
	}

	image := strings.TrimSpace(in.Image)
	if err := s.validateImage(image); err != nil {
		return nil, err
	}

	slug, err := s.slugs.NewSlug(title)
	if err != nil {
		return nil, fmt.Errorf("failed to generate slug: %w", err)
	}

	now := s.now()
	post := &model.Post{
		ID:        uuid.New().String(),
		Slug:      slug,
		Title:     title,
		Content:   content,
		BodyText:  PlainText(content),
		Tags:      NormalizeTags(in.Tags),
		Image:     image,
		AuthorID:  authorID,
		Likes:     []string{},
		Comments:  []model.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			slog.Warn("slug collision",
				slog.String("slug", slug),
				slog.String("author_id", authorID),
			)
			return nil, model.NewDuplicateSlugError(slug)
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPostCreated()
	}
	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("author_id", authorID),
		slog.String("slug", slug),
	)

	// 投稿者情報を含めて返す
	created, err := s.repo.FindByID(ctx, post.ID)
	if err != nil || created == nil {
		return post, nil
	}
	return created, nil
}

// Get はIDまたはslugで記事を取得する。
func (s *Service) Get(ctx context.Context, idOrSlug string) (*model.Post, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, model.NewPostNotFoundError(idOrSlug)
	}

	post, err := s.repo.FindByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(idOrSlug)
	}
	return post, nil
}

// Update は所有者による記事の部分更新を行う。
// 記事が存在しない場合はNOT_FOUND、所有者でない場合はFORBIDDENを返す。
func (s *Service) Update(ctx context.Context, requesterID, postID string, patch model.PostPatch) (*model.Post, error) {
	post, err := s.findOwned(ctx, requesterID, postID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, model.NewValidationError("Title must not be empty")
		}
		post.Title = title
	}
	if patch.Content != nil {
		content := s.sanitizer.Sanitize(*patch.Content)
		if strings.TrimSpace(content) == "" {
			return nil, model.NewValidationError("Content must not be empty")
		}
		post.Content = content
		post.BodyText = PlainText(content)
	}
	if patch.Tags != nil {
		post.Tags = NormalizeTags(*patch.Tags)
	}
	if patch.Image != nil {
		image := strings.TrimSpace(*patch.Image)
		if err := s.validateImage(image); err != nil {
			return nil, err
		}
		post.Image = image
	}
	post.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, post); err != nil {
		// 取得後に削除された場合
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, model.NewPostNotFoundError(postID)
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	slog.Info("post updated",
		slog.String("post_id", post.ID),
		slog.String("author_id", requesterID),
	)
	return post, nil
}

// Delete は所有者による記事の削除を行う。
func (s *Service) Delete(ctx context.Context, requesterID, postID string) error {
	post, err := s.findOwned(ctx, requesterID, postID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return model.NewPostNotFoundError(postID)
		}
		return fmt.Errorf("failed to delete post: %w", err)
	}

	slog.Info("post deleted",
		slog.String("post_id", post.ID),
		slog.String("author_id", requesterID),
	)
	return nil
}

// List は検索条件に一致する記事を新しい順に1ページ分返す。
func (s *Service) List(ctx context.Context, q model.ListQuery) (*model.PostPage, error) {
	if q.Page < 1 || q.Page > maxPage {
		return nil, model.NewValidationError(fmt.Sprintf("page must be between 1 and %d", maxPage))
	}
	if q.Limit < 1 || q.Limit > s.config.MaxPageSize {
		return nil, model.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", s.config.MaxPageSize))
	}

	posts, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return &model.PostPage{
		Posts: posts,
		Total: total,
		Page:  q.Page,
		Pages: model.PageCount(total, q.Limit),
	}, nil
}

// ParseListQuery はクエリ文字列の値からListQueryを組み立てる。
// 空のpage/limitはデフォルト値になる。tagsはカンマ区切り。
func (s *Service) ParseListQuery(page, limit, search, tags string) (model.ListQuery, error) {
	q := model.ListQuery{
		Page:   1,
		Limit:  s.config.DefaultPageSize,
		Search: strings.TrimSpace(search),
	}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 || n > maxPage {
			return q, model.NewValidationError(fmt.Sprintf("page must be between 1 and %d", maxPage))
		}
		q.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > s.config.MaxPageSize {
			return q, model.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", s.config.MaxPageSize))
		}
		q.Limit = n
	}
	if tags != "" {
		q.Tags = NormalizeTags(strings.Split(tags, ","))
	}
	return q, nil
}

// ToggleLike はユーザーのいいねを付け外しする。
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (*model.Post, error) {
	post, err := s.repo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// AddComment は記事にコメントを追加する。マークアップは取り除いてプレーンテキストで保存する。
func (s *Service) AddComment(ctx context.Context, userID, postID, text string) (*model.Post, error) {
	content := PlainText(text)
	if content == "" {
		return nil, model.NewValidationError("Comment content is required")
	}

	comment := model.Comment{
		ID:        uuid.New().String(),
		AuthorID:  userID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}

	post, err := s.repo.AppendComment(ctx, postID, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// findOwned は記事を取得し、要求者が所有者であることを確認する。
func (s *Service) findOwned(ctx context.Context, requesterID, postID string) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if !model.CanMutate(requesterID, post.AuthorID) {
		slog.Warn("post mutation denied",
			slog.String("post_id", postID),
			slog.String("requester_id", requesterID),
		)
		return nil, model.NewForbiddenError()
	}
	return post, nil
}

func (s *Service) validateImage(image string) error {
	if image == "" || s.urls == nil {
		return nil
	}
	if err := s.urls.ValidateURL(image); err != nil {
		return model.NewValidationError("Image must be a public http(s) URL")
	}
	return nil
}

// NormalizeTags は前後の空白を除き、空要素と重複を取り除く。順序は保持する。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
