// Package user はプロフィールとブックマークのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

const (
	maxNameLength = 100
	maxBioLength  = 1000
)

// URLValidator はプロフィール画像URLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// PostLookup はブックマーク操作に必要な記事参照インターフェース。
// repository.PostRepositoryの部分集合として定義する。
type PostLookup interface {
	FindByID(ctx context.Context, id string) (*model.Post, error)
	ListByIDs(ctx context.Context, ids []string) ([]*model.Post, error)
}

// Service はプロフィールとブックマークのサービス層。
type Service struct {
	users repository.UserRepository
	posts PostLookup
	urls  URLValidator
	now   func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, posts PostLookup, urls URLValidator) *Service {
	return &Service{
		users: users,
		posts: posts,
		urls:  urls,
		now:   time.Now,
	}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateProfile は名前・自己紹介・プロフィール画像を部分更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, model.NewValidationError("Name must not be empty")
		}
		if len([]rune(name)) > maxNameLength {
			return nil, model.NewValidationError(fmt.Sprintf("Name must be at most %d characters", maxNameLength))
		}
		user.Name = name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if len([]rune(bio)) > maxBioLength {
			return nil, model.NewValidationError(fmt.Sprintf("Bio must be at most %d characters", maxBioLength))
		}
		user.Bio = bio
	}
	if upd.ProfilePic != nil {
		pic := strings.TrimSpace(*upd.ProfilePic)
		if pic != "" && s.urls != nil {
			if err := s.urls.ValidateURL(pic); err != nil {
				return nil, model.NewValidationError("Profile picture must be a public http(s) URL")
			}
		}
		user.ProfilePic = pic
	}
	user.UpdatedAt = s.now()

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return user.Public(), nil
}

// ListBookmarks はブックマークした記事をブックマーク順に返す。
// 削除済みの記事は含まない。
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]*model.Post, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Bookmarks) == 0 {
		return []*model.Post{}, nil
	}

	posts, err := s.posts.ListByIDs(ctx, user.Bookmarks)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarked posts: %w", err)
	}
	return posts, nil
}

// AddBookmark は記事をブックマークに追加する。既に追加済みでもエラーにしない。
func (s *Service) AddBookmark(ctx context.Context, userID, postID string) ([]string, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	if err := s.users.AddBookmark(ctx, userID, post.ID); err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return s.bookmarkIDs(ctx, userID)
}

// RemoveBookmark は記事をブックマークから外す。含まれていなくてもエラーにしない。
func (s *Service) RemoveBookmark(ctx context.Context, userID, postID string) ([]string, error) {
	if err := s.users.RemoveBookmark(ctx, userID, postID); err != nil {
		return nil, fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return s.bookmarkIDs(ctx, userID)
}

func (s *Service) bookmarkIDs(ctx context.Context, userID string) ([]string, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Bookmarks == nil {
		return []string{}, nil
	}
	return user.Bookmarks, nil
}

func (s *Service) find(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
