package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/auth"
	"github.com/hitoshi/inkpost/internal/middleware"
	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/post"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn  func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	loginFn     func(ctx context.Context, email, password string) (*auth.Result, error)
	federatedFn func(ctx context.Context, idToken string) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) FederatedSignIn(ctx context.Context, idToken string) (*auth.Result, error) {
	if m.federatedFn != nil {
		return m.federatedFn(ctx, idToken)
	}
	return nil, nil
}

type mockPostService struct {
	createFn     func(ctx context.Context, authorID string, in post.CreateInput) (*model.Post, error)
	getFn        func(ctx context.Context, idOrSlug string) (*model.Post, error)
	updateFn     func(ctx context.Context, requesterID, postID string, patch model.PostPatch) (*model.Post, error)
	deleteFn     func(ctx context.Context, requesterID, postID string) error
	listFn       func(ctx context.Context, q model.ListQuery) (*model.PostPage, error)
	parseQueryFn func(page, limit, search, tags string) (model.ListQuery, error)
	toggleLikeFn func(ctx context.Context, userID, postID string) (*model.Post, error)
	addCommentFn func(ctx context.Context, userID, postID, text string) (*model.Post, error)
}

func (m *mockPostService) Create(ctx context.Context, authorID string, in post.CreateInput) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, authorID, in)
	}
	return nil, nil
}

func (m *mockPostService) Get(ctx context.Context, idOrSlug string) (*model.Post, error) {
	if m.getFn != nil {
		return m.getFn(ctx, idOrSlug)
	}
	return nil, model.NewPostNotFoundError(idOrSlug)
}

func (m *mockPostService) Update(ctx context.Context, requesterID, postID string, patch model.PostPatch) (*model.Post, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requesterID, postID, patch)
	}
	return nil, nil
}

func (m *mockPostService) Delete(ctx context.Context, requesterID, postID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, postID)
	}
	return nil
}

func (m *mockPostService) List(ctx context.Context, q model.ListQuery) (*model.PostPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return &model.PostPage{Page: q.Page}, nil
}

func (m *mockPostService) ParseListQuery(page, limit, search, tags string) (model.ListQuery, error) {
	if m.parseQueryFn != nil {
		return m.parseQueryFn(page, limit, search, tags)
	}
	return model.ListQuery{Page: 1, Limit: 10, Search: search}, nil
}

func (m *mockPostService) ToggleLike(ctx context.Context, userID, postID string) (*model.Post, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, userID, postID)
	}
	return nil, nil
}

func (m *mockPostService) AddComment(ctx context.Context, userID, postID, text string) (*model.Post, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, userID, postID, text)
	}
	return nil, nil
}

type mockUserService struct {
	getProfileFn     func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFn  func(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error)
	listBookmarksFn  func(ctx context.Context, userID string) ([]*model.Post, error)
	addBookmarkFn    func(ctx context.Context, userID, postID string) ([]string, error)
	removeBookmarkFn func(ctx context.Context, userID, postID string) ([]string, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return &model.User{ID: userID}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, upd)
	}
	return &model.User{ID: userID}, nil
}

func (m *mockUserService) ListBookmarks(ctx context.Context, userID string) ([]*model.Post, error) {
	if m.listBookmarksFn != nil {
		return m.listBookmarksFn(ctx, userID)
	}
	return []*model.Post{}, nil
}

func (m *mockUserService) AddBookmark(ctx context.Context, userID, postID string) ([]string, error) {
	if m.addBookmarkFn != nil {
		return m.addBookmarkFn(ctx, userID, postID)
	}
	return []string{postID}, nil
}

func (m *mockUserService) RemoveBookmark(ctx context.Context, userID, postID string) ([]string, error) {
	if m.removeBookmarkFn != nil {
		return m.removeBookmarkFn(ctx, userID, postID)
	}
	return []string{}, nil
}

type mockFeedBuilder struct {
	sitemapFn func(ctx context.Context) ([]byte, error)
	rssFn     func(ctx context.Context) ([]byte, error)
}

func (m *mockFeedBuilder) Sitemap(ctx context.Context) ([]byte, error) {
	if m.sitemapFn != nil {
		return m.sitemapFn(ctx)
	}
	return []byte("<urlset></urlset>"), nil
}

func (m *mockFeedBuilder) RSS(ctx context.Context) ([]byte, error) {
	if m.rssFn != nil {
		return m.rssFn(ctx)
	}
	return []byte(`<rss version="2.0"></rss>`), nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ PostServiceInterface = (*mockPostService)(nil)
var _ UserServiceInterface = (*mockUserService)(nil)
var _ FeedBuilder = (*mockFeedBuilder)(nil)

// --- テストヘルパー ---

// withUser はテスト用にリクエストコンテキストに認証済みユーザーを注入するヘルパー。
func withUser(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), &model.User{ID: userID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
