package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error)
	ListBookmarks(ctx context.Context, userID string) ([]*model.Post, error)
	AddBookmark(ctx context.Context, userID, postID string) ([]string, error)
	RemoveBookmark(ctx context.Context, userID, postID string) ([]string, error)
}

// UserHandler はプロフィールとブックマークのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateProfileRequest struct {
	Name       *string `json:"name"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profilePic"`
}

type bookmarksResponse struct {
	Bookmarks []string `json:"bookmarks"`
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(profile))
}

// UpdateProfile はプロフィールを部分更新する。
// PUT /profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), user.ID, model.ProfileUpdate{
		Name:       req.Name,
		Bio:        req.Bio,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(profile))
}

// ListBookmarks はブックマークした記事を返す。
// GET /bookmarks
func (h *UserHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	posts, err := h.service.ListBookmarks(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]postResponse{"items": toPostResponses(posts)})
}

// AddBookmark は記事をブックマークに追加する。
// POST /bookmarks/{postID}
func (h *UserHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	ids, err := h.service.AddBookmark(r.Context(), user.ID, chi.URLParam(r, "postID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: ids})
}

// RemoveBookmark は記事をブックマークから外す。
// DELETE /bookmarks/{postID}
func (h *UserHandler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	ids, err := h.service.RemoveBookmark(r.Context(), user.ID, chi.URLParam(r, "postID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: ids})
}
