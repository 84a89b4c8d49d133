package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/post"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID string, in post.CreateInput) (*model.Post, error)
	Get(ctx context.Context, idOrSlug string) (*model.Post, error)
	Update(ctx context.Context, requesterID, postID string, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, requesterID, postID string) error
	List(ctx context.Context, q model.ListQuery) (*model.PostPage, error)
	ParseListQuery(page, limit, search, tags string) (model.ListQuery, error)
	ToggleLike(ctx context.Context, userID, postID string) (*model.Post, error)
	AddComment(ctx context.Context, userID, postID, text string) (*model.Post, error)
}

// PostHandler は記事のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

type createPostRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Image   string   `json:"image"`
}

type updatePostRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
	Image   *string   `json:"image"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type postPageResponse struct {
	Items []postResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// List は記事一覧を返す。sortパラメータは受け付けるが無視する。
// GET /content?page&limit&search&tags
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := h.service.ParseListQuery(q.Get("page"), q.Get("limit"), q.Get("search"), q.Get("tags"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, postPageResponse{
		Items: toPostResponses(page.Posts),
		Total: page.Total,
		Page:  page.Page,
		Pages: page.Pages,
	})
}

// Get はIDまたはslugで記事を返す。
// GET /content/{id}（IDまたはslug）
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Create は記事を作成する。
// POST /content
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), user.ID, post.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Image:   req.Image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// Update は所有者による部分更新を行う。
// PUT /content/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req updatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), model.PostPatch{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Image:   req.Image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Delete は所有者による削除を行う。
// DELETE /content/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ToggleLike はいいねを付け外しする。
// POST /content/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	p, err := h.service.ToggleLike(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// AddComment はコメントを追加する。
// POST /content/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.AddComment(r.Context(), user.ID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p))
}
