// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/inkpost/internal/middleware"
	"github.com/hitoshi/inkpost/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合はエラーレスポンスを書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewValidationError("Request body too large"))
	case errors.Is(err, io.EOF):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Request body is required"))
	default:
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid JSON body"))
	}
	return false
}

// requireUser は認証済みユーザーを取り出す。
// 認証ミドルウェアの外で呼ばれた場合は401を書き込んでnilを返す。
func requireUser(w http.ResponseWriter, r *http.Request) *model.User {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNoCredentialsError())
		return nil
	}
	return user
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// 重複エラーは409ではなく400で返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation,
		model.ErrCodeInvalidCredentials,
		model.ErrCodeNoPasswordSet,
		model.ErrCodeDuplicateIdentity,
		model.ErrCodeDuplicateSlug,
		model.ErrCodeFederatedTokenInvalid:
		return http.StatusBadRequest
	case model.ErrCodeNoCredentials, model.ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// --- レスポンス型 ---

type userResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Bio          string    `json:"bio"`
	ProfilePic   string    `json:"profilePic"`
	Bookmarks    []string  `json:"bookmarks"`
	GoogleLinked bool      `json:"googleLinked"`
	CreatedAt    time.Time `json:"createdAt"`
}

// toUserResponse はパスワードハッシュと外部IdP subjectを含まないユーザー表現を返す。
func toUserResponse(u *model.User) userResponse {
	bookmarks := u.Bookmarks
	if bookmarks == nil {
		bookmarks = []string{}
	}
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Bio:          u.Bio,
		ProfilePic:   u.ProfilePic,
		Bookmarks:    bookmarks,
		GoogleLinked: u.FederatedSubject != "",
		CreatedAt:    u.CreatedAt,
	}
}

type authorResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic"`
}

type postResponse struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags"`
	Image     string          `json:"image,omitempty"`
	Author    authorResponse  `json:"author"`
	Likes     []string        `json:"likes"`
	LikeCount int             `json:"likeCount"`
	Comments  []model.Comment `json:"comments"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toPostResponse(p *model.Post) postResponse {
	author := authorResponse{ID: p.AuthorID}
	if p.Author != nil {
		author = authorResponse{ID: p.Author.ID, Name: p.Author.Name, ProfilePic: p.Author.ProfilePic}
	}
	resp := postResponse{
		ID:        p.ID,
		Slug:      p.Slug,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      p.Tags,
		Image:     p.Image,
		Author:    author,
		Likes:     p.Likes,
		LikeCount: len(p.Likes),
		Comments:  p.Comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.Likes == nil {
		resp.Likes = []string{}
	}
	if resp.Comments == nil {
		resp.Comments = []model.Comment{}
	}
	return resp
}

func toPostResponses(posts []*model.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}
