package post

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
	"github.com/hitoshi/inkpost/internal/security"
)

// --- インメモリリポジトリ ---

type memPostRepo struct {
	posts     map[string]*model.Post
	createErr error
	// beforeWrite はUpdate/Deleteの直前に呼ばれる。取得後の並行削除を再現する。
	beforeWrite func(id string)
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[string]*model.Post)}
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Likes = append([]string(nil), p.Likes...)
	cp.Comments = append([]model.Comment(nil), p.Comments...)
	return &cp
}

func (m *memPostRepo) Create(ctx context.Context, post *model.Post) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, p := range m.posts {
		if p.Slug == post.Slug {
			return fmt.Errorf("insert: %w", repository.ErrDuplicateSlug)
		}
	}
	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *memPostRepo) FindByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error) {
	for _, p := range m.posts {
		if p.ID == idOrSlug || p.Slug == idOrSlug {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (m *memPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if p, ok := m.posts[id]; ok {
		return clonePost(p), nil
	}
	return nil, nil
}

func (m *memPostRepo) Update(ctx context.Context, post *model.Post) error {
	if m.beforeWrite != nil {
		m.beforeWrite(post.ID)
	}
	stored, ok := m.posts[post.ID]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrPostNotFound, post.ID)
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.BodyText = post.BodyText
	stored.Tags = post.Tags
	stored.Image = post.Image
	stored.UpdatedAt = post.UpdatedAt
	return nil
}

func (m *memPostRepo) Delete(ctx context.Context, id string) error {
	if m.beforeWrite != nil {
		m.beforeWrite(id)
	}
	if _, ok := m.posts[id]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrPostNotFound, id)
	}
	delete(m.posts, id)
	return nil
}

func (m *memPostRepo) sorted() []*model.Post {
	all := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		all = append(all, clonePost(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all
}

func (m *memPostRepo) List(ctx context.Context, q model.ListQuery) ([]*model.Post, int, error) {
	var matched []*model.Post
	for _, p := range m.sorted() {
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.BodyText), strings.ToLower(q.Search)) {
			continue
		}
		if len(q.Tags) > 0 && !anyTag(p.Tags, q.Tags) {
			continue
		}
		matched = append(matched, p)
	}
	start := min(q.Offset(), len(matched))
	end := min(start+q.Limit, len(matched))
	return matched[start:end], len(matched), nil
}

func anyTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (m *memPostRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	var out []*model.Post
	for _, id := range ids {
		if p, ok := m.posts[id]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (m *memPostRepo) Latest(ctx context.Context, limit int) ([]*model.Post, error) {
	all := m.sorted()
	return all[:min(limit, len(all))], nil
}

func (m *memPostRepo) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	p, ok := m.posts[postID]
	if !ok {
		return nil, nil
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return clonePost(p), nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return clonePost(p), nil
}

func (m *memPostRepo) AppendComment(ctx context.Context, postID string, comment model.Comment) (*model.Post, error) {
	p, ok := m.posts[postID]
	if !ok {
		return nil, nil
	}
	p.Comments = append(p.Comments, comment)
	return clonePost(p), nil
}

type mockURLValidator struct {
	validateFn func(rawURL string) error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

type countingRecorder struct{ created int }

func (c *countingRecorder) RecordPostCreated() { c.created++ }

// --- ヘルパー ---

func newTestService(repo *memPostRepo, opts ...Option) *Service {
	return NewService(repo, security.NewContentSanitizer(), &mockURLValidator{}, ServiceConfig{DefaultPageSize: 10, MaxPageSize: 100}, opts...)
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Fatalf("error code = %s, want %s", apiErr.Code, code)
	}
}

func mustCreate(t *testing.T, svc *Service, authorID, title string) *model.Post {
	t.Helper()
	p, err := svc.Create(context.Background(), authorID, CreateInput{Title: title, Content: "<p>body of " + title + "</p>"})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return p
}

// --- テスト ---

func TestService_Create(t *testing.T) {
	repo := newMemPostRepo()
	rec := &countingRecorder{}
	svc := newTestService(repo, WithMetrics(rec))

	p, err := svc.Create(context.Background(), "user-a", CreateInput{
		Title:   "  Hello World  ",
		Content: "<script>alert(1)</script><b>hi</b>",
		Tags:    []string{" go ", "", "web", "go"},
		Image:   "https://cdn.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.Title != "Hello World" {
		t.Errorf("Title = %q, want %q", p.Title, "Hello World")
	}
	if p.Content != "<b>hi</b>" {
		t.Errorf("Content = %q, want %q", p.Content, "<b>hi</b>")
	}
	if p.BodyText != "hi" {
		t.Errorf("BodyText = %q, want %q", p.BodyText, "hi")
	}
	if !strings.HasPrefix(p.Slug, "hello-world-") {
		t.Errorf("Slug = %q, want prefix hello-world-", p.Slug)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "web" {
		t.Errorf("Tags = %v, want [go web]", p.Tags)
	}
	if p.AuthorID != "user-a" {
		t.Errorf("AuthorID = %q, want user-a", p.AuthorID)
	}
	if rec.created != 1 {
		t.Errorf("RecordPostCreated called %d times, want 1", rec.created)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(newMemPostRepo())

	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "タイトルなし", in: CreateInput{Title: "  ", Content: "<p>x</p>"}},
		{name: "本文なし", in: CreateInput{Title: "t", Content: ""}},
		{name: "サニタイズ後に本文が空", in: CreateInput{Title: "t", Content: "<script>x()</script>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-a", tt.in)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}
}

func TestService_Create_RejectsUnsafeImage(t *testing.T) {
	repo := newMemPostRepo()
	svc := NewService(repo, security.NewContentSanitizer(), security.NewURLGuard(), ServiceConfig{})

	_, err := svc.Create(context.Background(), "user-a", CreateInput{
		Title: "t", Content: "<p>x</p>", Image: "http://169.254.169.254/latest",
	})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
	if len(repo.posts) != 0 {
		t.Error("post must not be stored when image is rejected")
	}
}

func TestService_Create_DuplicateSlug(t *testing.T) {
	repo := newMemPostRepo()
	repo.createErr = fmt.Errorf("insert: %w", repository.ErrDuplicateSlug)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "user-a", CreateInput{Title: "t", Content: "<p>x</p>"})
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateSlug)
}

func TestService_SameTitleDistinctSlugs(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a := mustCreate(t, svc, "user-a", "Same Title")
	b := mustCreate(t, svc, "user-b", "Same Title")

	if a.Slug == b.Slug {
		t.Fatalf("slugs must differ, both %q", a.Slug)
	}

	for _, want := range []*model.Post{a, b} {
		got, err := svc.Get(ctx, want.Slug)
		if err != nil {
			t.Fatalf("Get(%q): %v", want.Slug, err)
		}
		if got.ID != want.ID {
			t.Errorf("Get(%q).ID = %q, want %q", want.Slug, got.ID, want.ID)
		}
	}
}

func TestService_Get(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := mustCreate(t, svc, "user-a", "Findable")

	byID, err := svc.Get(ctx, p.ID)
	if err != nil || byID.Slug != p.Slug {
		t.Fatalf("Get(id) = (%v, %v)", byID, err)
	}

	_, err = svc.Get(ctx, "missing")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
	_, err = svc.Get(ctx, "")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestService_UpdateAndDelete_Ownership(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := mustCreate(t, svc, "user-a", "Owned")

	newTitle := "Changed"
	_, err := svc.Update(ctx, "user-b", p.ID, model.PostPatch{Title: &newTitle})
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	err = svc.Delete(ctx, "user-b", p.ID)
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	if stored, _ := repo.FindByID(ctx, p.ID); stored.Title != "Owned" {
		t.Fatalf("post modified by non-owner: %q", stored.Title)
	}

	updated, err := svc.Update(ctx, "user-a", p.ID, model.PostPatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update by owner: %v", err)
	}
	if updated.Title != "Changed" {
		t.Errorf("Title = %q, want Changed", updated.Title)
	}
	if updated.Slug != p.Slug {
		t.Errorf("Slug changed on update: %q -> %q", p.Slug, updated.Slug)
	}

	if err := svc.Delete(ctx, "user-a", p.ID); err != nil {
		t.Fatalf("Delete by owner: %v", err)
	}
	_, err = svc.Get(ctx, p.ID)
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestService_Update_NotFoundBeforeForbidden(t *testing.T) {
	svc := newTestService(newMemPostRepo())

	title := "x"
	_, err := svc.Update(context.Background(), "user-b", "missing", model.PostPatch{Title: &title})
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)

	err = svc.Delete(context.Background(), "user-b", "missing")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestService_UpdateDelete_DeletedAfterLookup_ReturnsNotFound(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	title := "Renamed"

	p := mustCreate(t, svc, "user-a", "Short lived")
	repo.beforeWrite = func(id string) { delete(repo.posts, id) }
	_, err := svc.Update(ctx, "user-a", p.ID, model.PostPatch{Title: &title})
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)

	repo.beforeWrite = nil
	p = mustCreate(t, svc, "user-a", "Also short lived")
	repo.beforeWrite = func(id string) { delete(repo.posts, id) }
	err = svc.Delete(ctx, "user-a", p.ID)
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestService_Update_SanitizesContentAndPatchesPartially(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := mustCreate(t, svc, "user-a", "Partial")

	content := `<p onclick="x()">new <i>body</i></p><iframe src="https://evil.example.com"></iframe>`
	tags := []string{"a", " b "}
	updated, err := svc.Update(ctx, "user-a", p.ID, model.PostPatch{Content: &content, Tags: &tags})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Content != "<p>new <i>body</i></p>" {
		t.Errorf("Content = %q", updated.Content)
	}
	if updated.BodyText != "new body" {
		t.Errorf("BodyText = %q", updated.BodyText)
	}
	if updated.Title != "Partial" {
		t.Errorf("Title changed unexpectedly: %q", updated.Title)
	}
	if len(updated.Tags) != 2 || updated.Tags[1] != "b" {
		t.Errorf("Tags = %v", updated.Tags)
	}

	empty := "   "
	_, err = svc.Update(ctx, "user-a", p.ID, model.PostPatch{Title: &empty})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestService_List_Pagination(t *testing.T) {
	repo := newMemPostRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	svc := newTestService(repo, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	for i := 0; i < 12; i++ {
		mustCreate(t, svc, "user-a", fmt.Sprintf("Post %d", i))
	}

	page, err := svc.List(context.Background(), model.ListQuery{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Errorf("len(Posts) = %d, want 2", len(page.Posts))
	}
	if page.Total != 12 || page.Pages != 2 || page.Page != 2 {
		t.Errorf("page = {total %d, pages %d, page %d}, want {12, 2, 2}", page.Total, page.Pages, page.Page)
	}

	first, err := svc.List(context.Background(), model.ListQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Posts) != 10 {
		t.Errorf("len(first.Posts) = %d, want 10", len(first.Posts))
	}
	for i := 1; i < len(first.Posts); i++ {
		if !first.Posts[i].CreatedAt.Before(first.Posts[i-1].CreatedAt) {
			t.Fatalf("posts not strictly newest-first at index %d", i)
		}
	}
	if first.Posts[0].Title != "Post 11" {
		t.Errorf("newest post = %q, want Post 11", first.Posts[0].Title)
	}

	beyond, err := svc.List(context.Background(), model.ListQuery{Page: 5, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(beyond.Posts) != 0 || beyond.Total != 12 {
		t.Errorf("page beyond range = %d posts, total %d", len(beyond.Posts), beyond.Total)
	}
}

func TestService_List_InvalidQuery(t *testing.T) {
	svc := newTestService(newMemPostRepo())

	for _, q := range []model.ListQuery{
		{Page: 0, Limit: 10},
		{Page: 1, Limit: 0},
		{Page: 1, Limit: 101},
		{Page: math.MaxInt / 10, Limit: 100},
	} {
		_, err := svc.List(context.Background(), q)
		assertAPIErrorCode(t, err, model.ErrCodeValidation)
	}
}

func TestService_ParseListQuery(t *testing.T) {
	svc := newTestService(newMemPostRepo())

	q, err := svc.ParseListQuery("", "", "  golang  ", "go, web,,go")
	if err != nil {
		t.Fatalf("ParseListQuery: %v", err)
	}
	if q.Page != 1 || q.Limit != 10 {
		t.Errorf("defaults = (%d, %d), want (1, 10)", q.Page, q.Limit)
	}
	if q.Search != "golang" {
		t.Errorf("Search = %q", q.Search)
	}
	if len(q.Tags) != 2 || q.Tags[0] != "go" || q.Tags[1] != "web" {
		t.Errorf("Tags = %v, want [go web]", q.Tags)
	}

	for _, tc := range []struct{ page, limit string }{
		{"0", ""}, {"-1", ""}, {"abc", ""}, {"", "0"}, {"", "101"}, {"", "x"},
		{"922337203685477582", ""}, {"99999999999999999999", ""},
	} {
		_, err := svc.ParseListQuery(tc.page, tc.limit, "", "")
		assertAPIErrorCode(t, err, model.ErrCodeValidation)
	}
}

func TestService_ToggleLike(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := mustCreate(t, svc, "user-a", "Likeable")

	liked, err := svc.ToggleLike(ctx, "user-b", p.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if len(liked.Likes) != 1 {
		t.Fatalf("Likes = %v, want one like", liked.Likes)
	}
	unliked, err := svc.ToggleLike(ctx, "user-b", p.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if len(unliked.Likes) != 0 {
		t.Fatalf("Likes = %v, want none", unliked.Likes)
	}

	_, err = svc.ToggleLike(ctx, "user-b", "missing")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestService_AddComment(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := mustCreate(t, svc, "user-a", "Commentable")

	updated, err := svc.AddComment(ctx, "user-b", p.ID, "  nice <b>post</b>  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(updated.Comments) != 1 {
		t.Fatalf("Comments = %v", updated.Comments)
	}
	c := updated.Comments[0]
	if c.Content != "nice post" || c.AuthorID != "user-b" || c.ID == "" {
		t.Errorf("comment = %+v", c)
	}

	_, err = svc.AddComment(ctx, "user-b", p.ID, "   ")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
	_, err = svc.AddComment(ctx, "user-b", "missing", "hi")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" a", "b ", "", "  ", "a", "c"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}
