package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/inkpost/internal/middleware"
)

// FeedBuilder はsitemapとRSSの生成インターフェース。
type FeedBuilder interface {
	Sitemap(ctx context.Context) ([]byte, error)
	RSS(ctx context.Context) ([]byte, error)
}

// SyndicationHandler はsitemap.xmlとfeed.xmlのHTTPハンドラー。
type SyndicationHandler struct {
	builder FeedBuilder
}

// NewSyndicationHandler はSyndicationHandlerを生成する。
func NewSyndicationHandler(builder FeedBuilder) *SyndicationHandler {
	return &SyndicationHandler{builder: builder}
}

// Sitemap はsitemap.xmlを返す。
// GET /sitemap.xml
func (h *SyndicationHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	h.serveXML(w, r, "application/xml; charset=utf-8", h.builder.Sitemap)
}

// Feed はRSS 2.0フィードを返す。
// GET /feed.xml
func (h *SyndicationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	h.serveXML(w, r, "application/rss+xml; charset=utf-8", h.builder.RSS)
}

func (h *SyndicationHandler) serveXML(w http.ResponseWriter, r *http.Request, contentType string, build func(context.Context) ([]byte, error)) {
	body, err := build(r.Context())
	if err != nil {
		slog.Error("failed to build xml document",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
