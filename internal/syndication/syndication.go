// Package syndication は最新記事からsitemap.xmlとRSS 2.0フィードを生成する。
package syndication

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/post"
)

const (
	sitemapNS       = "http://www.sitemaps.org/schemas/sitemap/0.9"
	maxDescriptionR = 300
)

// LatestLister は新しい順の記事取得インターフェース。
type LatestLister interface {
	Latest(ctx context.Context, limit int) ([]*model.Post, error)
}

// Config はフィード生成の設定。
type Config struct {
	BaseURL     string // 末尾スラッシュなし
	Title       string
	Description string
	Limit       int
}

// Builder はsitemapとRSSを生成する。
type Builder struct {
	posts  LatestLister
	config Config
	now    func() time.Time
}

// NewBuilder はBuilderを生成する。
func NewBuilder(posts LatestLister, config Config) *Builder {
	if config.Limit <= 0 {
		config.Limit = 20
	}
	if config.Title == "" {
		config.Title = "inkpost"
	}
	if config.Description == "" {
		config.Description = "Latest posts"
	}
	return &Builder{posts: posts, config: config, now: time.Now}
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// Sitemap はトップページと最新記事のURLを並べたsitemap.xmlを生成する。
func (b *Builder) Sitemap(ctx context.Context) ([]byte, error) {
	posts, err := b.posts.Latest(ctx, b.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for sitemap: %w", err)
	}

	set := urlSet{
		XMLNS: sitemapNS,
		URLs: []sitemapURL{
			{Loc: b.config.BaseURL + "/", ChangeFreq: "daily", Priority: 1.0},
		},
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        b.postURL(p),
			LastMod:    p.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   0.8,
		})
	}
	return marshal(set)
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// RSS は最新記事のRSS 2.0フィードを生成する。
// descriptionは本文のプレーンテキストの先頭部分。
func (b *Builder) RSS(ctx context.Context) ([]byte, error) {
	posts, err := b.posts.Latest(ctx, b.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for feed: %w", err)
	}

	ch := rssChannel{
		Title:         b.config.Title,
		Link:          b.config.BaseURL + "/",
		Description:   b.config.Description,
		LastBuildDate: b.now().UTC().Format(time.RFC1123Z),
	}
	for _, p := range posts {
		link := b.postURL(p)
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Description: excerpt(p),
			Categories:  p.Tags,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		}
		if p.Author != nil {
			item.Author = p.Author.Name
		}
		ch.Items = append(ch.Items, item)
	}
	return marshal(rss{Version: "2.0", Channel: ch})
}

func (b *Builder) postURL(p *model.Post) string {
	return b.config.BaseURL + "/content/" + url.PathEscape(p.Slug)
}

func excerpt(p *model.Post) string {
	text := p.BodyText
	if text == "" {
		text = post.PlainText(p.Content)
	}
	r := []rune(text)
	if len(r) <= maxDescriptionR {
		return text
	}
	return string(r[:maxDescriptionR]) + "…"
}

func marshal(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
