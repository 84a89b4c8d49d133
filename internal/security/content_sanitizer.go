// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は記事本文のHTMLを許可リストベースでサニタイズする。
// 保存前に必ず通すため、保存済みの本文は常に安全なHTMLである。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLサニタイズ機能のインターフェースを定義する。
// 記事の作成時と、本文を含む更新時に使用される。
type ContentSanitizer interface {
	// Sanitize はHTMLを許可リストに従ってサニタイズする。
	// script, style, iframeは中身ごと除去され、on*イベント属性は常に除去される。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// codeLanguageClass はシンタックスハイライト用のclass属性（language-xxx）。
var codeLanguageClass = regexp.MustCompile(`^language-[\w+-]+$`)

// contentSanitizer はContentSanitizerの実装。
// bluemondayのPolicyはSanitize呼び出しに対してスレッドセーフ。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文用のポリシーでContentSanitizerを生成する。
//   - 見出し・段落・リスト・引用・コード・表・強調系のタグを許可
//   - aはhrefのみ許可し、外部リンクにtarget="_blank"とrel="noopener noreferrer"を付与
//   - imgはsrc, alt, title, width, heightを許可
//   - URLスキームはhttp, https, mailtoのみ
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"b", "strong", "i", "em", "u", "s", "strike", "sub", "sup", "span",
		"blockquote", "pre", "code",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("img")

	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Number).OnElements("th", "td")

	p.AllowURLSchemes("http", "https", "mailto")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
