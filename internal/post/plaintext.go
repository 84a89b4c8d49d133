package post

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText はサニタイズ済みHTMLからタグを除いたテキストを返す。
// 全文検索インデックスの入力に使う。連続する空白は1つにまとめる。
func PlainText(rawHTML string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
			if !inlineTags[string(name)] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
			if !inlineTags[string(name)] {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// inlineTags は前後に区切りを入れないタグ。単語の途中で使われることがある。
var inlineTags = map[string]bool{
	"a": true, "b": true, "strong": true, "i": true, "em": true, "u": true,
	"s": true, "strike": true, "span": true, "code": true, "sub": true, "sup": true,
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}
