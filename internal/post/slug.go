package post

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugBaseLen = 80
	slugSuffixLen  = 6
	slugFallback   = "post"
	base36         = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// latinFolds はNFD分解で基底文字にならないラテン文字のASCII表記。
// 小文字化した後に適用する。
var latinFolds = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

// Slugify はタイトルをURL用のslugベースに変換する。
// 発音記号を除去してASCII英数字以外の連続を1つのハイフンにまとめる。
// 結果が空になる場合は"post"を返す。
func Slugify(title string) string {
	folded := latinFolds.Replace(strings.ToLower(title))
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		folded,
	)
	if err != nil {
		stripped = folded
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	base := b.String()
	if len(base) > maxSlugBaseLen {
		base = strings.TrimRight(base[:maxSlugBaseLen], "-")
	}
	if base == "" {
		return slugFallback
	}
	return base
}

// SlugGenerator はslugベースにランダムな識別子を付与する。
// 同じタイトルの記事同士でも別のslugになる。
type SlugGenerator struct {
	rand io.Reader
}

// NewSlugGenerator はcrypto/randを乱数源とするSlugGeneratorを生成する。
func NewSlugGenerator() *SlugGenerator {
	return &SlugGenerator{rand: rand.Reader}
}

// NewSlug は "<base>-<base36 6文字>" 形式のslugを返す。
func (g *SlugGenerator) NewSlug(title string) (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	return Slugify(title) + "-" + suffix, nil
}

// suffix は偏りのないbase36文字列を生成する。
// 252以上のバイトは36で割り切れないため捨てる。
func (g *SlugGenerator) suffix() (string, error) {
	out := make([]byte, 0, slugSuffixLen)
	buf := make([]byte, slugSuffixLen*2)
	for len(out) < slugSuffixLen {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, c := range buf {
			if c >= 252 {
				continue
			}
			out = append(out, base36[c%36])
			if len(out) == slugSuffixLen {
				break
			}
		}
	}
	return string(out), nil
}
