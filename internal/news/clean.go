package news

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxArticleRunes = 5000

// articleSelectors are tried in order; the first match with more than
// 200 characters wins.
var articleSelectors = []string{
	"article",
	".article-body",
	".article-content",
	".post-content",
	"main",
	"#article-body",
	`[class*="article"]`,
	`[class*="content"]`,
}

// ArticleText extracts readable body text from an article page, dropping
// scripts and styles. Falls back to joined paragraphs and caps the result at
// 5000 characters.
func ArticleText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var text string
	for _, sel := range articleSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text = collapse(node.Text())
		if len(text) > 200 {
			break
		}
	}

	if text == "" {
		var parts []string
		doc.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := collapse(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		text = strings.Join(parts, " ")
	}
	return truncateRunes(text, maxArticleRunes), nil
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
