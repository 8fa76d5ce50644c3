// Package extract turns raw HTML into a compact text representation of
// the recipe it contains. It tries embedded JSON-LD structured data
// first and falls back to readability-style main-content extraction,
// then to the whole document text. All tiers tolerate malformed HTML.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrorKind tags extraction failures.
type ErrorKind int

// Extraction failure kinds.
const (
	// KindParseFailed means the HTML was malformed beyond parsing.
	KindParseFailed ErrorKind = iota
	// KindNoContent means the document parsed but held no usable text.
	KindNoContent
)

// Error is a tagged extraction failure.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// Result is the extracted content of a page.
type Result struct {
	Title   string
	Byline  string
	Content string
}

// nonContentSelector matches elements stripped before fallback
// extraction: scripts, media, navigation, forms.
const nonContentSelector = "script, style, noscript, iframe, object, embed, form, input, button, " +
	"nav, header, footer, aside, video, audio, svg, canvas, " +
	"[role=navigation], [role=banner], [role=complementary], [role=contentinfo]"

// nonContentClassTokens marks ad, comment, and related-content blocks by
// class name.
var nonContentClassTokens = map[string]bool{
	"ad": true, "ads": true, "advertisement": true, "adsense": true,
	"comment": true, "comments": true, "disqus": true,
	"related": true, "recommended": true, "sidebar": true,
	"social": true, "share": true, "sharing": true,
	"newsletter": true, "promo": true, "popup": true,
}

// Extractor extracts recipe text from HTML documents.
type Extractor struct {
	converter *md.Converter
}

// New creates an Extractor.
func New() *Extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Extractor{converter: converter}
}

// Extract produces the text block for a fetched page. The structured
// tier is attempted first; when it yields a recipe the fallback tier is
// skipped entirely.
func (e *Extractor) Extract(html []byte, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &Error{Kind: KindParseFailed, msg: "parse HTML: " + err.Error()}
	}

	// Tier 1: structured data, scanned before any DOM cleanup.
	if r := recipeFromJSONLD(doc); r != nil {
		return &Result{Title: r.Name, Content: formatRecipeBlock(r)}, nil
	}

	// Tier 2: strip non-content elements, then readability.
	stripNonContent(doc)
	cleaned, err := doc.Html()
	if err != nil {
		return nil, &Error{Kind: KindParseFailed, msg: "render cleaned HTML: " + err.Error()}
	}

	if res := e.extractReadable(cleaned, pageURL); res != nil {
		return res, nil
	}

	// Last resort: the whole body's text, whitespace-normalized.
	text := collapseWhitespace(doc.Find("body").Text())
	if text == "" {
		text = collapseWhitespace(doc.Text())
	}
	if text == "" {
		return nil, &Error{Kind: KindNoContent, msg: "no usable text content"}
	}
	return &Result{Title: fallbackTitle(doc), Content: text}, nil
}

// extractReadable runs readability main-content extraction over the
// cleaned document. Returns nil if it yields nothing usable.
func (e *Extractor) extractReadable(cleanedHTML, pageURL string) *Result {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(cleanedHTML), parsed)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return nil
	}

	// Markdown keeps list and heading structure the plain text loses;
	// fall back to the raw text if conversion trips up.
	content, err := e.converter.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(content) == "" {
		content = collapseWhitespace(article.TextContent)
	}

	return &Result{
		Title:   strings.TrimSpace(article.Title),
		Byline:  strings.TrimSpace(article.Byline),
		Content: content,
	}
}

// stripNonContent removes elements that never hold recipe text.
func stripNonContent(doc *goquery.Document) {
	doc.Find(nonContentSelector).Remove()

	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		for _, token := range strings.Fields(strings.ToLower(class)) {
			if nonContentClassTokens[token] {
				s.Remove()
				return
			}
		}
	})
}

// fallbackTitle resolves the document title by priority:
// <title>, first <h1>, og:title meta tag.
func fallbackTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

// collapseWhitespace folds runs of tabs, newlines, and spaces into
// single spaces and trims the result.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
