package ai

import (
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var allowedElements = []string{
	"p", "br", "strong", "b", "em", "i", "ul", "ol", "li", "a",
	"table", "thead", "tbody", "tr", "th", "td", "code",
}

var (
	unsafeMarkdownLink = regexp.MustCompile(`(?i)\[([^\]]*)\]\(\s*<?\s*(?:javascript|data|vbscript):(?:[^()]|\([^()]*\))*\)`)
	// [label]: javascript:... makes [text][label] an unsafe link.
	unsafeReferenceDef = regexp.MustCompile(`(?im)^[ \t]*\[[^\]]+\]:[ \t]*<?[ \t]*(?:javascript|data|vbscript):.*$`)
)

// stripUnsafeLinks removes markdown links whose scheme is not allowed. Matching
// runs on entity-decoded text so &#106;avascript: is caught too.
func stripUnsafeLinks(raw string) (string, bool) {
	decoded := html.UnescapeString(raw)
	if !unsafeMarkdownLink.MatchString(decoded) && !unsafeReferenceDef.MatchString(decoded) {
		return raw, false
	}
	text := unsafeMarkdownLink.ReplaceAllString(decoded, "$1")
	return unsafeReferenceDef.ReplaceAllString(text, ""), true
}

func replyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.RequireParseableURLs(true)
	return p
}

// MarkupFilter enforces the reply allow-list.
type MarkupFilter struct {
	policy *bluemonday.Policy
}

func NewMarkupFilter() *MarkupFilter {
	return &MarkupFilter{policy: replyPolicy()}
}

// Clean returns the reply to store and whether the raw text broke the
// allow-list. Compliant replies come back unchanged.
func (f *MarkupFilter) Clean(raw string) (string, bool) {
	text, stripped := stripUnsafeLinks(raw)
	sanitized := f.policy.Sanitize(text)
	if !stripped && html.UnescapeString(sanitized) == html.UnescapeString(raw) {
		return raw, false
	}
	return sanitized, true
}
