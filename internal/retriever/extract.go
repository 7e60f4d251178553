package retriever

import (
	"html"
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Extraction limits. Pages shorter than minUsableRunes after cleaning carry
// too little signal to cite; longer pages are capped to keep prompts bounded.
const (
	maxContentRunes = 5000
	minUsableRunes  = 50
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// ExtractText strips markup from an HTML page and returns readable text
// capped at maxContentRunes.
func ExtractText(page string) string {
	text := scriptRe.ReplaceAllString(page, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = utils.CollapseWhitespace(text)
	return utils.TruncateRunes(text, maxContentRunes)
}

// ExtractTitle pulls the <title> element from an HTML page, or "".
func ExtractTitle(page string) string {
	m := titleRe.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	return utils.CollapseWhitespace(html.UnescapeString(m[1]))
}

// Usable reports whether extracted text is substantial enough to cite.
func Usable(text string) bool {
	return len([]rune(strings.TrimSpace(text))) >= minUsableRunes
}
