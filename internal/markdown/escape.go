package markdown

import (
	"html"
	"regexp"
	"strings"
)

// FenceStyle selects the code fence character that marks escape-exempt
// regions.
type FenceStyle int

const (
	FenceBacktick FenceStyle = iota
	FenceTilde
)

// Fenced-block alternative first, then paired inline span. An unterminated
// fence or unpaired inline marker matches neither alternative and is escaped
// as plain text.
var (
	codeBacktick = regexp.MustCompile("(?m)^```[\\s\\S]*?^```|`[^`]*`")
	codeTilde    = regexp.MustCompile(`(?m)^~~~[\s\S]*?^~~~|~[^~]*~`)
)

// EscapeHTMLExceptCode escapes &, <, >, " and ' everywhere in text except
// inside complete fenced code blocks and paired inline code spans of the
// given fence style. The downstream markdown surface escapes code regions
// itself; escaping them here again would corrupt the display.
func EscapeHTMLExceptCode(text string, style FenceStyle) string {
	re := codeBacktick
	if style == FenceTilde {
		re = codeTilde
	}

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}
