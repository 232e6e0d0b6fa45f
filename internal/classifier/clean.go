package classifier

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	headingPattern       = regexp.MustCompile(`-*#{1,3}\s*\*{0,2}`)
	emphasisPattern      = regexp.MustCompile(`\*{1,4}([^*]+?)\*{1,4}`)
	numberingPattern     = regexp.MustCompile(`(\d+)\.\s*\*{0,2}`)
	cjkNumberingPattern  = regexp.MustCompile(`([一二三四五六七八九十]+、)\s*\*{0,2}`)
	comboPattern         = regexp.MustCompile(`(-\s*\*{2}|\*{2}-)`)
	listMarkerPattern    = regexp.MustCompile(`(?m)^\s*-\s+`)
	glyphPattern         = regexp.MustCompile(`[▪▶︎✓➤▫•※☆★○●◎◇◆□■△▲▽▼→←↑↓↔↕]`)
	bracketPattern       = regexp.MustCompile(`【(.*?)】`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	strippedCharReplacer = strings.NewReplacer(
		"*", "", "-", "", `\`, "", "|", "", "【", "", "】", "", "▌", "", "—", "",
	)
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from accumulated model output so a plain substring
// check can read the answer.
func CleanText(content string) string {
	if content == "" {
		return ""
	}
	content = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(content)
	content = strictPolicy.Sanitize(content)

	content = headingPattern.ReplaceAllString(content, "")
	content = emphasisPattern.ReplaceAllString(content, "$1")
	content = numberingPattern.ReplaceAllString(content, "")
	content = cjkNumberingPattern.ReplaceAllString(content, "")
	content = comboPattern.ReplaceAllString(content, "")
	content = listMarkerPattern.ReplaceAllString(content, "")
	content = glyphPattern.ReplaceAllString(content, "")
	content = bracketPattern.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "andnbsp;", " ")
	content = html.UnescapeString(content)
	content = strings.ReplaceAll(content, " ", " ")
	content = strippedCharReplacer.Replace(content)

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
}

// Decide interprets cleaned model output. Only an answer containing "yes"
// counts; "no" and anything unreadable are false.
func Decide(cleaned string) bool {
	return strings.Contains(strings.ToLower(cleaned), "yes")
}
