package slackconn

import (
	"regexp"
	"strings"
)

var (
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*]*?)\*`)
	reStrike = regexp.MustCompile(`~~(.+?)~~`)
	reLink   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reBullet = regexp.MustCompile(`(?m)^(\s*)[-*] `)
	reHead   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// MarkdownToMrkdwn converts Markdown to Slack mrkdwn. Code spans and fenced
// blocks are left untouched.
func MarkdownToMrkdwn(md string) string {
	var b strings.Builder
	for i, part := range strings.Split(md, "`") {
		// Odd parts sit between backticks.
		if i%2 == 1 {
			b.WriteString("`" + part + "`")
			continue
		}
		b.WriteString(convertProse(part))
	}
	return b.String()
}

func convertProse(s string) string {
	s = reHead.ReplaceAllString(s, "**$1**")
	s = reBullet.ReplaceAllString(s, "$1• ")
	// Italic first so that the bold markers it produces are left alone.
	s = reItalic.ReplaceAllString(s, "${1}_${2}_")
	s = reBold.ReplaceAllString(s, "*$1*")
	s = reStrike.ReplaceAllString(s, "~$1~")
	return reLink.ReplaceAllString(s, "<$2|$1>")
}
