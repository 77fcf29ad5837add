package telegram

import (
	"html"
	"regexp"
	"strings"
)

var (
	reCode   = regexp.MustCompile("`([^`\n]+)`")
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*]*?)\*`)
	reLink   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reBullet = regexp.MustCompile(`^(\s*)[-*] `)
	reHead   = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	reFence  = regexp.MustCompile("(?s)```[^\n]*\n?(.*?)```")
)

// MarkdownToTelegramHTML converts Markdown to the HTML subset Telegram's
// parse mode accepts.
func MarkdownToTelegramHTML(md string) string {
	var out []string
	var code []string
	inFence := false
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "```") {
			if inFence {
				out = append(out, strings.Join(code, "\n")+"</code></pre>")
				code, inFence = nil, false
				continue
			}
			open := "<pre><code>"
			if lang := strings.TrimSpace(line[3:]); lang != "" {
				open = `<pre><code class="language-` + html.EscapeString(lang) + `">`
			}
			code, inFence = []string{open}, true
			continue
		}
		if inFence {
			code = append(code, html.EscapeString(line))
			continue
		}
		out = append(out, inlineHTML(line))
	}
	if inFence {
		out = append(out, strings.Join(code, "\n")+"</code></pre>")
	}
	return strings.Join(out, "\n")
}

// inlineHTML formats one line outside code fences. Code spans are cut out
// before escaping and formatting, then put back.
func inlineHTML(line string) string {
	var spans []string
	line = reCode.ReplaceAllStringFunc(line, func(m string) string {
		spans = append(spans, "<code>"+html.EscapeString(m[1:len(m)-1])+"</code>")
		return "\x00"
	})

	line = html.EscapeString(line)
	// html.EscapeString turns quotes into entities, which Telegram accepts.
	line = reHead.ReplaceAllString(line, "<b>$1</b>")
	line = reBullet.ReplaceAllString(line, "$1• ")
	line = reBold.ReplaceAllString(line, "<b>$1</b>")
	line = reItalic.ReplaceAllString(line, "$1<i>$2</i>")
	line = reLink.ReplaceAllString(line, `<a href="$2">$1</a>`)

	for _, s := range spans {
		line = strings.Replace(line, "\x00", s, 1)
	}
	return line
}

// StripMarkdown removes Markdown formatting, leaving plain text. Links
// become "text (url)".
func StripMarkdown(md string) string {
	s := reFence.ReplaceAllString(md, "$1")
	s = reCode.ReplaceAllString(s, "$1")
	s = reBold.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1$2")
	return reLink.ReplaceAllString(s, "$1 ($2)")
}
