package quote

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips inline markup from dataset text. Line breaks become a
// single space, entities are decoded, and whitespace runs collapse, while a
// leading or trailing space is kept so the spans still join cleanly.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&\n\t\r") && !strings.Contains(s, "  ") {
		return s
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				sb.WriteByte(' ')
			}
		}
	}
}

func collapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteRune(r)
			space = false
		}
	}
	return sb.String()
}
