package htmlpage

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// renderedText approximates innerText: hidden subtrees are skipped,
// whitespace collapses to one space within a line, block elements start
// and end lines, paragraphs are separated by a blank line and <br> breaks
// the line.
func renderedText(n *html.Node) string {
	t := &textWriter{lineStart: true}
	t.walk(n)
	return t.b.String()
}

type textWriter struct {
	b         strings.Builder
	breaks    int  // line breaks owed before the next text
	space     bool // collapsed whitespace owed before the next text
	lineStart bool
}

func (t *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		t.write(n.Data)
		return
	case html.ElementNode:
		if hidden(goquery.NewDocumentFromNode(n).Selection) {
			return
		}
		if n.Data == "br" {
			t.breaks++
			t.space = false
			return
		}
	}

	block := n.Type == html.ElementNode && !inline[n.Data]
	if block {
		t.lineBreak(blockBreaks(n.Data))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.walk(c)
	}
	if block {
		t.lineBreak(blockBreaks(n.Data))
	}
}

func (t *textWriter) write(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			t.space = true
			continue
		}
		t.flush()
		t.b.WriteRune(r)
	}
}

func (t *textWriter) flush() {
	if t.breaks > 0 && t.b.Len() > 0 {
		t.b.WriteString(strings.Repeat("\n", t.breaks))
		t.lineStart = true
	}
	if t.space && !t.lineStart {
		t.b.WriteByte(' ')
	}
	t.breaks, t.space, t.lineStart = 0, false, false
}

func (t *textWriter) lineBreak(n int) {
	if n > t.breaks {
		t.breaks = n
	}
	t.space = false
}

func blockBreaks(tag string) int {
	if tag == "p" {
		return 2
	}
	return 1
}

var inline = map[string]bool{
	"a": true, "abbr": true, "b": true, "button": true, "cite": true, "code": true,
	"del": true, "em": true, "i": true, "img": true, "input": true, "ins": true,
	"kbd": true, "label": true, "mark": true, "q": true, "s": true, "samp": true,
	"select": true, "small": true, "span": true, "strong": true, "sub": true,
	"sup": true, "textarea": true, "time": true, "u": true, "var": true,
}
