package classify

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rawText lists the elements whose content the tokenizer returns as one text
// token, tags included.
var rawText = map[atom.Atom]bool{
	atom.Iframe: true, atom.Noembed: true, atom.Noframes: true, atom.Noscript: true,
	atom.Plaintext: true, atom.Script: true, atom.Style: true, atom.Textarea: true,
	atom.Title: true, atom.Xmp: true,
}

// ProtectedRegions returns the rune spans of every markup tag in text, of
// the body of every <a> element and of the content of raw text elements such
// as <script>. Unclosed links protect to the end of text.
func ProtectedRegions(text string) []Span {
	if !strings.ContainsRune(text, '<') {
		return nil
	}

	z := html.NewTokenizer(strings.NewReader(text))
	var (
		spans     []Span
		runePos   int
		depth     int
		bodyStart int
		inRaw     bool
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start := runePos
		runePos += utf8.RuneCount(raw)

		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
			spans = append(spans, Span{Start: start, End: runePos})
		case html.TextToken:
			if inRaw {
				spans = append(spans, Span{Start: start, End: runePos})
			}
		}
		inRaw = false

		name, _ := z.TagName()
		a := atom.Lookup(name)
		if (tt == html.StartTagToken || tt == html.SelfClosingTagToken) && rawText[a] {
			inRaw = true
		}
		if a != atom.A {
			continue
		}
		switch tt {
		case html.StartTagToken:
			if depth == 0 {
				bodyStart = runePos
			}
			depth++
		case html.EndTagToken:
			if depth > 0 {
				depth--
				if depth == 0 && runePos > bodyStart {
					spans = append(spans, Span{Start: bodyStart, End: start})
				}
			}
		}
	}
	if depth > 0 {
		spans = append(spans, Span{Start: bodyStart, End: utf8.RuneCountInString(text)})
	}
	return spans
}
