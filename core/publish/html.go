package publish

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyHTML is returned for blank documents.
var ErrEmptyHTML = errors.New("empty html document")

// voidElements never have an end tag.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

// implicitClose elements may be left open by valid HTML.
var implicitClose = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Body: true, atom.P: true,
	atom.Li: true, atom.Dt: true, atom.Dd: true, atom.Option: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Thead: true,
	atom.Tbody: true, atom.Tfoot: true, atom.Colgroup: true,
}

// ValidateHTML checks that every element of doc is closed in order. It is a
// structural check only; placeholders inside attributes and text pass.
func ValidateHTML(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return ErrEmptyHTML
	}
	type open struct {
		name string
		a    atom.Atom
		line int
	}
	var stack []open
	line := 1
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		newlines := bytes.Count(z.Raw(), []byte{'\n'})
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return fmt.Errorf("line %d: %w", line, err)
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if !implicitClose[stack[i].a] {
					return fmt.Errorf("line %d: <%s> is never closed", stack[i].line, stack[i].name)
				}
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if !voidElements[a] {
				stack = append(stack, open{name: string(name), a: a, line: line})
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if voidElements[a] {
				break
			}
			i := len(stack) - 1
			for i >= 0 && stack[i].name != string(name) {
				if !implicitClose[stack[i].a] {
					return fmt.Errorf("line %d: </%s> closes <%s> opened on line %d", line, name, stack[i].name, stack[i].line)
				}
				i--
			}
			if i < 0 {
				return fmt.Errorf("line %d: unexpected </%s>", line, name)
			}
			stack = stack[:i]
		}
		line += newlines
	}
}

// Words counts the words of the visible text of doc.
func Words(doc string) int {
	n := 0
	skip := 0
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			if a := tagAtom(z); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			if a := tagAtom(z); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				n += len(strings.Fields(string(z.Text())))
			}
		}
	}
}

func tagAtom(z *html.Tokenizer) atom.Atom {
	name, _ := z.TagName()
	return atom.Lookup(name)
}

// ReadingTime estimates the minutes needed to read doc at wpm words per
// minute, never less than one.
func ReadingTime(doc string, wpm int) int {
	if wpm <= 0 {
		wpm = 200
	}
	minutes := int(math.Round(float64(Words(doc)) / float64(wpm)))
	return max(minutes, 1)
}

// Image is an img element that refers to a file shipped with the page.
type Image struct {
	Src      string
	Alt      string
	Filename string
}

// ExtractImages lists the local images of doc. Inline data URIs and remote
// images are left out.
func ExtractImages(doc string) []Image {
	var out []Image
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if atom.Lookup(name) != atom.Img || !hasAttr {
			continue
		}
		var img Image
		for {
			key, val, more := z.TagAttr()
			switch string(key) {
			case "src":
				img.Src = string(val)
			case "alt":
				img.Alt = string(val)
			}
			if !more {
				break
			}
		}
		src := strings.TrimSpace(img.Src)
		if src == "" || strings.HasPrefix(src, "data:") || strings.HasPrefix(src, "http") {
			continue
		}
		img.Filename = path.Base(src)
		out = append(out, img)
	}
}
