package normalize

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// xhtmlSniffLength is how far into a document the XHTML markers are looked for.
const xhtmlSniffLength = 2000

// skippedElements never contribute text.
var skippedElements = map[string]bool{
	"head":     true,
	"title":    true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"meta":     true,
	"link":     true,
	"nav":      true,
}

// blockElements start and end on their own line so that article headings and
// paragraph markers land at line start.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"tr": true, "table": true, "thead": true, "tbody": true,
	"section": true, "article": true, "header": true, "footer": true,
	"blockquote": true, "pre": true,
}

// cellElements are separated by a space so a point letter and its text in
// adjacent table cells stay on one line.
var cellElements = map[string]bool{"td": true, "th": true}

// IsXHTML reports whether the document declares itself as XHTML.
func IsXHTML(data []byte) bool {
	head := data
	if len(head) > xhtmlSniffLength {
		head = head[:xhtmlSniffLength]
	}
	lowered := strings.ToLower(string(head))
	trimmed := strings.TrimLeft(lowered, " \t\r\n\ufeff")
	return strings.HasPrefix(trimmed, "<?xml") ||
		strings.Contains(lowered, "<xhtml") ||
		strings.Contains(lowered, "http://www.w3.org/1999/xhtml")
}

// HTMLText extracts normalized text from an HTML or XHTML document.
// XHTML that is not well-formed enough for the XML tokenizer is reparsed
// as HTML.
func HTMLText(data []byte) (string, error) {
	decoded, err := decodeMarkup(data)
	if err != nil {
		return "", err
	}

	if IsXHTML(decoded) {
		text, xmlErr := xhtmlText(decoded)
		if xmlErr == nil {
			return NormalizeText(text), nil
		}
		text, err := htmlText(decoded)
		if err != nil {
			return "", fmt.Errorf("parsing XHTML: %w", errors.Join(xmlErr, err))
		}
		return NormalizeText(text), nil
	}

	text, err := htmlText(decoded)
	if err != nil {
		return "", err
	}
	return NormalizeText(text), nil
}

// decodeMarkup transcodes non-UTF-8 input using the document's declared or
// sniffed charset.
func decodeMarkup(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/html")
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("transcode from %s: %w", name, err)
	}
	return decoded, nil
}

func htmlText(data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var b strings.Builder
	collectHTMLText(&b, root)
	return b.String(), nil
}

func collectHTMLText(b *strings.Builder, n *html.Node) {
	var name string
	switch n.Type {
	case html.ElementNode:
		name = strings.ToLower(n.Data)
		if skippedElements[name] {
			return
		}
		separate(b, name)
	case html.TextNode:
		b.WriteString(n.Data)
	case html.CommentNode, html.DoctypeNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectHTMLText(b, c)
	}

	if n.Type == html.ElementNode {
		separate(b, name)
	}
}

func xhtmlText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel

	var b strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing XHTML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if skippedElements[name] {
				if err := decoder.Skip(); err != nil {
					return "", fmt.Errorf("parsing XHTML: %w", err)
				}
				continue
			}
			separate(&b, name)
		case xml.EndElement:
			separate(&b, strings.ToLower(t.Name.Local))
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}

// separate writes the separator an element contributes at its start and end.
func separate(b *strings.Builder, name string) {
	switch {
	case blockElements[name]:
		b.WriteString("\n")
	case cellElements[name]:
		b.WriteString(" ")
	}
}
