package blocks

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderHTML converts a block sequence to HTML for preview and export. Text
// runs support the editor's inline markup (**bold**, _italic_, `code`,
// [label](url)), rendered through goldmark.
func RenderHTML(seq []Block) string {
	var out strings.Builder
	for _, b := range seq {
		if b.Body == nil {
			continue
		}
		switch body := b.Body.(type) {
		case Paragraph:
			out.WriteString(paragraphHTML(body.Text))
		case Heading2:
			fmt.Fprintf(&out, "<h2>%s</h2>\n", inlineHTML(body.Text))
		case Heading3:
			fmt.Fprintf(&out, "<h3>%s</h3>\n", inlineHTML(body.Text))
		case BulletList:
			out.WriteString(listHTML("ul", body.Items))
		case NumberedList:
			out.WriteString(listHTML("ol", body.Items))
		case Image:
			out.WriteString(imageHTML(body))
		case Quote:
			out.WriteString(quoteHTML(body))
		case Callout:
			fmt.Fprintf(&out, "<aside class=%q>%s</aside>\n",
				"callout callout-"+string(body.Variant), inlineHTML(body.Text))
		case Code:
			fmt.Fprintf(&out, "<pre><code>%s</code></pre>\n", html.EscapeString(body.Text))
		}
	}
	return out.String()
}

func paragraphHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(text))
	}
	return buf.String()
}

// inlineHTML renders inline markup only: the markdown output is unwrapped from
// its enclosing paragraph element.
func inlineHTML(text string) string {
	rendered := strings.TrimSpace(paragraphHTML(text))
	rendered = strings.TrimPrefix(rendered, "<p>")
	rendered = strings.TrimSuffix(rendered, "</p>")
	return rendered
}

func listHTML(tag string, items []string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "<%s>\n", tag)
	for _, item := range items {
		fmt.Fprintf(&out, "<li>%s</li>\n", inlineHTML(item))
	}
	fmt.Fprintf(&out, "</%s>\n", tag)
	return out.String()
}

func imageHTML(img Image) string {
	if img.Src == "" {
		return ""
	}
	var out strings.Builder
	out.WriteString("<figure>\n")
	fmt.Fprintf(&out, "<img src=%q alt=%q>\n", img.Src, img.Alt)
	if strings.TrimSpace(img.Caption) != "" {
		fmt.Fprintf(&out, "<figcaption>%s</figcaption>\n", inlineHTML(img.Caption))
	}
	out.WriteString("</figure>\n")
	return out.String()
}

func quoteHTML(q Quote) string {
	var out strings.Builder
	class := "quote"
	if q.PullStyle {
		class = "quote quote-pull"
	}
	fmt.Fprintf(&out, "<blockquote class=%q>\n<p>%s</p>\n", class, inlineHTML(q.Text))
	if q.Citation != "" {
		cite := html.EscapeString(q.Citation)
		if q.Role != "" {
			cite += ", " + html.EscapeString(q.Role)
		}
		if q.Href != "" {
			cite = fmt.Sprintf("<a href=%q rel=\"nofollow\">%s</a>", q.Href, cite)
		}
		fmt.Fprintf(&out, "<footer>%s</footer>\n", cite)
	}
	out.WriteString("</blockquote>\n")
	return out.String()
}
