package export

import (
	"bytes"
	"html/template"
	"time"
)

// TemplateData feeds the article export template.
type TemplateData struct {
	Title       string
	Excerpt     string
	Author      string
	Tags        []string
	ReadTimeMin int
	CreatedAt   time.Time
	PublishedAt time.Time
	HeroURL     string
	HeroAlt     string
	ContentHTML template.HTML
}

var articleTemplate = template.Must(template.New("article").Parse(articleTemplateText))

// RenderArticleHTML renders the printable article page.
func RenderArticleHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := articleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const articleTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.65; max-width: 760px; margin: 2rem auto; color: #1a1a1a; }
    h1 { font-size: 2.2rem; margin-bottom: 0.25rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .excerpt { font-size: 1.1rem; color: #444; font-style: italic; }
    .hero img { max-width: 100%; border-radius: 6px; }
    .tags { margin-top: 2rem; color: #666; font-size: 0.85em; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; font-size: 0.9em; }
    .callout { background: #f0f4ff; border-left: 3px solid #4a6cf7; padding: 0.75rem 1rem; margin: 1rem 0; }
    figure { margin: 1.5rem 0; }
    figcaption { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Excerpt}}<p class="excerpt">{{.Excerpt}}</p>{{end}}
  <div class="meta">
    {{.Author}}
    {{if not .PublishedAt.IsZero}} | {{.PublishedAt.Format "Jan 2, 2006"}}{{else}} | {{.CreatedAt.Format "Jan 2, 2006"}}{{end}}
    {{if .ReadTimeMin}} | {{.ReadTimeMin}} min read{{end}}
  </div>
  {{if .HeroURL}}<div class="hero"><img src="{{.HeroURL}}" alt="{{.HeroAlt}}"></div>{{end}}
  <div class="content">{{.ContentHTML}}</div>
  {{if .Tags}}<div class="tags">{{range $i, $t := .Tags}}{{if $i}} · {{end}}#{{$t}}{{end}}</div>{{end}}
</body>
</html>`
