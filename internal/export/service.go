package export

import (
	"context"
	"fmt"
	"html/template"

	"labdesk/api/internal/blocks"
	"labdesk/api/internal/draft"
	"labdesk/api/internal/store"
)

// ArticleSource loads the latest persisted article.
type ArticleSource interface {
	GetArticle(ctx context.Context, id string) (store.Article, error)
}

// RevisionSource loads a past payload by commit hash.
type RevisionSource interface {
	GetByHash(articleID, hash string) (draft.Article, error)
}

// UserSource resolves author ids to display names.
type UserSource interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

type Service struct {
	articles   ArticleSource
	revisions  RevisionSource
	users      UserSource
	chromeAddr string
}

// NewService builds the export service. chromeAddr points at a remote
// Chrome debugging endpoint; leave it empty to launch a local chromium.
func NewService(articles ArticleSource, revisions RevisionSource, users UserSource, chromeAddr string) *Service {
	return &Service{
		articles:   articles,
		revisions:  revisions,
		users:      users,
		chromeAddr: chromeAddr,
	}
}

// Export renders the requested article version in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	payload, err := s.loadPayload(ctx, req)
	if err != nil {
		return nil, err
	}

	authorName := payload.AuthorID
	if s.users != nil {
		if u, err := s.users.GetUserByID(ctx, payload.AuthorID); err == nil {
			authorName = u.DisplayName
		}
	}
	if payload.PublishCredit == draft.CreditTeam {
		authorName = "The team"
	}

	data := TemplateData{
		Title:       payload.Title,
		Excerpt:     payload.Excerpt,
		Author:      authorName,
		Tags:        payload.Tags,
		ReadTimeMin: payload.ReadTimeMin,
		CreatedAt:   payload.CreatedAt,
		PublishedAt: payload.PublishedAt,
		HeroURL:     payload.Hero.PreviewURL,
		HeroAlt:     payload.Hero.Alt,
		ContentHTML: template.HTML(blocks.RenderHTML(payload.BodyBlocks)),
	}

	html, err := RenderArticleHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(payload.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, s.chromeAddr, html, payload.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

func (s *Service) loadPayload(ctx context.Context, req Request) (draft.Article, error) {
	if req.Version == "" || req.Version == "latest" {
		a, err := s.articles.GetArticle(ctx, req.ArticleID)
		if err != nil {
			return draft.Article{}, fmt.Errorf("get article: %w", err)
		}
		return a.Payload(), nil
	}
	payload, err := s.revisions.GetByHash(req.ArticleID, req.Version)
	if err != nil {
		return draft.Article{}, fmt.Errorf("get article revision: %w", err)
	}
	return payload, nil
}
