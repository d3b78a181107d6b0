package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"labdesk/api/internal/auth"
	"labdesk/api/internal/config"
	"labdesk/api/internal/draft"
	"labdesk/api/internal/email"
	"labdesk/api/internal/export"
	"labdesk/api/internal/rbac"
	"labdesk/api/internal/revision"
	"labdesk/api/internal/search"
	"labdesk/api/internal/stage"
	"labdesk/api/internal/store"
	"labdesk/api/internal/users"
	"labdesk/api/internal/util"
)

// Session is the authenticated caller context derived from a bearer token.
type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

type dataStore interface {
	GetArticle(ctx context.Context, id string) (store.Article, error)
	ListArticles(ctx context.Context, f store.ArticleFilter) ([]store.Article, int, error)
	SaveArticle(ctx context.Context, a store.Article) (store.Article, error)
	GetBrief(ctx context.Context, id string) (store.Brief, error)
	ListBriefs(ctx context.Context, f store.BriefFilter) ([]store.Brief, int, error)
	CreateBrief(ctx context.Context, b store.Brief) (store.Brief, error)
	SetBriefStage(ctx context.Context, id string, st string, at time.Time) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	ListTeams(ctx context.Context) ([]store.Team, error)
	TeamRoles(ctx context.Context, userID string) ([]store.TeamRole, error)
	GrantTeamRole(ctx context.Context, grant store.TeamRole) error
	RevokeTeamRole(ctx context.Context, userID, teamID string) error
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexArticle(a search.ArticleRecord)
	IndexBrief(b search.BriefRecord)
	DeleteArticle(id string)
}

type revisionLog interface {
	Record(articleID string, payload draft.Article, author, message string) (revision.CommitInfo, error)
	History(articleID string, limit int) ([]revision.CommitInfo, error)
	GetByHash(articleID, hash string) (draft.Article, error)
	Head(articleID string) (draft.Article, revision.CommitInfo, error)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type mediaUploader interface {
	UploadDataURI(ctx context.Context, dataURI string) (string, error)
}

type mailer interface {
	IsConfigured() bool
	SendStageChangeEmail(to string, data email.StageChangeData) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	users     *users.Service
	stages    *stage.Machine
	search    searchIndex
	revisions revisionLog
	exports   exporter
	media     mediaUploader
	mail      mailer
}

func New(cfg config.Config, dataStore dataStore, userService *users.Service, stageMachine *stage.Machine, searchService searchIndex) *Service {
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		users:  userService,
		stages: stageMachine,
		search: searchService,
	}
}

// WithRevisions attaches the per-article git history log.
func (s *Service) WithRevisions(revisions revisionLog) *Service {
	s.revisions = revisions
	return s
}

// WithExporter attaches the PDF/HTML export service.
func (s *Service) WithExporter(exports exporter) *Service {
	s.exports = exports
	return s
}

// WithMedia attaches the object-store uploader for hero images.
func (s *Service) WithMedia(media mediaUploader) *Service {
	s.media = media
	return s
}

// WithMailer attaches the stage-change notification sender.
func (s *Service) WithMailer(mail mailer) *Service {
	s.mail = mail
	return s
}

// Bootstrap seeds the first admin account on an empty database so the
// dashboard is reachable after a fresh deploy.
func (s *Service) Bootstrap(ctx context.Context) error {
	existing, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	admin, err := s.users.Create(ctx, users.CreateRequest{
		Email:       "admin@labdesk.dev",
		Password:    "labdesk-admin",
		DisplayName: "Labdesk Admin",
		Role:        string(rbac.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("seeded initial admin account %s", admin.Email)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Can reports whether a role may perform an action.
func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

/* --------------------------------- auth --------------------------------- */

// SignIn authenticates an email/password pair and issues an access token.
func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.users.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}

	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  util.NewID(""),
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and reconstructs the session.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

/* ------------------------------- articles ------------------------------- */

// ArticleList is the paginated article listing envelope.
type ArticleList struct {
	Items []draft.Article `json:"items"`
	Total int             `json:"total"`
}

func (s *Service) ListArticles(ctx context.Context, session Session, f store.ArticleFilter) (ArticleList, error) {
	items, total, err := s.store.ListArticles(ctx, f)
	if err != nil {
		return ArticleList{}, fmt.Errorf("list articles: %w", err)
	}

	payloads := make([]draft.Article, 0, len(items))
	for _, a := range items {
		p := a.Payload()
		if !s.articleVisibleTo(session, p) {
			continue
		}
		payloads = append(payloads, p)
	}
	return ArticleList{Items: payloads, Total: total}, nil
}

func (s *Service) GetArticle(ctx context.Context, session Session, id string) (draft.Article, error) {
	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return draft.Article{}, domainError(http.StatusNotFound, "NOT_FOUND", "Article not found", nil)
		}
		return draft.Article{}, fmt.Errorf("get article: %w", err)
	}
	p := a.Payload()
	if !s.articleVisibleTo(session, p) {
		return draft.Article{}, domainError(http.StatusNotFound, "NOT_FOUND", "Article not found", nil)
	}
	return p, nil
}

// SaveArticle persists a submitted payload, uploads a pending hero image,
// records a revision, and refreshes the search index.
func (s *Service) SaveArticle(ctx context.Context, session Session, payload draft.Article) (draft.Article, error) {
	if strings.TrimSpace(payload.Title) == "" {
		return draft.Article{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if strings.TrimSpace(payload.Slug) == "" {
		return draft.Article{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug is required", nil)
	}
	if payload.Visibility == draft.VisibilitySelected && len(payload.AllowedUserIDs) == 0 {
		return draft.Article{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "restricted visibility needs at least one allowed user", nil)
	}

	if payload.ID == "" {
		payload.ID = util.NewID("art")
	}
	if payload.AuthorID == "" {
		payload.AuthorID = session.UserID
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}

	if payload.Hero.DataURI != "" && s.media != nil {
		url, err := s.media.UploadDataURI(ctx, payload.Hero.DataURI)
		if err != nil {
			return draft.Article{}, domainError(http.StatusUnprocessableEntity, "INVALID_IMAGE", "hero image could not be stored", nil)
		}
		payload.Hero.PreviewURL = url
		payload.Hero.DataURI = ""
	}

	saved, err := s.store.SaveArticle(ctx, store.ArticleFromPayload(payload))
	if err != nil {
		return draft.Article{}, fmt.Errorf("save article: %w", err)
	}
	result := saved.Payload()

	if s.revisions != nil {
		message := "Save draft"
		switch result.Status {
		case draft.StatusInReview:
			message = "Submit for review"
		case draft.StatusPublished:
			message = "Publish"
		}
		if _, err := s.revisions.Record(result.ID, result, session.UserName, message); err != nil {
			log.Printf("record article revision failed for %s: %v", result.ID, err)
		}
	}

	s.search.IndexArticle(search.ArticleRecord{
		ID:          result.ID,
		Title:       result.Title,
		Excerpt:     result.Excerpt,
		BodyPreview: result.BodyPreview,
		TeamID:      result.TeamID,
		Status:      result.Status,
		Visibility:  string(result.Visibility),
	})
	return result, nil
}

func (s *Service) ArticleHistory(ctx context.Context, id string, limit int) ([]revision.CommitInfo, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	if _, err := s.store.GetArticle(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Article not found", nil)
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	history, err := s.revisions.History(id, limit)
	if err != nil {
		return nil, fmt.Errorf("article history: %w", err)
	}
	return history, nil
}

func (s *Service) ArticleRevision(ctx context.Context, id, hash string) (draft.Article, error) {
	if s.revisions == nil {
		return draft.Article{}, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	payload, err := s.revisions.GetByHash(id, hash)
	if err != nil {
		return draft.Article{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return payload, nil
}

// ArticleRevisionDiff reports which payload fields changed between the
// revision at hash and the current head of the article's history.
func (s *Service) ArticleRevisionDiff(ctx context.Context, id, hash string) (map[string]any, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	old, err := s.revisions.GetByHash(id, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	head, headInfo, err := s.revisions.Head(id)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"from":    hash,
		"to":      headInfo.Hash,
		"changes": revision.DiffFields(old, head),
	}, nil
}

func (s *Service) ExportArticle(ctx context.Context, req export.Request) (*export.Result, error) {
	if s.exports == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	result, err := s.exports.Export(ctx, req)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unsupported export format", nil)
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering is not available", nil)
		}
		return nil, fmt.Errorf("export article: %w", err)
	}
	return result, nil
}

// UploadMedia stores an editor image and returns its URL.
func (s *Service) UploadMedia(ctx context.Context, dataURI string) (string, error) {
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage is not configured", nil)
	}
	url, err := s.media.UploadDataURI(ctx, dataURI)
	if err != nil {
		return "", domainError(http.StatusUnprocessableEntity, "INVALID_IMAGE", "image could not be stored", nil)
	}
	return url, nil
}

/* -------------------------------- briefs -------------------------------- */

// BriefView is a brief joined with its pipeline state.
type BriefView struct {
	Brief           store.Brief `json:"brief"`
	Stage           stage.Entry `json:"stage"`
	ProgressPercent int         `json:"progressPercent"`
	NextStage       stage.Stage `json:"nextStage"`
	PrevStage       stage.Stage `json:"prevStage"`
}

// BriefList is the paginated brief listing envelope.
type BriefList struct {
	Items []store.Brief `json:"items"`
	Total int           `json:"total"`
}

func (s *Service) ListBriefs(ctx context.Context, f store.BriefFilter) (BriefList, error) {
	items, total, err := s.store.ListBriefs(ctx, f)
	if err != nil {
		return BriefList{}, fmt.Errorf("list briefs: %w", err)
	}
	return BriefList{Items: items, Total: total}, nil
}

func (s *Service) GetBrief(ctx context.Context, id string) (BriefView, error) {
	brief, err := s.store.GetBrief(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BriefView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Brief not found", nil)
		}
		return BriefView{}, fmt.Errorf("get brief: %w", err)
	}
	entry, err := s.stages.Seed(ctx, brief.ID, brief.Stage, brief.CreatedAt, nil)
	if err != nil {
		return BriefView{}, fmt.Errorf("seed brief stage: %w", err)
	}
	return briefView(brief, entry), nil
}

// CreateBrief registers an intake request and seeds its pipeline state.
func (s *Service) CreateBrief(ctx context.Context, b store.Brief) (BriefView, error) {
	if strings.TrimSpace(b.ClientName) == "" {
		return BriefView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clientName is required", nil)
	}
	if b.ID == "" {
		b.ID = util.NewID("brf")
	}
	if !stage.Valid(b.Stage) {
		b.Stage = stage.RequestSubmitted
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	created, err := s.store.CreateBrief(ctx, b)
	if err != nil {
		return BriefView{}, fmt.Errorf("create brief: %w", err)
	}
	entry, err := s.stages.Seed(ctx, created.ID, created.Stage, created.CreatedAt, nil)
	if err != nil {
		return BriefView{}, fmt.Errorf("seed brief stage: %w", err)
	}

	s.search.IndexBrief(search.BriefRecord{
		ID:         created.ID,
		ClientName: created.ClientName,
		Company:    created.Company,
		Summary:    created.Summary,
		TeamID:     created.TeamID,
		Stage:      string(created.Stage),
	})
	return briefView(created, entry), nil
}

// AdvanceBrief moves a brief to the next pipeline stage. A note is required.
func (s *Service) AdvanceBrief(ctx context.Context, session Session, id, note string) (BriefView, error) {
	return s.transitionBrief(ctx, session, id, func(ctx context.Context) (stage.Entry, error) {
		return s.stages.Advance(ctx, id, note, session.UserName)
	})
}

// RevertBrief moves a brief one stage back. Already at the first stage is a
// silent no-op.
func (s *Service) RevertBrief(ctx context.Context, session Session, id, note string) (BriefView, error) {
	return s.transitionBrief(ctx, session, id, func(ctx context.Context) (stage.Entry, error) {
		return s.stages.Revert(ctx, id, note, session.UserName)
	})
}

// SetBriefStage jumps a brief to an arbitrary stage, forward or backward.
func (s *Service) SetBriefStage(ctx context.Context, session Session, id string, target stage.Stage, note string) (BriefView, error) {
	if !stage.Valid(target) {
		return BriefView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown stage", nil)
	}
	return s.transitionBrief(ctx, session, id, func(ctx context.Context) (stage.Entry, error) {
		return s.stages.SetStage(ctx, id, target, note, session.UserName)
	})
}

func (s *Service) transitionBrief(ctx context.Context, session Session, id string, apply func(context.Context) (stage.Entry, error)) (BriefView, error) {
	brief, err := s.store.GetBrief(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BriefView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Brief not found", nil)
		}
		return BriefView{}, fmt.Errorf("get brief: %w", err)
	}
	if _, err := s.stages.Seed(ctx, brief.ID, brief.Stage, brief.CreatedAt, nil); err != nil {
		return BriefView{}, fmt.Errorf("seed brief stage: %w", err)
	}

	entry, err := apply(ctx)
	if err != nil {
		if errors.Is(err, stage.ErrNoteRequired) {
			return BriefView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a note is required to advance", nil)
		}
		if errors.Is(err, stage.ErrTerminalStage) {
			return BriefView{}, domainError(http.StatusConflict, "CANNOT_ADVANCE", "Brief is already at the final stage", nil)
		}
		return BriefView{}, fmt.Errorf("brief transition: %w", err)
	}

	if entry.Stage != brief.Stage {
		if err := s.store.SetBriefStage(ctx, brief.ID, string(entry.Stage), entry.UpdatedAt); err != nil {
			return BriefView{}, fmt.Errorf("mirror brief stage: %w", err)
		}
		brief.Stage = entry.Stage
		brief.UpdatedAt = entry.UpdatedAt

		s.search.IndexBrief(search.BriefRecord{
			ID:         brief.ID,
			ClientName: brief.ClientName,
			Company:    brief.Company,
			Summary:    brief.Summary,
			TeamID:     brief.TeamID,
			Stage:      string(brief.Stage),
		})
		s.notifyStageChange(brief, entry, session.UserName)
	}
	return briefView(brief, entry), nil
}

func (s *Service) notifyStageChange(brief store.Brief, entry stage.Entry, actor string) {
	if s.mail == nil || !s.mail.IsConfigured() || brief.ContactEmail == "" {
		return
	}
	var note string
	if len(entry.History) > 0 {
		note = entry.History[len(entry.History)-1].Note
	}
	go func() {
		err := s.mail.SendStageChangeEmail(brief.ContactEmail, email.StageChangeData{
			ClientName: brief.ClientName,
			BriefID:    brief.ID,
			StageLabel: stage.Label(entry.Stage),
			Note:       note,
			MovedBy:    actor,
		})
		if err != nil {
			log.Printf("stage change email failed for brief %s: %v", brief.ID, err)
		}
	}()
}

type stageWatcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}

// WatchStages follows stage-change announcements from the shared store and
// adopts each changed entry wholesale: the mirrored stage column and the
// search index are refreshed from whatever was written, including writes by
// another instance. Blocks until ctx is done.
func (s *Service) WatchStages(ctx context.Context, w stageWatcher) error {
	return w.Watch(ctx, func(briefID string) {
		if err := s.refreshBrief(ctx, briefID); err != nil {
			log.Printf("stage watch: refresh brief %s: %v", briefID, err)
		}
	})
}

func (s *Service) refreshBrief(ctx context.Context, id string) error {
	brief, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return fmt.Errorf("get brief: %w", err)
	}
	entry, err := s.stages.Current(ctx, id)
	if err != nil {
		return err
	}
	if entry.Stage == "" {
		return nil
	}
	if entry.Stage != brief.Stage {
		if err := s.store.SetBriefStage(ctx, id, string(entry.Stage), entry.UpdatedAt); err != nil {
			return fmt.Errorf("mirror brief stage: %w", err)
		}
		brief.Stage = entry.Stage
		brief.UpdatedAt = entry.UpdatedAt
	}
	s.search.IndexBrief(search.BriefRecord{
		ID:         brief.ID,
		ClientName: brief.ClientName,
		Company:    brief.Company,
		Summary:    brief.Summary,
		TeamID:     brief.TeamID,
		Stage:      string(brief.Stage),
	})
	return nil
}

func (s *Service) BriefTimeline(ctx context.Context, id string) ([]stage.TimelineItem, error) {
	view, err := s.GetBrief(ctx, id)
	if err != nil {
		return nil, err
	}
	return stage.Timeline(view.Stage), nil
}

func briefView(brief store.Brief, entry stage.Entry) BriefView {
	return BriefView{
		Brief:           brief,
		Stage:           entry,
		ProgressPercent: stage.ProgressPercent(entry.Stage),
		NextStage:       stage.Next(entry.Stage),
		PrevStage:       stage.Prev(entry.Stage),
	}
}

/* -------------------------------- search -------------------------------- */

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

/* --------------------------- users and teams ---------------------------- */

func (s *Service) Users() *users.Service {
	return s.users
}

func (s *Service) ListTeams(ctx context.Context) ([]store.Team, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

func (s *Service) TeamRoles(ctx context.Context, userID string) ([]store.TeamRole, error) {
	roles, err := s.store.TeamRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list team roles: %w", err)
	}
	return roles, nil
}

func (s *Service) GrantTeamRole(ctx context.Context, grant store.TeamRole) error {
	if grant.UserID == "" || grant.TeamID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId and teamId are required", nil)
	}
	grant.Role = string(rbac.Normalize(grant.Role))
	if err := s.store.GrantTeamRole(ctx, grant); err != nil {
		return fmt.Errorf("grant team role: %w", err)
	}
	return nil
}

func (s *Service) RevokeTeamRole(ctx context.Context, userID, teamID string) error {
	if err := s.store.RevokeTeamRole(ctx, userID, teamID); err != nil {
		return fmt.Errorf("revoke team role: %w", err)
	}
	return nil
}
