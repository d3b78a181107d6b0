package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"labdesk/api/internal/draft"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

/* -------------------------------- users -------------------------------- */

const userColumns = `id, display_name, email, password_hash, role, COALESCE(team_id, ''), deactivated_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role,
		&u.TeamID, &u.DeactivatedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, team_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at, updated_at
	`, u.ID, u.DisplayName, u.Email, u.PasswordHash, u.Role, u.TeamID).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetUserRole(ctx context.Context, userID, role string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1
	`, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

/* -------------------------------- teams -------------------------------- */

func (s *PostgresStore) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	items := make([]Team, 0)
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *PostgresStore) TeamRoles(ctx context.Context, userID string) ([]TeamRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, team_id, role FROM team_roles WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list team roles: %w", err)
	}
	defer rows.Close()

	items := make([]TeamRole, 0)
	for rows.Next() {
		var tr TeamRole
		if err := rows.Scan(&tr.UserID, &tr.TeamID, &tr.Role); err != nil {
			return nil, fmt.Errorf("scan team role: %w", err)
		}
		items = append(items, tr)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GrantTeamRole(ctx context.Context, grant TeamRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_roles (user_id, team_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, team_id) DO UPDATE SET role=EXCLUDED.role
	`, grant.UserID, grant.TeamID, grant.Role)
	if err != nil {
		return fmt.Errorf("grant team role: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeTeamRole(ctx context.Context, userID, teamID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM team_roles WHERE user_id=$1 AND team_id=$2
	`, userID, teamID)
	if err != nil {
		return fmt.Errorf("revoke team role: %w", err)
	}
	return nil
}

/* ------------------------------- articles ------------------------------ */

const articleColumns = `id, slug, title, excerpt, body_preview, hero, tags, read_time_min,
	author_id, COALESCE(team_id, ''), publish_credit, visibility, status,
	allowed_user_ids, body_blocks, created_at, published_at, updated_at`

func scanArticle(row interface{ Scan(...any) error }) (Article, error) {
	var (
		a         Article
		hero      []byte
		tags      []byte
		allowed   []byte
		rawBlocks []byte
	)
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Excerpt, &a.BodyPreview, &hero, &tags,
		&a.ReadTimeMin, &a.AuthorID, &a.TeamID, &a.PublishCredit, &a.Visibility,
		&a.Status, &allowed, &rawBlocks, &a.CreatedAt, &a.PublishedAt, &a.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	if err := json.Unmarshal(hero, &a.Hero); err != nil {
		return Article{}, fmt.Errorf("decode hero: %w", err)
	}
	if err := json.Unmarshal(tags, &a.Tags); err != nil {
		return Article{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(allowed, &a.AllowedUserIDs); err != nil {
		return Article{}, fmt.Errorf("decode allowed users: %w", err)
	}
	if err := json.Unmarshal(rawBlocks, &a.BodyBlocks); err != nil {
		return Article{}, fmt.Errorf("decode body blocks: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status="+arg(f.Status))
	}
	if f.Visibility != "" {
		where = append(where, "visibility="+arg(f.Visibility))
	}
	if f.TeamID != "" {
		where = append(where, "team_id="+arg(f.TeamID))
	}
	if f.AuthorID != "" {
		where = append(where, "author_id="+arg(f.AuthorID))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, "(title ILIKE "+p+" OR excerpt ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	order := "created_at DESC"
	switch f.Sort {
	case "oldest":
		order = "created_at ASC"
	case "title":
		order = "title ASC"
	}
	query := `SELECT ` + articleColumns + ` FROM articles WHERE ` + cond + ` ORDER BY ` + order
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	items := make([]Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// SaveArticle upserts a submitted payload: the whole row is replaced, since
// payloads arrive fully built.
func (s *PostgresStore) SaveArticle(ctx context.Context, a Article) (Article, error) {
	hero, err := json.Marshal(a.Hero)
	if err != nil {
		return Article{}, fmt.Errorf("encode hero: %w", err)
	}
	tags, err := json.Marshal(orEmpty(a.Tags))
	if err != nil {
		return Article{}, fmt.Errorf("encode tags: %w", err)
	}
	allowed, err := json.Marshal(orEmpty(a.AllowedUserIDs))
	if err != nil {
		return Article{}, fmt.Errorf("encode allowed users: %w", err)
	}
	body, err := json.Marshal(a.BodyBlocks)
	if err != nil {
		return Article{}, fmt.Errorf("encode body blocks: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO articles (id, slug, title, excerpt, body_preview, hero, tags, read_time_min,
			author_id, team_id, publish_credit, visibility, status, allowed_user_ids,
			body_blocks, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			slug=EXCLUDED.slug, title=EXCLUDED.title, excerpt=EXCLUDED.excerpt,
			body_preview=EXCLUDED.body_preview, hero=EXCLUDED.hero, tags=EXCLUDED.tags,
			read_time_min=EXCLUDED.read_time_min, team_id=EXCLUDED.team_id,
			publish_credit=EXCLUDED.publish_credit, visibility=EXCLUDED.visibility,
			status=EXCLUDED.status, allowed_user_ids=EXCLUDED.allowed_user_ids,
			body_blocks=EXCLUDED.body_blocks, published_at=EXCLUDED.published_at,
			updated_at=NOW()
		RETURNING updated_at
	`, a.ID, a.Slug, a.Title, a.Excerpt, a.BodyPreview, hero, tags, a.ReadTimeMin,
		a.AuthorID, a.TeamID, a.PublishCredit, a.Visibility, a.Status, allowed,
		body, a.CreatedAt, a.PublishedAt).Scan(&a.UpdatedAt)
	if err != nil {
		return Article{}, fmt.Errorf("save article: %w", err)
	}
	return a, nil
}

// ArticleFromPayload maps a built draft payload onto the stored shape.
func ArticleFromPayload(p draft.Article) Article {
	a := Article{
		ID:             p.ID,
		Slug:           p.Slug,
		Title:          p.Title,
		Excerpt:        p.Excerpt,
		BodyPreview:    p.BodyPreview,
		Hero:           p.Hero,
		Tags:           p.Tags,
		ReadTimeMin:    p.ReadTimeMin,
		AuthorID:       p.AuthorID,
		TeamID:         p.TeamID,
		PublishCredit:  string(p.PublishCredit),
		Visibility:     string(p.Visibility),
		Status:         p.Status,
		AllowedUserIDs: p.AllowedUserIDs,
		BodyBlocks:     p.BodyBlocks,
		CreatedAt:      p.CreatedAt,
	}
	if !p.PublishedAt.IsZero() {
		t := p.PublishedAt
		a.PublishedAt = &t
	}
	return a
}

// Payload reconstructs the draft-layer article for edit-mode hydration.
func (a Article) Payload() draft.Article {
	p := draft.Article{
		ID:             a.ID,
		Slug:           a.Slug,
		Title:          a.Title,
		Excerpt:        a.Excerpt,
		BodyPreview:    a.BodyPreview,
		Hero:           a.Hero,
		Tags:           a.Tags,
		ReadTimeMin:    a.ReadTimeMin,
		AuthorID:       a.AuthorID,
		TeamID:         a.TeamID,
		PublishCredit:  draft.PublishCredit(a.PublishCredit),
		Visibility:     draft.Visibility(a.Visibility),
		Status:         a.Status,
		AllowedUserIDs: a.AllowedUserIDs,
		BodyBlocks:     a.BodyBlocks,
		CreatedAt:      a.CreatedAt,
	}
	if a.PublishedAt != nil {
		p.PublishedAt = *a.PublishedAt
	}
	return p
}

/* -------------------------------- briefs ------------------------------- */

const briefColumns = `id, client_name, company, contact_email, service, summary,
	COALESCE(assignee_id, ''), COALESCE(team_id, ''), stage, created_at, updated_at`

func scanBrief(row interface{ Scan(...any) error }) (Brief, error) {
	var b Brief
	err := row.Scan(&b.ID, &b.ClientName, &b.Company, &b.ContactEmail, &b.Service,
		&b.Summary, &b.AssigneeID, &b.TeamID, &b.Stage, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *PostgresStore) GetBrief(ctx context.Context, id string) (Brief, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id=$1`, id)
	b, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Brief{}, ErrNotFound
	}
	if err != nil {
		return Brief{}, fmt.Errorf("get brief: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBriefs(ctx context.Context, f BriefFilter) ([]Brief, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Stage != "" {
		where = append(where, "stage="+arg(string(f.Stage)))
	}
	if f.AssigneeID != "" {
		where = append(where, "assignee_id="+arg(f.AssigneeID))
	}
	if f.TeamID != "" {
		where = append(where, "team_id="+arg(f.TeamID))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, "(client_name ILIKE "+p+" OR company ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM briefs WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count briefs: %w", err)
	}

	order := "created_at DESC"
	switch f.Sort {
	case "oldest":
		order = "created_at ASC"
	case "client":
		order = "client_name ASC"
	}
	query := `SELECT ` + briefColumns + ` FROM briefs WHERE ` + cond + ` ORDER BY ` + order
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list briefs: %w", err)
	}
	defer rows.Close()

	items := make([]Brief, 0)
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan brief: %w", err)
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (s *PostgresStore) CreateBrief(ctx context.Context, b Brief) (Brief, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO briefs (id, client_name, company, contact_email, service, summary,
			assignee_id, team_id, stage)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING created_at, updated_at
	`, b.ID, b.ClientName, b.Company, b.ContactEmail, b.Service, b.Summary,
		b.AssigneeID, b.TeamID, string(b.Stage)).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Brief{}, fmt.Errorf("insert brief: %w", err)
	}
	return b, nil
}

// SetBriefStage mirrors the stage pointer onto the row after a transition so
// listings agree with the stage store.
func (s *PostgresStore) SetBriefStage(ctx context.Context, id string, st string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE briefs SET stage=$2, updated_at=$3 WHERE id=$1
	`, id, st, at)
	if err != nil {
		return fmt.Errorf("set brief stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
