package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgLike implements Searcher over PostgreSQL with ILIKE matching, used as the
// fallback when Meilisearch is down.
type PgLike struct {
	db *sql.DB
}

// NewPgLike creates a PostgreSQL fallback searcher.
func NewPgLike(db *sql.DB) *PgLike {
	return &PgLike{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgLike) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across articles and briefs with ILIKE
// matching on the searchable text columns.
func (p *PgLike) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	args := []any{"%" + q.Text + "%"}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultArticle {
		where := "(a.title ILIKE $1 OR a.excerpt ILIKE $1 OR a.body_preview ILIKE $1)"
		if q.FilterTeamID != "" {
			where += fmt.Sprintf(" AND a.team_id = $%d", argN)
			args = append(args, q.FilterTeamID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'article'::text AS type, a.id, a.title,
				a.excerpt AS snippet,
				COALESCE(a.team_id, '') AS team_id, a.status
			FROM articles a
			WHERE %s`, where))
	}

	if q.FilterType == "" || q.FilterType == ResultBrief {
		where := "(b.client_name ILIKE $1 OR b.company ILIKE $1 OR b.summary ILIKE $1)"
		if q.FilterTeamID != "" {
			where += fmt.Sprintf(" AND b.team_id = $%d", argN)
			args = append(args, q.FilterTeamID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'brief'::text AS type, b.id,
				CONCAT(b.client_name, ' - ', b.company) AS title,
				b.summary AS snippet,
				COALESCE(b.team_id, '') AS team_id, b.stage AS status
			FROM briefs b
			WHERE %s`, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, team_id, status
		FROM (%s) sub
		ORDER BY title ASC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.TeamID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgLike) LoadAllRecords(ctx context.Context) ([]ArticleRecord, []BriefRecord, error) {
	articleRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, excerpt, body_preview, COALESCE(team_id, ''), status, visibility
		FROM articles
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load articles: %w", err)
	}
	defer articleRows.Close()

	articles := make([]ArticleRecord, 0)
	for articleRows.Next() {
		var a ArticleRecord
		if err := articleRows.Scan(&a.ID, &a.Title, &a.Excerpt, &a.BodyPreview, &a.TeamID, &a.Status, &a.Visibility); err != nil {
			return nil, nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := articleRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate articles: %w", err)
	}

	briefRows, err := p.db.QueryContext(ctx, `
		SELECT id, client_name, company, summary, COALESCE(team_id, ''), stage
		FROM briefs
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load briefs: %w", err)
	}
	defer briefRows.Close()

	briefs := make([]BriefRecord, 0)
	for briefRows.Next() {
		var b BriefRecord
		if err := briefRows.Scan(&b.ID, &b.ClientName, &b.Company, &b.Summary, &b.TeamID, &b.Stage); err != nil {
			return nil, nil, fmt.Errorf("scan brief: %w", err)
		}
		briefs = append(briefs, b)
	}
	if err := briefRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate briefs: %w", err)
	}

	return articles, briefs, nil
}
