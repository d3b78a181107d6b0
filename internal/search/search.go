package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultArticle ResultType = "article"
	ResultBrief   ResultType = "brief"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	TeamID  string     `json:"teamId"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterTeamID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexArticle(a ArticleRecord) error
	IndexBrief(b BriefRecord) error
	DeleteArticle(id string) error
	DeleteBrief(id string) error
}

// ArticleRecord is the data we index for an article.
type ArticleRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt"`
	BodyPreview string `json:"bodyPreview"`
	TeamID      string `json:"teamId"`
	Status      string `json:"status"`
	Visibility  string `json:"visibility"`
}

// BriefRecord is the data we index for a brief.
type BriefRecord struct {
	ID         string `json:"id"`
	ClientName string `json:"clientName"`
	Company    string `json:"company"`
	Summary    string `json:"summary"`
	TeamID     string `json:"teamId"`
	Stage      string `json:"stage"`
}
