package store

import (
	"time"

	"labdesk/api/internal/blocks"
	"labdesk/api/internal/draft"
	"labdesk/api/internal/stage"
)

type User struct {
	ID            string
	DisplayName   string
	Email         string
	PasswordHash  string
	Role          string
	TeamID        string
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Team struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// TeamRole scopes a role to one team, on top of the user's base role.
type TeamRole struct {
	UserID string
	TeamID string
	Role   string
}

// Article is the persisted form of a submitted draft payload.
type Article struct {
	ID             string
	Slug           string
	Title          string
	Excerpt        string
	BodyPreview    string
	Hero           draft.Hero
	Tags           []string
	ReadTimeMin    int
	AuthorID       string
	TeamID         string
	PublishCredit  string
	Visibility     string
	Status         string
	AllowedUserIDs []string
	BodyBlocks     []blocks.Block
	CreatedAt      time.Time
	PublishedAt    *time.Time
	UpdatedAt      time.Time
}

// Brief is one client intake request moving through the pipeline. The
// authoritative stage history lives in the kv stage store; the row keeps the
// nominal stage for listing and seeding.
type Brief struct {
	ID           string
	ClientName   string
	Company      string
	ContactEmail string
	Service      string
	Summary      string
	AssigneeID   string
	TeamID       string
	Stage        stage.Stage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ArticleFilter narrows and orders an article listing.
type ArticleFilter struct {
	Status     string
	Visibility string
	TeamID     string
	AuthorID   string
	Query      string // case-insensitive match on title/excerpt
	Sort       string // newest (default), oldest, title
	Limit      int
	Offset     int
}

// BriefFilter narrows and orders a brief listing.
type BriefFilter struct {
	Stage      stage.Stage
	AssigneeID string
	TeamID     string
	Query      string // case-insensitive match on client/company
	Sort       string // newest (default), oldest, client
	Limit      int
	Offset     int
}
