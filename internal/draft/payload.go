package draft

import (
	"errors"
	"strings"
	"time"

	"labdesk/api/internal/blocks"
	"labdesk/api/internal/util"
)

// Intent names what the user asked for at submit time.
type Intent string

const (
	IntentDraft   Intent = "draft"
	IntentSubmit  Intent = "submit"
	IntentPublish Intent = "publish"
)

// Article statuses.
const (
	StatusDraft     = "draft"
	StatusInReview  = "in_review"
	StatusPublished = "published"
)

// Validation failures, surfaced distinctly.
var (
	ErrTitleRequired        = errors.New("title is required")
	ErrSlugRequired         = errors.New("slug is required")
	ErrAllowedUsersRequired = errors.New("restricted visibility needs at least one allowed user")
)

// Article is the immutable record handed to the persistence layer.
type Article struct {
	ID             string         `json:"id"`
	Slug           string         `json:"slug"`
	Title          string         `json:"title"`
	Excerpt        string         `json:"excerpt"`
	BodyPreview    string         `json:"bodyPreview"`
	Hero           Hero           `json:"hero"`
	Tags           []string       `json:"tags"`
	ReadTimeMin    int            `json:"readTimeMin"`
	AuthorID       string         `json:"author"`
	TeamID         string         `json:"team"`
	PublishCredit  PublishCredit  `json:"publishCredit"`
	Visibility     Visibility     `json:"visibility"`
	Status         string         `json:"status"`
	AllowedUserIDs []string       `json:"allowedUserIds"`
	CreatedAt      time.Time      `json:"createdAt"`
	PublishedAt    time.Time      `json:"publishedAt,omitzero"`
	BodyBlocks     []blocks.Block `json:"bodyBlocks"`
}

// Validate checks the draft is submittable with any intent.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(d.Slug) == "" {
		return ErrSlugRequired
	}
	if d.Visibility == VisibilitySelected && len(d.AllowedUserIDs) == 0 {
		return ErrAllowedUsersRequired
	}
	return nil
}

// BuildPayload assembles the article record for the given intent. A fresh id
// is generated only when the draft has none, createdAt is stamped on first
// save only, and publishedAt only on the first publish. Editing an existing
// article keeps its status verbatim whatever the intent; otherwise the
// status follows the intent.
func (d *Draft) BuildPayload(intent Intent, now time.Time) (Article, error) {
	if err := d.Validate(); err != nil {
		return Article{}, err
	}

	a := Article{
		ID:             d.ID,
		Slug:           d.Slug,
		Title:          d.Title,
		Excerpt:        d.Excerpt,
		BodyPreview:    d.BodyPreview(),
		Hero:           d.Hero,
		Tags:           append([]string(nil), d.Tags...),
		ReadTimeMin:    d.ReadTimeMin,
		AuthorID:       d.AuthorID,
		TeamID:         d.TeamID,
		PublishCredit:  d.PublishCredit,
		Visibility:     d.Visibility,
		AllowedUserIDs: append([]string(nil), d.AllowedUserIDs...),
		CreatedAt:      d.CreatedAt,
		PublishedAt:    d.PublishedAt,
		BodyBlocks:     append([]blocks.Block(nil), d.Blocks...),
	}
	if a.ID == "" {
		a.ID = util.NewID("art")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	switch {
	case d.editMode:
		a.Status = d.Status
	case intent == IntentSubmit:
		a.Status = StatusInReview
	case intent == IntentPublish:
		a.Status = StatusPublished
	default:
		a.Status = StatusDraft
	}
	if intent == IntentPublish && a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	return a, nil
}
