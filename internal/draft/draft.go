// Package draft holds the editable article aggregate: block content plus
// metadata, derived slug and read time, and the three-step wizard cursor.
// All mutations run synchronously; derived fields are recomputed at the end
// of the handler that changed their inputs.
package draft

import (
	"strings"
	"time"

	"labdesk/api/internal/blocks"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityTeam     Visibility = "team"
	VisibilitySelected Visibility = "selected"
	VisibilityPrivate  Visibility = "private"
)

type PublishCredit string

const (
	CreditTeam   PublishCredit = "team"
	CreditAuthor PublishCredit = "author"
)

// Wizard steps.
const (
	StepWrite   = 1
	StepDetails = 2
	StepReview  = 3
)

// Hero pairs the persistable data-URI form of the hero image with an
// ephemeral preview URL. Both are empty when no hero is set.
type Hero struct {
	DataURI    string `json:"dataUri"`
	PreviewURL string `json:"previewUrl"`
	Alt        string `json:"alt"`
}

func (h Hero) Empty() bool { return h.DataURI == "" && h.PreviewURL == "" }

// Draft is one in-progress article. Create with New or Hydrate; mutate only
// through the methods below so the derived fields stay consistent.
type Draft struct {
	Title          string
	Excerpt        string
	Blocks         []blocks.Block
	Slug           string
	SlugLocked     bool
	Tags           []string
	Hero           Hero
	TeamID         string
	AuthorID       string
	PublishCredit  PublishCredit
	Visibility     Visibility
	AllowedUserIDs []string
	ReadTimeMin    int

	Step        int
	PreviewOpen bool

	// provenance carried over in edit mode, zero otherwise
	ID          string
	Status      string
	CreatedAt   time.Time
	PublishedAt time.Time

	editMode    bool
	slugTouched bool
}

// New returns an empty create-mode draft at step 1.
func New(authorID string) *Draft {
	return &Draft{
		AuthorID:      authorID,
		PublishCredit: CreditTeam,
		Visibility:    VisibilityPublic,
		Step:          StepWrite,
	}
}

// Hydrate builds an edit-mode draft from an existing article. The wizard
// still starts at step 1; provenance fields (id, status, timestamps) are
// preserved verbatim through BuildPayload.
func Hydrate(a Article) *Draft {
	d := &Draft{
		Title:          a.Title,
		Excerpt:        a.Excerpt,
		Blocks:         append([]blocks.Block(nil), a.BodyBlocks...),
		Slug:           a.Slug,
		Tags:           append([]string(nil), a.Tags...),
		Hero:           a.Hero,
		TeamID:         a.TeamID,
		AuthorID:       a.AuthorID,
		PublishCredit:  a.PublishCredit,
		Visibility:     a.Visibility,
		AllowedUserIDs: append([]string(nil), a.AllowedUserIDs...),
		ReadTimeMin:    a.ReadTimeMin,
		Step:           StepWrite,
		ID:             a.ID,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt,
		PublishedAt:    a.PublishedAt,
		editMode:       true,
	}
	// an existing slug counts as user-chosen; don't clobber it on retitle
	if a.Slug != "" {
		d.slugTouched = true
	}
	return d
}

// HasContent reports whether the draft is substantial enough to leave the
// write step: a title plus non-empty body text.
func (d *Draft) HasContent() bool {
	return strings.TrimSpace(d.Title) != "" &&
		strings.TrimSpace(blocks.PlainText(d.Blocks)) != ""
}

// BodyPreview is the plain-text body truncated at 220 runes.
func (d *Draft) BodyPreview() string {
	plain := blocks.PlainText(d.Blocks)
	runes := []rune(plain)
	if len(runes) <= 220 {
		return plain
	}
	return strings.TrimSpace(string(runes[:220])) + "…"
}

/* ------------------------------ mutations ------------------------------ */

func (d *Draft) SetTitle(title string) {
	d.Title = title
	d.autoSlug()
}

func (d *Draft) SetExcerpt(excerpt string) { d.Excerpt = excerpt }

func (d *Draft) SetBlocks(seq []blocks.Block) {
	d.Blocks = seq
	d.autoReadTime()
}

func (d *Draft) SetTags(tags []string) { d.Tags = tags }

func (d *Draft) SetTeam(teamID string) { d.TeamID = teamID }

func (d *Draft) SetCredit(c PublishCredit) { d.PublishCredit = c }

func (d *Draft) SetVisibility(v Visibility) { d.Visibility = v }

func (d *Draft) SetAllowedUsers(ids []string) { d.AllowedUserIDs = ids }

// SetReadTime records an explicit read time. Any positive value sticks and
// suppresses auto-derivation from the body.
func (d *Draft) SetReadTime(minutes int) { d.ReadTimeMin = minutes }

func (d *Draft) SetHero(h Hero) { d.Hero = h }

func (d *Draft) ClearHero() { d.Hero = Hero{} }

func (d *Draft) TogglePreview() { d.PreviewOpen = !d.PreviewOpen }

// SetSlug records a manual slug edit. Manual edits are sticky: auto-slug
// stays suspended until ToggleSlugLock unlocks and resets the flag.
func (d *Draft) SetSlug(slug string) {
	d.Slug = slug
	d.slugTouched = true
}

// ToggleSlugLock flips the lock. Unlocking resets the manual-edit flag and
// recomputes the slug from the current title at once, so a custom slug typed
// before locking is replaced on unlock.
func (d *Draft) ToggleSlugLock() {
	d.SlugLocked = !d.SlugLocked
	if !d.SlugLocked {
		d.slugTouched = false
		d.Slug = Slugify(d.Title)
	}
}

// StepTo moves the wizard cursor. Forward movement goes one step at a time
// and leaving the write step requires content; backward movement is free.
func (d *Draft) StepTo(step int) {
	if step < StepWrite || step > StepReview {
		return
	}
	if step <= d.Step {
		d.Step = step
		return
	}
	if step != d.Step+1 {
		return
	}
	if d.Step == StepWrite && !d.HasContent() {
		return
	}
	d.Step = step
}

/* --------------------------- derivation hooks --------------------------- */

func (d *Draft) autoSlug() {
	if d.SlugLocked || d.slugTouched {
		return
	}
	d.Slug = Slugify(d.Title)
}

func (d *Draft) autoReadTime() {
	if d.ReadTimeMin >= 1 {
		return
	}
	d.ReadTimeMin = EstimateReadTime(blocks.PlainText(d.Blocks))
}
