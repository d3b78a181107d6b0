// Package blocks defines the content block model used by the article editor:
// a closed set of block kinds, a JSON codec with a kind discriminator, and
// pure derivations over block sequences (plain text, sections, group colors).
package blocks

import (
	"encoding/json"
	"strings"

	"labdesk/api/internal/util"
)

type Kind string

const (
	KindParagraph    Kind = "paragraph"
	KindHeading2     Kind = "heading2"
	KindHeading3     Kind = "heading3"
	KindBulletList   Kind = "bulletList"
	KindNumberedList Kind = "numberedList"
	KindImage        Kind = "image"
	KindQuote        Kind = "quote"
	KindCallout      Kind = "callout"
	KindCode         Kind = "code"
)

// Kinds lists every block kind in editor-menu order.
var Kinds = []Kind{
	KindParagraph,
	KindHeading2,
	KindHeading3,
	KindBulletList,
	KindNumberedList,
	KindImage,
	KindQuote,
	KindCallout,
	KindCode,
}

type CalloutVariant string

const (
	CalloutTip    CalloutVariant = "tip"
	CalloutNote   CalloutVariant = "note"
	CalloutWarn   CalloutVariant = "warn"
	CalloutDanger CalloutVariant = "danger"
)

// Body is the kind-specific payload of a block. The set of implementations is
// closed; every consumer switches exhaustively over it.
type Body interface {
	Kind() Kind
	plainText() string
}

type Paragraph struct {
	Text string `json:"text"`
}

type Heading2 struct {
	Text string `json:"text"`
}

type Heading3 struct {
	Text string `json:"text"`
}

type BulletList struct {
	Items []string `json:"items"`
}

type NumberedList struct {
	Items []string `json:"items"`
}

type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

type Quote struct {
	Text      string `json:"text"`
	Citation  string `json:"citation"`
	Role      string `json:"role"`
	Href      string `json:"href"`
	AvatarURL string `json:"avatarUrl"`
	PullStyle bool   `json:"pullStyle"`
}

type Callout struct {
	Variant CalloutVariant `json:"variant"`
	Text    string         `json:"text"`
}

type Code struct {
	Text string `json:"text"`
}

func (Paragraph) Kind() Kind    { return KindParagraph }
func (Heading2) Kind() Kind     { return KindHeading2 }
func (Heading3) Kind() Kind     { return KindHeading3 }
func (BulletList) Kind() Kind   { return KindBulletList }
func (NumberedList) Kind() Kind { return KindNumberedList }
func (Image) Kind() Kind        { return KindImage }
func (Quote) Kind() Kind        { return KindQuote }
func (Callout) Kind() Kind      { return KindCallout }
func (Code) Kind() Kind         { return KindCode }

func (b Paragraph) plainText() string    { return b.Text }
func (b Heading2) plainText() string     { return b.Text }
func (b Heading3) plainText() string     { return b.Text }
func (b BulletList) plainText() string   { return strings.Join(b.Items, " ") }
func (b NumberedList) plainText() string { return strings.Join(b.Items, " ") }
func (b Image) plainText() string        { return joinNonBlank(b.Alt, b.Caption) }
func (b Quote) plainText() string        { return joinNonBlank(b.Text, b.Citation, b.Role) }
func (b Callout) plainText() string      { return b.Text }
func (b Code) plainText() string         { return b.Text }

// Block is one unit of article content. ID is stable across reorders; GroupID,
// when set, ties the block to adjacent blocks sharing the same value. A
// heading2 block never carries a GroupID.
type Block struct {
	ID      string
	GroupID string
	Body    Body
}

func (b Block) Kind() Kind {
	if b.Body == nil {
		return KindParagraph
	}
	return b.Body.Kind()
}

// New returns a correctly shaped zero-value block for the kind with a fresh id.
// Lists start with a single empty item.
func New(kind Kind) Block {
	return Block{ID: util.NewID("blk"), Body: emptyBody(kind)}
}

func emptyBody(kind Kind) Body {
	switch kind {
	case KindHeading2:
		return Heading2{}
	case KindHeading3:
		return Heading3{}
	case KindBulletList:
		return BulletList{Items: []string{""}}
	case KindNumberedList:
		return NumberedList{Items: []string{""}}
	case KindImage:
		return Image{}
	case KindQuote:
		return Quote{}
	case KindCallout:
		return Callout{Variant: CalloutTip}
	case KindCode:
		return Code{}
	case KindParagraph:
		return Paragraph{}
	default:
		return Paragraph{}
	}
}

// PlainText projects a sequence to a single whitespace-normalized string. It is
// total: nil bodies and empty fields contribute nothing.
func PlainText(seq []Block) string {
	parts := make([]string, 0, len(seq))
	for _, b := range seq {
		if b.Body == nil {
			continue
		}
		parts = append(parts, b.Body.plainText())
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Group palette tokens; the UI maps these to theme colors.
var groupPalette = []string{
	"group-a",
	"group-b",
	"group-c",
	"group-d",
	"group-e",
	"group-f",
}

// GroupColor hashes a group id onto a fixed palette token. Stable across
// renders: a pure function of the id's characters.
func GroupColor(groupID string) string {
	if groupID == "" {
		return ""
	}
	acc := 0
	for _, ch := range groupID {
		acc = (acc*31 + int(ch)) % 997
	}
	return groupPalette[acc%len(groupPalette)]
}

type blockJSON struct {
	ID      string          `json:"id"`
	GroupID string          `json:"groupId,omitempty"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"-"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	body := b.Body
	if body == nil {
		body = Paragraph{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["id"], _ = json.Marshal(b.ID)
	fields["kind"], _ = json.Marshal(body.Kind())
	if b.GroupID != "" {
		fields["groupId"], _ = json.Marshal(b.GroupID)
	}
	return json.Marshal(fields)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var head struct {
		ID      string `json:"id"`
		GroupID string `json:"groupId"`
		Kind    Kind   `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.ID = head.ID
	if b.ID == "" {
		b.ID = util.NewID("blk")
	}
	b.GroupID = head.GroupID
	b.Body = decodeBody(head.Kind, data)
	if b.Body.Kind() == KindHeading2 {
		b.GroupID = ""
	}
	return nil
}

// decodeBody tolerates malformed payloads: anything that does not parse into
// the kind's shape decodes to that kind's zero value, and an unknown kind
// decodes to an empty paragraph.
func decodeBody(kind Kind, data []byte) Body {
	switch kind {
	case KindHeading2:
		var v Heading2
		_ = json.Unmarshal(data, &v)
		return v
	case KindHeading3:
		var v Heading3
		_ = json.Unmarshal(data, &v)
		return v
	case KindBulletList:
		var v BulletList
		_ = json.Unmarshal(data, &v)
		return v
	case KindNumberedList:
		var v NumberedList
		_ = json.Unmarshal(data, &v)
		return v
	case KindImage:
		var v Image
		_ = json.Unmarshal(data, &v)
		return v
	case KindQuote:
		var v Quote
		_ = json.Unmarshal(data, &v)
		return v
	case KindCallout:
		var v Callout
		_ = json.Unmarshal(data, &v)
		if v.Variant == "" {
			v.Variant = CalloutTip
		}
		return v
	case KindCode:
		var v Code
		_ = json.Unmarshal(data, &v)
		return v
	default:
		var v Paragraph
		_ = json.Unmarshal(data, &v)
		return v
	}
}

func joinNonBlank(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
