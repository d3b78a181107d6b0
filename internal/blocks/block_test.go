package blocks

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewShapes(t *testing.T) {
	tests := []struct {
		kind Kind
		want func(Body) bool
	}{
		{KindParagraph, func(b Body) bool { p, ok := b.(Paragraph); return ok && p.Text == "" }},
		{KindHeading2, func(b Body) bool { _, ok := b.(Heading2); return ok }},
		{KindBulletList, func(b Body) bool {
			l, ok := b.(BulletList)
			return ok && len(l.Items) == 1 && l.Items[0] == ""
		}},
		{KindNumberedList, func(b Body) bool {
			l, ok := b.(NumberedList)
			return ok && len(l.Items) == 1
		}},
		{KindImage, func(b Body) bool {
			img, ok := b.(Image)
			return ok && img.Src == "" && img.Alt == "" && img.Caption == ""
		}},
		{KindCallout, func(b Body) bool {
			c, ok := b.(Callout)
			return ok && c.Variant == CalloutTip
		}},
	}
	seen := map[string]bool{}
	for _, tc := range tests {
		b := New(tc.kind)
		if b.ID == "" {
			t.Errorf("New(%s): empty id", tc.kind)
		}
		if seen[b.ID] {
			t.Errorf("New(%s): duplicate id %s", tc.kind, b.ID)
		}
		seen[b.ID] = true
		if !tc.want(b.Body) {
			t.Errorf("New(%s): wrong shape %#v", tc.kind, b.Body)
		}
	}
}

func TestPlainText(t *testing.T) {
	seq := []Block{
		{ID: "1", Body: Paragraph{Text: "  Hello   world "}},
		{ID: "2", Body: BulletList{Items: []string{"one", "two"}}},
		{ID: "3", Body: Image{Alt: "a lab bench", Caption: "the bench"}},
		{ID: "4", Body: Quote{Text: "quoted", Citation: "Avery", Role: "chemist"}},
		{ID: "5", Body: Code{Text: "x := 1"}},
		{ID: "6"}, // nil body contributes nothing
	}
	got := PlainText(seq)
	want := "Hello world one two a lab bench the bench quoted Avery chemist x := 1"
	if got != want {
		t.Fatalf("PlainText = %q, want %q", got, want)
	}
}

func TestPlainTextEmpty(t *testing.T) {
	if got := PlainText(nil); got != "" {
		t.Fatalf("PlainText(nil) = %q", got)
	}
	if got := PlainText([]Block{{ID: "1", Body: Paragraph{}}}); got != "" {
		t.Fatalf("PlainText(empty paragraph) = %q", got)
	}
}

func TestGroupColorStable(t *testing.T) {
	if GroupColor("") != "" {
		t.Fatal("empty group id should map to no color")
	}
	a := GroupColor("grp_abc123")
	for i := 0; i < 10; i++ {
		if GroupColor("grp_abc123") != a {
			t.Fatal("GroupColor is not stable for the same id")
		}
	}
	valid := map[string]bool{}
	for _, tok := range groupPalette {
		valid[tok] = true
	}
	if !valid[a] {
		t.Fatalf("GroupColor returned %q, not a palette token", a)
	}
}

func TestBlockJSONRoundTrip(t *testing.T) {
	in := []Block{
		{ID: "b1", Body: Paragraph{Text: "hi"}},
		{ID: "b2", GroupID: "g1", Body: Quote{Text: "q", Citation: "c", PullStyle: true}},
		{ID: "b3", GroupID: "g1", Body: BulletList{Items: []string{"a", "b"}}},
		{ID: "b4", Body: Callout{Variant: CalloutWarn, Text: "careful"}},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Block
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d blocks, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].GroupID != in[i].GroupID {
			t.Errorf("block %d identity changed: %+v vs %+v", i, out[i], in[i])
		}
		if out[i].Kind() != in[i].Kind() {
			t.Errorf("block %d kind changed: %s vs %s", i, out[i].Kind(), in[i].Kind())
		}
	}
	if q, ok := out[1].Body.(Quote); !ok || !q.PullStyle || q.Citation != "c" {
		t.Errorf("quote payload lost: %#v", out[1].Body)
	}
}

func TestBlockJSONDefensive(t *testing.T) {
	var b Block
	if err := json.Unmarshal([]byte(`{"kind":"mystery","text":"kept"}`), &b); err != nil {
		t.Fatalf("unmarshal unknown kind: %v", err)
	}
	if b.Kind() != KindParagraph {
		t.Fatalf("unknown kind decoded to %s, want paragraph", b.Kind())
	}
	if b.ID == "" {
		t.Fatal("missing id should be assigned")
	}

	// heading2 can never carry a group id
	if err := json.Unmarshal([]byte(`{"id":"h","kind":"heading2","groupId":"g9","text":"T"}`), &b); err != nil {
		t.Fatalf("unmarshal heading: %v", err)
	}
	if b.GroupID != "" {
		t.Fatalf("heading2 kept groupId %q", b.GroupID)
	}
}

func TestSections(t *testing.T) {
	h2 := func(id, text string) Block { return Block{ID: id, Body: Heading2{Text: text}} }
	p := func(id string) Block { return Block{ID: id, Body: Paragraph{Text: "x"}} }

	t.Run("leading body section", func(t *testing.T) {
		seq := []Block{p("a"), p("b"), h2("h", "Methods"), p("c")}
		secs := Sections(seq)
		if len(secs) != 2 {
			t.Fatalf("got %d sections, want 2", len(secs))
		}
		if secs[0].Heading != nil || secs[0].Title() != "Body" {
			t.Errorf("first section should be the unnamed Body section")
		}
		if secs[0].Start != 0 || secs[0].End != 1 {
			t.Errorf("body bounds = [%d,%d], want [0,1]", secs[0].Start, secs[0].End)
		}
		if secs[1].Title() != "Methods" || secs[1].Start != 2 || secs[1].End != 3 {
			t.Errorf("heading section wrong: %+v", secs[1])
		}
	})

	t.Run("no headings", func(t *testing.T) {
		secs := Sections([]Block{p("a"), p("b")})
		if len(secs) != 1 || secs[0].Heading != nil || len(secs[0].Items) != 2 {
			t.Fatalf("want single Body section with 2 items, got %+v", secs)
		}
	})

	t.Run("empty sequence", func(t *testing.T) {
		secs := Sections(nil)
		if len(secs) != 1 || len(secs[0].Items) != 0 {
			t.Fatalf("want single empty section, got %+v", secs)
		}
	})
}

func TestRenderHTML(t *testing.T) {
	seq := []Block{
		{ID: "1", Body: Heading2{Text: "Summary"}},
		{ID: "2", Body: Paragraph{Text: "Plain **bold** text"}},
		{ID: "3", Body: BulletList{Items: []string{"first", "second"}}},
		{ID: "4", Body: Code{Text: "a < b"}},
	}
	got := RenderHTML(seq)
	for _, want := range []string{
		"<h2>Summary</h2>",
		"<strong>bold</strong>",
		"<li>first</li>",
		"<pre><code>a &lt; b</code></pre>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderHTML missing %q in:\n%s", want, got)
		}
	}
}
