package stage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"labdesk/api/internal/kv"
)

var (
	// ErrTerminalStage is reported when advancing past the final stage.
	ErrTerminalStage = errors.New("brief is already at the final stage")
	// ErrNoteRequired is reported when Advance is called without a note.
	ErrNoteRequired = errors.New("a note is required to advance a brief")
)

// Event is one recorded transition.
type Event struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
	By    string    `json:"by"`
	Note  string    `json:"note"`
}

// Entry is the full persisted state for one brief: the current stage pointer
// plus the complete history. It is always written and replaced in full.
type Entry struct {
	Stage     Stage     `json:"stage"`
	UpdatedAt time.Time `json:"updatedAt"`
	History   []Event   `json:"history"`
}

// TimelineItem is a display-ready history entry.
type TimelineItem struct {
	Title string    `json:"title"`
	At    time.Time `json:"at"`
	By    string    `json:"by"`
	Note  string    `json:"note"`
}

// Store is the slice of the key-value store the machine needs.
type Store interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any) error
}

// Machine runs the pipeline state machine for briefs, keyed by brief id,
// persisting every transition through the shared store.
type Machine struct {
	store Store
	now   func() time.Time
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store, now: time.Now}
}

// Seed establishes the entry for a brief on first access. When the store
// already holds an entry for the id, the call is a no-op whatever the inputs:
// reseeding never reconciles drift. Otherwise the supplied history is sorted
// by timestamp and replayed; with no history a synthetic created event seeds
// the first stage, and when the brief's nominal stage differs from the last
// replayed entry it is appended once more.
func (m *Machine) Seed(ctx context.Context, briefID string, initial Stage, createdAt time.Time, history []Event) (Entry, error) {
	var existing Entry
	err := m.store.Get(ctx, briefID, &existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return Entry{}, fmt.Errorf("load stage entry: %w", err)
	}

	events := make([]Event, 0, len(history)+1)
	for _, ev := range history {
		if Valid(ev.Stage) {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})

	if len(events) == 0 {
		events = append(events, Event{
			Stage: RequestSubmitted,
			At:    createdAt,
			By:    "system",
			Note:  "Brief created",
		})
	}
	if Valid(initial) && events[len(events)-1].Stage != initial {
		events = append(events, Event{
			Stage: initial,
			At:    m.now(),
			By:    "system",
			Note:  "Stage recorded at import",
		})
	}

	entry := Entry{
		Stage:     events[len(events)-1].Stage,
		UpdatedAt: events[len(events)-1].At,
		History:   events,
	}
	if err := m.store.Set(ctx, briefID, entry); err != nil {
		return Entry{}, fmt.Errorf("persist stage entry: %w", err)
	}
	return entry, nil
}

// Current returns the entry for a brief, or a zero entry when none exists.
func (m *Machine) Current(ctx context.Context, briefID string) (Entry, error) {
	var entry Entry
	err := m.store.Get(ctx, briefID, &entry)
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load stage entry: %w", err)
	}
	return entry, nil
}

// current loads the entry for a transition, falling back to an unrecorded
// first-stage entry when the brief was never seeded.
func (m *Machine) current(ctx context.Context, briefID string) (Entry, error) {
	var entry Entry
	err := m.store.Get(ctx, briefID, &entry)
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{Stage: RequestSubmitted}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load stage entry: %w", err)
	}
	return entry, nil
}

// Advance moves the brief to the immediate successor stage. The note is
// mandatory: forward movement always carries a justification. At the
// terminal stage nothing is written and ErrTerminalStage is returned.
func (m *Machine) Advance(ctx context.Context, briefID, note, actor string) (Entry, error) {
	if note == "" {
		return Entry{}, ErrNoteRequired
	}
	entry, err := m.current(ctx, briefID)
	if err != nil {
		return Entry{}, err
	}
	next := Next(entry.Stage)
	if next == "" {
		return entry, ErrTerminalStage
	}
	return m.transition(ctx, briefID, entry, next, note, actor)
}

// Revert moves the brief to the immediate predecessor stage. At the first
// stage nothing happens.
func (m *Machine) Revert(ctx context.Context, briefID, note, actor string) (Entry, error) {
	entry, err := m.current(ctx, briefID)
	if err != nil {
		return Entry{}, err
	}
	prev := Prev(entry.Stage)
	if prev == "" {
		return entry, nil
	}
	return m.transition(ctx, briefID, entry, prev, note, actor)
}

// SetStage jumps the brief to an arbitrary stage, forward or backward; this
// is an explicit override, so the note is optional. An unrecognized target
// is ignored without writing history.
func (m *Machine) SetStage(ctx context.Context, briefID string, target Stage, note, actor string) (Entry, error) {
	entry, err := m.current(ctx, briefID)
	if err != nil {
		return Entry{}, err
	}
	if !Valid(target) {
		return entry, nil
	}
	return m.transition(ctx, briefID, entry, target, note, actor)
}

func (m *Machine) transition(ctx context.Context, briefID string, entry Entry, target Stage, note, actor string) (Entry, error) {
	now := m.now()
	entry.Stage = target
	entry.UpdatedAt = now
	entry.History = append(entry.History, Event{
		Stage: target,
		At:    now,
		By:    actor,
		Note:  note,
	})
	if err := m.store.Set(ctx, briefID, entry); err != nil {
		return Entry{}, fmt.Errorf("persist stage entry: %w", err)
	}
	return entry, nil
}

// Timeline maps an entry's history to display entries titled
// "Moved to {stage}".
func Timeline(entry Entry) []TimelineItem {
	items := make([]TimelineItem, len(entry.History))
	for i, ev := range entry.History {
		items[i] = TimelineItem{
			Title: "Moved to " + Label(ev.Stage),
			At:    ev.At,
			By:    ev.By,
			Note:  ev.Note,
		}
	}
	return items
}
