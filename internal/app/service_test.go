package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"labdesk/api/internal/config"
	"labdesk/api/internal/draft"
	"labdesk/api/internal/email"
	"labdesk/api/internal/kv"
	"labdesk/api/internal/rbac"
	"labdesk/api/internal/revision"
	"labdesk/api/internal/search"
	"labdesk/api/internal/stage"
	"labdesk/api/internal/store"
	"labdesk/api/internal/users"
)

type fakeStore struct {
	mu       sync.Mutex
	articles map[string]store.Article
	briefs   map[string]store.Brief
	users    map[string]store.User
	teams    []store.Team
	grants   map[string]store.TeamRole
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles: make(map[string]store.Article),
		briefs:   make(map[string]store.Brief),
		users:    make(map[string]store.User),
		grants:   make(map[string]store.TeamRole),
	}
}

func (f *fakeStore) GetArticle(_ context.Context, id string) (store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[id]
	if !ok {
		return store.Article{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ListArticles(_ context.Context, fl store.ArticleFilter) ([]store.Article, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Article, 0, len(f.articles))
	for _, a := range f.articles {
		if fl.Status != "" && a.Status != fl.Status {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (f *fakeStore) SaveArticle(_ context.Context, a store.Article) (store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.UpdatedAt = time.Now()
	f.articles[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetBrief(_ context.Context, id string) (store.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.briefs[id]
	if !ok {
		return store.Brief{}, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListBriefs(_ context.Context, fl store.BriefFilter) ([]store.Brief, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Brief, 0, len(f.briefs))
	for _, b := range f.briefs {
		if fl.Stage != "" && b.Stage != fl.Stage {
			continue
		}
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (f *fakeStore) CreateBrief(_ context.Context, b store.Brief) (store.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.UpdatedAt = b.CreatedAt
	f.briefs[b.ID] = b
	return b, nil
}

func (f *fakeStore) SetBriefStage(_ context.Context, id string, st string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.briefs[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Stage = stage.Stage(st)
	b.UpdatedAt = at
	f.briefs[id] = b
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, emailAddr string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, emailAddr) {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) ListUsers(_ context.Context) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.User, 0, len(f.users))
	for _, u := range f.users {
		items = append(items, u)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	f.users[userID] = u
	return nil
}

func (f *fakeStore) SetUserRole(_ context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	f.users[userID] = u
	return nil
}

func (f *fakeStore) ListTeams(_ context.Context) ([]store.Team, error) {
	return f.teams, nil
}

func (f *fakeStore) TeamRoles(_ context.Context, userID string) ([]store.TeamRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.TeamRole, 0)
	for _, g := range f.grants {
		if g.UserID == userID {
			items = append(items, g)
		}
	}
	return items, nil
}

func (f *fakeStore) GrantTeamRole(_ context.Context, grant store.TeamRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[grant.UserID+"/"+grant.TeamID] = grant
	return nil
}

func (f *fakeStore) RevokeTeamRole(_ context.Context, userID, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, userID+"/"+teamID)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeSearch struct {
	mu       sync.Mutex
	articles []search.ArticleRecord
	briefs   []search.BriefRecord
	deleted  []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexArticle(a search.ArticleRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles = append(f.articles, a)
}

func (f *fakeSearch) IndexBrief(b search.BriefRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.briefs = append(f.briefs, b)
}

func (f *fakeSearch) DeleteArticle(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakeSearch) lastBriefStage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.briefs) == 0 {
		return ""
	}
	return f.briefs[len(f.briefs)-1].Stage
}

type fakeRevisionLog struct {
	mu       sync.Mutex
	messages []string
	payloads map[string]draft.Article
	byHash   map[string]draft.Article
	heads    map[string]string
}

func (f *fakeRevisionLog) Record(articleID string, payload draft.Article, author, message string) (revision.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payloads == nil {
		f.payloads = make(map[string]draft.Article)
		f.byHash = make(map[string]draft.Article)
		f.heads = make(map[string]string)
	}
	f.messages = append(f.messages, message)
	hash := fmt.Sprintf("hash%03d", len(f.messages))
	f.payloads[articleID] = payload
	f.byHash[hash] = payload
	f.heads[articleID] = hash
	return revision.CommitInfo{Hash: hash, Message: message, Author: author}, nil
}

func (f *fakeRevisionLog) History(articleID string, limit int) ([]revision.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]revision.CommitInfo, 0, len(f.messages))
	for i := len(f.messages) - 1; i >= 0; i-- {
		items = append(items, revision.CommitInfo{Hash: fmt.Sprintf("hash%03d", i+1), Message: f.messages[i]})
	}
	return items, nil
}

func (f *fakeRevisionLog) GetByHash(articleID, hash string) (draft.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byHash[hash]
	if !ok {
		return draft.Article{}, errors.New("unknown revision")
	}
	return p, nil
}

func (f *fakeRevisionLog) Head(articleID string) (draft.Article, revision.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.heads[articleID]
	if !ok {
		return draft.Article{}, revision.CommitInfo{}, errors.New("no history")
	}
	return f.payloads[articleID], revision.CommitInfo{Hash: hash}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.StageChangeData
	to   []string
}

func (f *fakeMailer) IsConfigured() bool { return true }

func (f *fakeMailer) SendStageChangeEmail(to string, data email.StageChangeData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	svc    *Service
	store  *fakeStore
	search *fakeSearch
	revs   *fakeRevisionLog
	mail   *fakeMailer
	kv     *kv.RedisStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	kvStore, err := kv.NewRedisStore("redis://"+mr.Addr(), "labdesk:test")
	if err != nil {
		t.Fatalf("failed to create kv store: %v", err)
	}
	t.Cleanup(func() { kvStore.Close() })

	cfg := config.Config{JWTSecret: "test-secret", AccessTTL: time.Hour}
	fs := newFakeStore()
	fsearch := &fakeSearch{}
	frevs := &fakeRevisionLog{}
	fmail := &fakeMailer{}

	svc := New(cfg, fs, users.NewService(fs), stage.NewMachine(kvStore), fsearch).
		WithRevisions(frevs).
		WithMailer(fmail)
	return &testEnv{svc: svc, store: fs, search: fsearch, revs: frevs, mail: fmail, kv: kvStore}
}

func (e *testEnv) createUser(t *testing.T, emailAddr, role string) store.User {
	t.Helper()
	u, err := e.svc.Users().Create(context.Background(), users.CreateRequest{
		Email:       emailAddr,
		Password:    "correct horse",
		DisplayName: strings.Split(emailAddr, "@")[0],
		Role:        role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) sessionFor(t *testing.T, u store.User) Session {
	t.Helper()
	session, err := e.svc.SignIn(context.Background(), u.Email, "correct horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return session
}

func samplePayload(authorID string) draft.Article {
	d := draft.New(authorID)
	d.SetTitle("Mineral sunscreens explained")
	d.SetBlocks(nil)
	d.SetVisibility(draft.VisibilityPublic)
	payload, err := d.BuildPayload(draft.IntentDraft, time.Now())
	if err != nil {
		panic(err)
	}
	return payload
}

func TestSignInAndSessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "avery@labdesk.dev", "editor")

	session := env.sessionFor(t, u)
	if session.Token == "" || session.UserID != u.ID {
		t.Fatalf("unexpected session %+v", session)
	}

	parsed, err := env.svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserID != u.ID || parsed.Role != "editor" {
		t.Fatalf("unexpected parsed session %+v", parsed)
	}

	if _, err := env.svc.SignIn(context.Background(), u.Email, "wrong"); !errors.Is(err, users.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSaveArticleValidates(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "avery@labdesk.dev", "editor")
	session := env.sessionFor(t, u)

	_, err := env.svc.SaveArticle(context.Background(), session, draft.Article{Slug: "x"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 domain error, got %v", err)
	}

	_, err = env.svc.SaveArticle(context.Background(), session, draft.Article{
		Title:      "Restricted",
		Slug:       "restricted",
		Visibility: draft.VisibilitySelected,
	})
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for restricted without users, got %v", err)
	}
}

func TestSaveArticleIndexesAndRecordsRevision(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "avery@labdesk.dev", "editor")
	session := env.sessionFor(t, u)

	saved, err := env.svc.SaveArticle(context.Background(), session, samplePayload(u.ID))
	if err != nil {
		t.Fatalf("SaveArticle() error = %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected an article id")
	}
	if len(env.search.articles) != 1 || env.search.articles[0].Title != "Mineral sunscreens explained" {
		t.Fatalf("expected indexed article, got %+v", env.search.articles)
	}
	if len(env.revs.messages) != 1 || env.revs.messages[0] != "Save draft" {
		t.Fatalf("expected draft revision message, got %+v", env.revs.messages)
	}

	published := saved
	published.Status = draft.StatusPublished
	if _, err := env.svc.SaveArticle(context.Background(), session, published); err != nil {
		t.Fatalf("SaveArticle() publish error = %v", err)
	}
	if env.revs.messages[len(env.revs.messages)-1] != "Publish" {
		t.Fatalf("expected publish revision message, got %+v", env.revs.messages)
	}
}

func TestArticleRevisionDiff(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "avery@labdesk.dev", "editor")
	session := env.sessionFor(t, u)

	saved, err := env.svc.SaveArticle(context.Background(), session, samplePayload(u.ID))
	if err != nil {
		t.Fatalf("SaveArticle() error = %v", err)
	}

	renamed := saved
	renamed.Title = "Mineral sunscreens revisited"
	if _, err := env.svc.SaveArticle(context.Background(), session, renamed); err != nil {
		t.Fatalf("SaveArticle() rename error = %v", err)
	}

	diff, err := env.svc.ArticleRevisionDiff(context.Background(), saved.ID, "hash001")
	if err != nil {
		t.Fatalf("ArticleRevisionDiff() error = %v", err)
	}
	if diff["from"] != "hash001" || diff["to"] != "hash002" {
		t.Fatalf("unexpected diff bounds: %+v", diff)
	}
	changes, ok := diff["changes"].([]map[string]string)
	if !ok {
		t.Fatalf("unexpected changes shape: %T", diff["changes"])
	}
	var fields []string
	for _, c := range changes {
		fields = append(fields, c["field"])
	}
	if len(fields) != 1 || fields[0] != "title" {
		t.Fatalf("expected a title change, got %v", fields)
	}

	if _, err := env.svc.ArticleRevisionDiff(context.Background(), saved.ID, "hash999"); err == nil {
		t.Fatal("expected unknown revision hash to fail")
	}
}

func TestArticleVisibility(t *testing.T) {
	env := newTestEnv(t)
	author := env.createUser(t, "author@labdesk.dev", "editor")
	other := env.createUser(t, "other@labdesk.dev", "editor")
	manager := env.createUser(t, "boss@labdesk.dev", "manager")
	authorSession := env.sessionFor(t, author)

	payload := samplePayload(author.ID)
	payload.Visibility = draft.VisibilityPrivate
	saved, err := env.svc.SaveArticle(context.Background(), authorSession, payload)
	if err != nil {
		t.Fatalf("SaveArticle() error = %v", err)
	}

	if _, err := env.svc.GetArticle(context.Background(), env.sessionFor(t, other), saved.ID); err == nil {
		t.Fatal("private article should be hidden from other editors")
	}
	if _, err := env.svc.GetArticle(context.Background(), authorSession, saved.ID); err != nil {
		t.Fatalf("author should see own private article: %v", err)
	}
	if _, err := env.svc.GetArticle(context.Background(), env.sessionFor(t, manager), saved.ID); err != nil {
		t.Fatalf("manager should see private article: %v", err)
	}

	list, err := env.svc.ListArticles(context.Background(), env.sessionFor(t, other), store.ArticleFilter{})
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("private article leaked into listing: %+v", list.Items)
	}
}

func TestCreateBriefSeedsPipeline(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{
		ClientName:   "Rivera Labs",
		Company:      "Rivera",
		ContactEmail: "ops@rivera.test",
	})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}
	if view.Stage.Stage != stage.RequestSubmitted {
		t.Fatalf("new brief stage = %s", view.Stage.Stage)
	}
	if len(view.Stage.History) != 1 {
		t.Fatalf("expected 1 seed event, got %d", len(view.Stage.History))
	}
	if view.ProgressPercent != 0 {
		t.Fatalf("progress = %d, want 0", view.ProgressPercent)
	}
	if len(env.search.briefs) != 1 {
		t.Fatalf("expected indexed brief, got %+v", env.search.briefs)
	}

	if _, err := env.svc.CreateBrief(context.Background(), store.Brief{}); err == nil {
		t.Fatal("expected validation error for missing client name")
	}
}

func TestAdvanceBriefMirrorsNotifiesAndReindexes(t *testing.T) {
	env := newTestEnv(t)
	manager := env.createUser(t, "boss@labdesk.dev", "manager")
	session := env.sessionFor(t, manager)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{
		ClientName:   "Rivera Labs",
		ContactEmail: "ops@rivera.test",
	})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}

	moved, err := env.svc.AdvanceBrief(context.Background(), session, view.Brief.ID, "Called the client")
	if err != nil {
		t.Fatalf("AdvanceBrief() error = %v", err)
	}
	if moved.Stage.Stage != stage.AwaitingCall {
		t.Fatalf("advanced stage = %s", moved.Stage.Stage)
	}
	if moved.Brief.Stage != stage.AwaitingCall {
		t.Fatal("brief row was not mirrored to the new stage")
	}

	stored, err := env.store.GetBrief(context.Background(), view.Brief.ID)
	if err != nil {
		t.Fatalf("GetBrief() error = %v", err)
	}
	if stored.Stage != stage.AwaitingCall {
		t.Fatalf("stored stage = %s", stored.Stage)
	}

	deadline := time.After(time.Second)
	for env.mail.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a stage change email")
		case <-time.After(10 * time.Millisecond):
		}
	}
	env.mail.mu.Lock()
	if env.mail.to[0] != "ops@rivera.test" || env.mail.sent[0].StageLabel != "awaiting call" {
		t.Fatalf("unexpected notification %+v to %v", env.mail.sent[0], env.mail.to)
	}
	env.mail.mu.Unlock()

	var domainErr *DomainError
	if _, err := env.svc.AdvanceBrief(context.Background(), session, view.Brief.ID, ""); !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without a note, got %v", err)
	}
}

func TestWatchStagesAdoptsExternalWrites(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{ClientName: "Rivera Labs"})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		_ = env.svc.WatchStages(ctx, env.kv)
	}()

	// Another instance replaces the whole entry through the shared store.
	entry := view.Stage
	entry.Stage = stage.AwaitingCall
	entry.UpdatedAt = time.Now()
	entry.History = append(entry.History, stage.Event{
		Stage: stage.AwaitingCall,
		At:    entry.UpdatedAt,
		By:    "peer",
		Note:  "Call booked",
	})

	deadline := time.After(2 * time.Second)
	for env.search.lastBriefStage() != string(stage.AwaitingCall) {
		if err := env.kv.Set(context.Background(), view.Brief.ID, entry); err != nil {
			t.Fatalf("kv set: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("watcher never adopted the external stage write")
		case <-time.After(20 * time.Millisecond):
		}
	}

	stored, err := env.store.GetBrief(context.Background(), view.Brief.ID)
	if err != nil {
		t.Fatalf("GetBrief() error = %v", err)
	}
	if stored.Stage != stage.AwaitingCall {
		t.Fatalf("mirrored stage = %s", stored.Stage)
	}

	cancel()
	<-watchDone
}

func TestAdvancePastTerminalStageConflicts(t *testing.T) {
	env := newTestEnv(t)
	manager := env.createUser(t, "boss@labdesk.dev", "manager")
	session := env.sessionFor(t, manager)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{ClientName: "Rivera Labs"})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}
	if _, err := env.svc.SetBriefStage(context.Background(), session, view.Brief.ID, stage.Finalized, "closing"); err != nil {
		t.Fatalf("SetBriefStage() error = %v", err)
	}

	_, err = env.svc.AdvanceBrief(context.Background(), session, view.Brief.ID, "more")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 at terminal stage, got %v", err)
	}
}

func TestSetBriefStageRejectsUnknown(t *testing.T) {
	env := newTestEnv(t)
	manager := env.createUser(t, "boss@labdesk.dev", "manager")
	session := env.sessionFor(t, manager)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{ClientName: "Rivera Labs"})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}

	_, err = env.svc.SetBriefStage(context.Background(), session, view.Brief.ID, stage.Stage("bogus"), "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown stage, got %v", err)
	}
}

func TestBriefTimeline(t *testing.T) {
	env := newTestEnv(t)
	manager := env.createUser(t, "boss@labdesk.dev", "manager")
	session := env.sessionFor(t, manager)

	view, err := env.svc.CreateBrief(context.Background(), store.Brief{ClientName: "Rivera Labs"})
	if err != nil {
		t.Fatalf("CreateBrief() error = %v", err)
	}
	if _, err := env.svc.AdvanceBrief(context.Background(), session, view.Brief.ID, "Called"); err != nil {
		t.Fatalf("AdvanceBrief() error = %v", err)
	}

	items, err := env.svc.BriefTimeline(context.Background(), view.Brief.ID)
	if err != nil {
		t.Fatalf("BriefTimeline() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("timeline length = %d, want 2", len(items))
	}
	if items[1].Title != "Moved to awaiting call" {
		t.Fatalf("timeline title = %q", items[1].Title)
	}
}

func TestBootstrapSeedsAdminOnce(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	first, err := env.svc.Users().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 1 || first[0].Role != string(rbac.RoleAdmin) {
		t.Fatalf("expected one seeded admin, got %+v", first)
	}

	if err := env.svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() second run error = %v", err)
	}
	second, err := env.svc.Users().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("bootstrap reseeded: %d users", len(second))
	}
}
