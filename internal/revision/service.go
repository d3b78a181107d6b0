// Package revision keeps a per-article git repository so every submitted
// payload is preserved as a commit on main.
package revision

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"labdesk/api/internal/draft"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo describes one entry of an article's history.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits the article payload on the article's main branch,
// initializing the repository on first use. Saves that do not change the
// payload return the current head without creating a commit.
func (s *Service) Record(articleID string, payload draft.Article, author, message string) (CommitInfo, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(articleID)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.initRepo(path)
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open article repo: %w", err)
	}

	if head, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true); err == nil {
		headCommit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return CommitInfo{}, fmt.Errorf("read head commit: %w", err)
		}
		current, err := readPayloadFromCommit(headCommit)
		if err != nil {
			return CommitInfo{}, err
		}
		if !HasChanges(current, payload) {
			return toCommitInfo(headCommit), nil
		}
	}

	hash, err := commitPayload(repo, payload, author, message)
	if err != nil {
		return CommitInfo{}, err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return CommitInfo{}, fmt.Errorf("set main branch ref: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// Head returns the latest recorded payload and its commit.
func (s *Service) Head(articleID string) (draft.Article, CommitInfo, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(articleID))
	if err != nil {
		return draft.Article{}, CommitInfo{}, fmt.Errorf("open article repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return draft.Article{}, CommitInfo{}, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return draft.Article{}, CommitInfo{}, fmt.Errorf("load commit object: %w", err)
	}
	payload, err := readPayloadFromCommit(commitObj)
	if err != nil {
		return draft.Article{}, CommitInfo{}, err
	}
	return payload, toCommitInfo(commitObj), nil
}

// GetByHash returns the payload recorded at the given commit. Short hashes
// are resolved the way git resolves abbreviated revisions.
func (s *Service) GetByHash(articleID, hash string) (draft.Article, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(articleID))
	if err != nil {
		return draft.Article{}, fmt.Errorf("open article repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return draft.Article{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return draft.Article{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readPayloadFromCommit(commitObj)
}

// History lists commits newest first, up to limit when limit is positive.
func (s *Service) History(articleID string, limit int) ([]CommitInfo, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(articleID))
	if err != nil {
		return nil, fmt.Errorf("open article repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) initRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(articleID string) string {
	return filepath.Join(s.baseDir, articleID)
}

func (s *Service) articleLock(articleID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[articleID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[articleID] = lock
	return lock
}

func commitPayload(repo *git.Repository, payload draft.Article, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal payload: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, "article.json"), append(encoded, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write article.json: %w", err)
	}
	if _, err := worktree.Add("article.json"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add payload: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.labdesk.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit payload: %w", err)
	}
	return hash, nil
}

func readPayloadFromCommit(commitObj *object.Commit) (draft.Article, error) {
	file, err := commitObj.File("article.json")
	if err != nil {
		return draft.Article{}, fmt.Errorf("load article.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return draft.Article{}, fmt.Errorf("open payload reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return draft.Article{}, fmt.Errorf("read payload bytes: %w", err)
	}

	var payload draft.Article
	if err := json.Unmarshal(raw, &payload); err != nil {
		return draft.Article{}, fmt.Errorf("decode commit payload: %w", err)
	}
	return payload, nil
}

// DiffFields lists the scalar fields that differ between two recorded
// payloads, plus a marker entry when the block content changed.
func DiffFields(from, to draft.Article) []map[string]string {
	type pair struct {
		field  string
		before string
		after  string
	}
	pairs := []pair{
		{field: "excerpt", before: from.Excerpt, after: to.Excerpt},
		{field: "slug", before: from.Slug, after: to.Slug},
		{field: "status", before: string(from.Status), after: string(to.Status)},
		{field: "title", before: from.Title, after: to.Title},
		{field: "visibility", before: string(from.Visibility), after: string(to.Visibility)},
	}
	result := make([]map[string]string, 0)
	for _, item := range pairs {
		if item.before == item.after {
			continue
		}
		result = append(result, map[string]string{
			"field":  item.field,
			"before": item.before,
			"after":  item.after,
		})
	}
	if !sameBlocks(from, to) {
		result = append(result, map[string]string{
			"field":  "bodyBlocks",
			"before": "[block content]",
			"after":  "[block content]",
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i]["field"] < result[j]["field"]
	})
	return result
}

// HasChanges reports whether two recorded payloads differ in any field the
// editor can touch.
func HasChanges(from, to draft.Article) bool {
	fromJSON, err := json.Marshal(from)
	if err != nil {
		return true
	}
	toJSON, err := json.Marshal(to)
	if err != nil {
		return true
	}
	return string(fromJSON) != string(toJSON)
}

func sameBlocks(from, to draft.Article) bool {
	fromJSON, err := json.Marshal(from.BodyBlocks)
	if err != nil {
		return false
	}
	toJSON, err := json.Marshal(to.BodyBlocks)
	if err != nil {
		return false
	}
	return string(fromJSON) == string(toJSON)
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
