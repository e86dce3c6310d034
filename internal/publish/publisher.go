// Package publish implements the gh-pages publishing workflow. The built
// site is committed to the publishing branch through direct object-store
// writes, so the checked-out working tree is never modified and a failed
// publish leaves no partial state behind.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/workspace"
)

// nojekyllFile disables Jekyll processing on GitHub Pages.
const nojekyllFile = ".nojekyll"

// Publisher commits built documentation to the publishing branch.
type Publisher struct {
	repoPath string
	cfg      config.PublishConfig
}

// NewPublisher creates a publisher for the git repository at repoPath.
func NewPublisher(repoPath string, cfg config.PublishConfig) *Publisher {
	if repoPath == "" {
		repoPath = "."
	}
	return &Publisher{repoPath: repoPath, cfg: cfg}
}

// Request describes a single publish operation.
type Request struct {
	Channel config.Channel
	// SiteDir is the directory holding the freshly built HTML.
	SiteDir string
	// Message overrides the generated commit message when non-empty.
	Message string
}

// Summary reports the outcome of a publish.
type Summary struct {
	Branch       string
	Commit       string
	SourceBranch string
	SourceCommit string
	Files        int
	Pushed       bool
	// Skipped is true when the built site is identical to what the
	// publishing branch already holds.
	Skipped bool
}

// Publish verifies preconditions, stages the site, commits it to the
// publishing branch and pushes unless configured otherwise.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Summary, error) {
	repo, err := git.PlainOpen(p.repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", p.repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	wantBranch := p.cfg.SourceBranch(req.Channel)
	if got := head.Name().Short(); got != wantBranch {
		return nil, &WrongBranchError{Channel: req.Channel, Want: wantBranch, Got: got}
	}

	if !p.cfg.AllowDirty {
		if err := p.ensureClean(repo); err != nil {
			return nil, err
		}
	}

	if err := checkSiteDir(req.SiteDir); err != nil {
		return nil, err
	}

	// Stage the site in an ephemeral workspace, dropping builder byproducts.
	ws := workspace.NewManager("")
	if err := ws.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup staging workspace", logfields.Error(err))
		}
	}()
	staging, err := ws.CreateSubdir("site")
	if err != nil {
		return nil, err
	}
	files, err := stageSite(staging, req.SiteDir)
	if err != nil {
		return nil, err
	}
	if files == 0 {
		return nil, &SiteMissingError{Dir: req.SiteDir}
	}

	siteTree, err := buildTreeFromDir(repo.Storer, staging)
	if err != nil {
		return nil, fmt.Errorf("write site objects: %w", err)
	}

	priorCommit, err := p.priorCommit(repo)
	if err != nil {
		return nil, err
	}

	rootTree, err := p.composeRootTree(repo, req.Channel, siteTree, priorCommit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Branch:       p.cfg.Branch,
		SourceBranch: wantBranch,
		SourceCommit: head.Hash().String(),
		Files:        files,
	}

	if priorCommit != nil && priorCommit.TreeHash == rootTree {
		slog.Info("Publishing branch already up to date",
			logfields.Branch(p.cfg.Branch),
			logfields.Channel(string(req.Channel)))
		summary.Skipped = true
		summary.Commit = priorCommit.Hash.String()
		return summary, nil
	}

	commitHash, err := p.commit(repo, req, rootTree, priorCommit, head.Hash())
	if err != nil {
		return nil, err
	}
	summary.Commit = commitHash.String()

	slog.Info("Committed documentation to publishing branch",
		logfields.Branch(p.cfg.Branch),
		logfields.Channel(string(req.Channel)),
		logfields.Commit(shortHash(commitHash)),
		slog.Int("files", files))

	if p.cfg.NoPush {
		return summary, nil
	}

	if err := p.push(ctx, repo); err != nil {
		return summary, err
	}
	summary.Pushed = true
	slog.Info("Pushed publishing branch",
		logfields.Branch(p.cfg.Branch),
		slog.String("remote", p.cfg.Remote))
	return summary, nil
}

// ensureClean rejects publishing from a dirty working tree.
func (p *Publisher) ensureClean(repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if !status.IsClean() {
		return ErrDirtyWorktree
	}
	return nil
}

// priorCommit resolves the current tip of the publishing branch, checking the
// local branch first and falling back to the remote-tracking ref.
func (p *Publisher) priorCommit(repo *git.Repository) (*object.Commit, error) {
	names := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(p.cfg.Branch),
		plumbing.NewRemoteReferenceName(p.cfg.Remote, p.cfg.Branch),
	}
	for _, name := range names {
		ref, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		commit, err := repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("read publishing branch tip %s: %w", ref.Hash(), err)
		}
		return commit, nil
	}
	return nil, nil
}

// composeRootTree builds the new root tree of the publishing branch.
// Stable publishes to the branch root, clearing stale content but keeping
// preserved entries and the dev subtree. Dev publishes under the dev subdir,
// leaving the rest of the branch untouched.
func (p *Publisher) composeRootTree(repo *git.Repository, ch config.Channel, siteTree plumbing.Hash, prior *object.Commit) (plumbing.Hash, error) {
	var priorEntries []object.TreeEntry
	if prior != nil {
		tree, err := prior.Tree()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("read prior tree: %w", err)
		}
		priorEntries = tree.Entries
	}

	var entries []object.TreeEntry
	if ch == config.ChannelDev {
		for _, e := range priorEntries {
			if e.Name != p.cfg.DevSubdir {
				entries = append(entries, e)
			}
		}
		entries = append(entries, object.TreeEntry{Name: p.cfg.DevSubdir, Mode: filemode.Dir, Hash: siteTree})
	} else {
		siteEntries, err := treeEntries(repo, siteTree)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, siteEntries...)
		keep := p.preservedNames()
		for _, e := range priorEntries {
			if _, ok := keep[e.Name]; ok && !hasEntry(entries, e.Name) {
				entries = append(entries, e)
			}
		}
	}

	if !hasEntry(entries, nojekyllFile) {
		blob, err := storeBlob(repo.Storer, strings.NewReader(""))
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("write %s: %w", nojekyllFile, err)
		}
		entries = append(entries, object.TreeEntry{Name: nojekyllFile, Mode: filemode.Regular, Hash: blob})
	}

	return storeTree(repo.Storer, entries)
}

// preservedNames returns the set of top-level names kept across stable
// publishes. The dev subtree is always preserved.
func (p *Publisher) preservedNames() map[string]struct{} {
	keep := make(map[string]struct{}, len(p.cfg.Preserve)+1)
	for _, name := range p.cfg.Preserve {
		keep[name] = struct{}{}
	}
	keep[p.cfg.DevSubdir] = struct{}{}
	return keep
}

func treeEntries(repo *git.Repository, hash plumbing.Hash) ([]object.TreeEntry, error) {
	tree, err := repo.TreeObject(hash)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", hash, err)
	}
	return tree.Entries, nil
}

// commit writes the publish commit and advances the publishing branch ref.
func (p *Publisher) commit(repo *git.Repository, req Request, tree plumbing.Hash, prior *object.Commit, sourceHash plumbing.Hash) (plumbing.Hash, error) {
	msg := req.Message
	if msg == "" {
		msg = fmt.Sprintf("Publish %s documentation from %s@%s\n",
			req.Channel, p.cfg.SourceBranch(req.Channel), sourceHash.String()[:8])
	}

	sig := object.Signature{
		Name:  p.cfg.CommitName,
		Email: p.cfg.CommitEmail,
		When:  time.Now(),
	}
	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   msg,
		TreeHash:  tree,
	}
	if prior != nil {
		commit.ParentHashes = []plumbing.Hash{prior.Hash}
	}

	o := repo.Storer.NewEncodedObject()
	if err := commit.Encode(o); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	hash, err := repo.Storer.SetEncodedObject(o)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write commit: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(p.cfg.Branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, hash)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("update branch %s: %w", p.cfg.Branch, err)
	}
	return hash, nil
}

func (p *Publisher) push(ctx context.Context, repo *git.Repository) error {
	refspec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", p.cfg.Branch, p.cfg.Branch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: p.cfg.Remote,
		RefSpecs:   []gitcfg.RefSpec{refspec},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("push %s to %s: %w", p.cfg.Branch, p.cfg.Remote, err)
	}
	return nil
}

func checkSiteDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return &SiteMissingError{Dir: dir}
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return &SiteMissingError{Dir: dir}
	}
	return nil
}

func shortHash(h plumbing.Hash) string { return h.String()[:8] }
