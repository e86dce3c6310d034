package publish

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/config"
)

func testSignature() *object.Signature {
	return &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()}
}

// initRepo creates a repository with one commit on master.
func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# project\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{Author: testSignature()})
	require.NoError(t, err)
	return dir, repo
}

// writeSite creates a minimal built HTML site.
func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testPublishConfig() config.PublishConfig {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	p := cfg.Publish
	p.NoPush = true
	return p
}

// publishedTree resolves the tree at the tip of the publishing branch.
func publishedTree(t *testing.T, repo *git.Repository, branch string) *object.Tree {
	t.Helper()
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)
	return tree
}

func treeFileContent(t *testing.T, tree *object.Tree, path string) string {
	t.Helper()
	f, err := tree.File(path)
	require.NoError(t, err, "file %s missing from published tree", path)
	content, err := f.Contents()
	require.NoError(t, err)
	return content
}

func TestPublishStable(t *testing.T) {
	repoDir, repo := initRepo(t)
	site := writeSite(t, map[string]string{
		"index.html":        "<html>home</html>",
		"_static/style.css": "body{}",
		".buildinfo":        "sphinx build info",
	})

	p := NewPublisher(repoDir, testPublishConfig())
	summary, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	require.NoError(t, err)

	assert.Equal(t, "gh-pages", summary.Branch)
	assert.Equal(t, "master", summary.SourceBranch)
	assert.Equal(t, 2, summary.Files)
	assert.False(t, summary.Pushed)
	assert.False(t, summary.Skipped)

	tree := publishedTree(t, repo, "gh-pages")
	assert.Equal(t, "<html>home</html>", treeFileContent(t, tree, "index.html"))
	assert.Equal(t, "body{}", treeFileContent(t, tree, "_static/style.css"))
	_, err = tree.File(".nojekyll")
	assert.NoError(t, err, ".nojekyll should be added")
	_, err = tree.File(".buildinfo")
	assert.Error(t, err, "builder byproducts must not be published")

	// The user's working tree and HEAD are untouched.
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, "master", head.Name().Short())
	_, err = os.Stat(filepath.Join(repoDir, "README.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(repoDir, "index.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestPublishWrongBranch(t *testing.T) {
	repoDir, _ := initRepo(t)
	site := writeSite(t, map[string]string{"index.html": "x"})

	p := NewPublisher(repoDir, testPublishConfig())
	_, err := p.Publish(context.Background(), Request{Channel: config.ChannelDev, SiteDir: site})
	var wbe *WrongBranchError
	require.ErrorAs(t, err, &wbe)
	assert.Equal(t, "develop", wbe.Want)
	assert.Equal(t, "master", wbe.Got)
}

func TestPublishDirtyWorktree(t *testing.T) {
	repoDir, _ := initRepo(t)
	site := writeSite(t, map[string]string{"index.html": "x"})
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("changed"), 0o644))

	p := NewPublisher(repoDir, testPublishConfig())
	_, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	require.ErrorIs(t, err, ErrDirtyWorktree)

	cfg := testPublishConfig()
	cfg.AllowDirty = true
	_, err = NewPublisher(repoDir, cfg).Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	assert.NoError(t, err)
}

func TestPublishDevChannel(t *testing.T) {
	repoDir, repo := initRepo(t)

	// Stable publish first, then a dev publish must not clobber it.
	stableSite := writeSite(t, map[string]string{"index.html": "stable"})
	p := NewPublisher(repoDir, testPublishConfig())
	_, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: stableSite})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("develop"),
		Create: true,
	}))

	devSite := writeSite(t, map[string]string{"index.html": "dev"})
	summary, err := p.Publish(context.Background(), Request{Channel: config.ChannelDev, SiteDir: devSite})
	require.NoError(t, err)
	assert.Equal(t, "develop", summary.SourceBranch)

	tree := publishedTree(t, repo, "gh-pages")
	assert.Equal(t, "stable", treeFileContent(t, tree, "index.html"))
	assert.Equal(t, "dev", treeFileContent(t, tree, "dev/index.html"))
}

func TestPublishStablePreservesDevSubtree(t *testing.T) {
	repoDir, repo := initRepo(t)
	p := NewPublisher(repoDir, testPublishConfig())

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("develop"),
		Create: true,
	}))
	devSite := writeSite(t, map[string]string{"index.html": "dev"})
	_, err = p.Publish(context.Background(), Request{Channel: config.ChannelDev, SiteDir: devSite})
	require.NoError(t, err)

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
	}))
	stableSite := writeSite(t, map[string]string{"index.html": "stable-v2"})
	_, err = p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: stableSite})
	require.NoError(t, err)

	tree := publishedTree(t, repo, "gh-pages")
	assert.Equal(t, "stable-v2", treeFileContent(t, tree, "index.html"))
	assert.Equal(t, "dev", treeFileContent(t, tree, "dev/index.html"))
}

func TestPublishClearsStaleContent(t *testing.T) {
	repoDir, repo := initRepo(t)
	p := NewPublisher(repoDir, testPublishConfig())

	first := writeSite(t, map[string]string{"index.html": "v1", "old.html": "obsolete"})
	firstSummary, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: first})
	require.NoError(t, err)

	second := writeSite(t, map[string]string{"index.html": "v2"})
	secondSummary, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: second})
	require.NoError(t, err)

	tree := publishedTree(t, repo, "gh-pages")
	assert.Equal(t, "v2", treeFileContent(t, tree, "index.html"))
	_, err = tree.File("old.html")
	assert.Error(t, err, "stale files must be removed")

	// History is linear: the second commit has the first as parent.
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	require.Len(t, commit.ParentHashes, 1)
	assert.Equal(t, firstSummary.Commit, commit.ParentHashes[0].String())
	assert.Equal(t, secondSummary.Commit, commit.Hash.String())
}

func TestPublishIdenticalSiteSkips(t *testing.T) {
	repoDir, _ := initRepo(t)
	p := NewPublisher(repoDir, testPublishConfig())
	site := writeSite(t, map[string]string{"index.html": "same"})

	first, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	require.NoError(t, err)
	second, err := p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	require.NoError(t, err)

	assert.True(t, second.Skipped)
	assert.Equal(t, first.Commit, second.Commit)
}

func TestPublishMissingSite(t *testing.T) {
	repoDir, _ := initRepo(t)
	p := NewPublisher(repoDir, testPublishConfig())

	_, err := p.Publish(context.Background(), Request{
		Channel: config.ChannelStable,
		SiteDir: filepath.Join(t.TempDir(), "missing"),
	})
	var sme *SiteMissingError
	assert.ErrorAs(t, err, &sme)

	_, err = p.Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: t.TempDir()})
	assert.ErrorAs(t, err, &sme)
}

func TestPublishPushToRemote(t *testing.T) {
	if _, err := exec.LookPath("git-receive-pack"); err != nil {
		t.Skip("git-receive-pack not available for local push")
	}

	repoDir, repo := initRepo(t)
	bareDir := t.TempDir()
	_, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	require.NoError(t, err)

	cfg := testPublishConfig()
	cfg.NoPush = false
	site := writeSite(t, map[string]string{"index.html": "pushed"})
	summary, err := NewPublisher(repoDir, cfg).Publish(context.Background(), Request{Channel: config.ChannelStable, SiteDir: site})
	require.NoError(t, err)
	assert.True(t, summary.Pushed)

	bare, err := git.PlainOpen(bareDir)
	require.NoError(t, err)
	ref, err := bare.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	require.NoError(t, err)
	assert.Equal(t, summary.Commit, ref.Hash().String())
}

func TestSortTreeEntries(t *testing.T) {
	entries := []object.TreeEntry{
		{Name: "foo", Mode: filemode.Dir},
		{Name: "foo.txt", Mode: filemode.Regular},
		{Name: "foo-bar", Mode: filemode.Regular},
	}
	sortTreeEntries(entries)
	assert.Equal(t, "foo-bar", entries[0].Name)
	assert.Equal(t, "foo.txt", entries[1].Name)
	assert.Equal(t, "foo", entries[2].Name)
}

func TestStageSiteExcludesByproducts(t *testing.T) {
	site := writeSite(t, map[string]string{
		"index.html":         "x",
		".buildinfo":         "meta",
		".doctrees/env.pick": "cache",
	})
	dst := t.TempDir()
	files, err := stageSite(dst, site)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	_, err = os.Stat(filepath.Join(dst, ".buildinfo"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dst, ".doctrees"))
	assert.True(t, os.IsNotExist(err))
}
