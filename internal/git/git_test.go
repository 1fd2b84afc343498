package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir with a user config so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init", "-b", "master"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
		{"git", "-C", dir, "commit", "--allow-empty", "-m", "init"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

// commitOnOrphan commits files onto a fresh orphan branch and switches back to master.
func commitOnOrphan(t *testing.T, dir, branch string, files map[string]string) {
	t.Helper()
	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "--orphan", branch).Run())
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	require.NoError(t, exec.Command("git", "-C", dir, "add", ".").Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", "reviews").Run())
	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "-f", "master").Run())
}

func TestParseAuthorLog(t *testing.T) {
	input := "alice@example.com:::Alice Liddell\n" +
		"bob@example.com:::Bob\n" +
		"alice@example.com:::alice\n" +
		"garbage line\n" +
		"\n"
	authors := ParseAuthorLog(input)
	assert.Equal(t, map[string]string{
		"alice@example.com": "Alice Liddell",
		"bob@example.com":   "Bob",
	}, authors)
}

func TestParseAuthorLog_Empty(t *testing.T) {
	assert.Empty(t, ParseAuthorLog(""))
}

func TestRepoRoot(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	root, err := NewClient(sub, nil).RepoRoot()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRepoRoot_NotARepo(t *testing.T) {
	_, err := NewClient(t.TempDir(), nil).RepoRoot()
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestListFiles_MissingRef(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	_, err := NewClient(dir, nil).ListFiles("meta/review")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestListFilesAndReadFile(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitOnOrphan(t, dir, "meta/review", map[string]string{
		"b.yaml":        "title: b\n",
		"a.yaml":        "title: a\n",
		"nested/c.yaml": "title: c\n",
	})

	c := NewClient(dir, nil)

	ok, err := c.RefExists("meta/review")
	require.NoError(t, err)
	assert.True(t, ok)

	files, err := c.ListFiles("meta/review")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml", "nested/c.yaml"}, files)

	data, err := c.ReadFile("meta/review", "nested/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, "title: c\n", string(data))

	_, err = c.ReadFile("meta/review", "missing.yaml")
	assert.Error(t, err)
}

func TestCreateOrphanBranch(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	c := NewClient(dir, nil)

	require.NoError(t, c.CreateOrphanBranch("meta/review", "Initialize review store"))

	files, err := c.ListFiles("meta/review")
	require.NoError(t, err)
	assert.Empty(t, files)

	// Existing branches are never overwritten.
	assert.Error(t, c.CreateOrphanBranch("meta/review", "again"))
}

func TestListAuthors(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	authors, err := NewClient(dir, nil).ListAuthors()
	require.NoError(t, err)
	assert.Equal(t, "Test", authors["test@test.com"])
}

func TestListAuthors_NewestNameAcrossRefs(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	gitRun := func(env []string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(), env...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	later := []string{"GIT_AUTHOR_DATE=2030-01-01T00:00:00Z", "GIT_COMMITTER_DATE=2030-01-01T00:00:00Z"}

	gitRun(nil, "checkout", "--orphan", "other")
	gitRun(nil, "-c", "user.name=Bob", "-c", "user.email=bob@example.com", "commit", "--allow-empty", "-m", "other")
	gitRun(nil, "checkout", "-f", "master")
	gitRun(later, "-c", "user.name=Test Renamed", "commit", "--allow-empty", "-m", "renamed")

	authors, err := NewClient(dir, nil).ListAuthors()
	require.NoError(t, err)
	assert.Equal(t, "Test Renamed", authors["test@test.com"])
	assert.Equal(t, "Bob", authors["bob@example.com"])
}
