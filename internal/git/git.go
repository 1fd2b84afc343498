package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRefNotFound is returned when a ref does not resolve to a commit.
var ErrRefNotFound = errors.New("ref not found")

// ErrNotRepository is returned when the working directory is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// authorSep separates email and name in the `git log` author format.
const authorSep = ":::"

// Client defines the version-control operations codereview needs.
// A Client is bound to a single repository.
type Client interface {
	RepoRoot() (string, error)
	RefExists(ref string) (bool, error)
	ListFiles(ref string) ([]string, error)
	ReadFile(ref, path string) ([]byte, error)
	ListAuthors() (map[string]string, error)
	CreateOrphanBranch(branch, message string) error
}

// RealClient implements Client using the git binary.
type RealClient struct {
	dir string
	log *zap.Logger
}

// NewClient returns a RealClient that runs git in dir. A nil logger disables tracing.
func NewClient(dir string, log *zap.Logger) *RealClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RealClient{dir: dir, log: log}
}

// run executes git and returns raw stdout.
func (c *RealClient) run(args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", c.dir}, args...)
	start := time.Now()
	out, err := exec.Command("git", fullArgs...).Output()
	c.log.Debug("git",
		zap.Strings("args", args),
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", len(out)),
		zap.Error(err),
	)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func (c *RealClient) gitCmd(args ...string) (string, error) {
	out, err := c.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot() (string, error) {
	root, err := c.gitCmd("rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotRepository, c.dir, err)
	}
	return root, nil
}

// RefExists reports whether ref resolves to a commit.
func (c *RealClient) RefExists(ref string) (bool, error) {
	cmd := exec.Command("git", "-C", c.dir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	err := cmd.Run()
	c.log.Debug("git", zap.Strings("args", cmd.Args[3:]), zap.Error(err))
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git rev-parse %s: %w", ref, err)
}

// ListFiles returns every path tracked at ref, in git's tree order.
func (c *RealClient) ListFiles(ref string) ([]string, error) {
	ok, err := c.RefExists(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}

	out, err := c.run("ls-tree", "-r", "-z", "--name-only", ref)
	if err != nil {
		return nil, err
	}
	return splitNul(out), nil
}

// ReadFile returns the content of path as committed at ref.
func (c *RealClient) ReadFile(ref, path string) ([]byte, error) {
	return c.run("cat-file", "blob", ref+":"+path)
}

// ListAuthors maps author email to author name. History on every ref is
// read, not only HEAD, so reviewers who only ever committed to the review
// branch or an unmerged feature branch still resolve. When an email appears
// under several names the most recent commit's name wins, so a renamed
// author shows under their current name rather than the one they first
// committed with.
func (c *RealClient) ListAuthors() (map[string]string, error) {
	out, err := c.gitCmd("log", "--all", "--format=%aE"+authorSep+"%aN")
	if err != nil {
		return nil, err
	}
	return ParseAuthorLog(out), nil
}

// CreateOrphanBranch creates branch pointing at a root commit with an empty tree.
// It fails if the branch already exists.
func (c *RealClient) CreateOrphanBranch(branch, message string) error {
	tree, err := c.gitCmd("hash-object", "-t", "tree", "-w", "--stdin")
	if err != nil {
		return fmt.Errorf("create empty tree: %w", err)
	}
	commit, err := c.gitCmd("commit-tree", tree, "-m", message)
	if err != nil {
		return fmt.Errorf("create root commit: %w", err)
	}
	// An empty old-value makes update-ref refuse to overwrite an existing branch.
	if _, err := c.gitCmd("update-ref", "refs/heads/"+branch, commit, ""); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

// ParseAuthorLog parses `git log --format=%aE:::%aN` output, newest first.
// The first name seen for an email is kept; later (older) lines never
// overwrite it.
func ParseAuthorLog(output string) map[string]string {
	authors := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		email, name, ok := strings.Cut(line, authorSep)
		if !ok || email == "" {
			continue
		}
		if _, seen := authors[email]; !seen {
			authors[email] = name
		}
	}
	return authors
}

func splitNul(out []byte) []string {
	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths
}
