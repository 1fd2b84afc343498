package catalog

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codereview/internal/git"
	"github.com/joescharf/codereview/internal/review"
)

const ref = "meta/review"

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListFiles(ref string) ([]string, error) {
	args := m.Called(ref)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSource) ReadFile(ref, path string) ([]byte, error) {
	args := m.Called(ref, path)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func doc(title string, merged, abandoned bool) []byte {
	return []byte(fmt.Sprintf(`title: %s
from:
  branch: feature/%s
onto: master
by: alice@example.com
body: ""
merged: %t
abandoned: %t
dates:
  created: 2024-03-01T12:00:00Z
reviewers: {}
`, title, title, merged, abandoned))
}

// newSource serves files in the given order.
func newSource(files []string, contents map[string][]byte) *mockSource {
	m := &mockSource{}
	m.On("ListFiles", ref).Return(files, nil)
	for _, f := range files {
		m.On("ReadFile", ref, f).Return(contents[f], nil)
	}
	return m
}

func titles(c *Catalog) []string {
	var out []string
	for _, r := range c.Reviews() {
		out = append(out, r.Title)
	}
	return out
}

func TestLoad_OpenFirstStable(t *testing.T) {
	files := []string{"1.yaml", "2.yaml", "3.yaml", "4.yaml", "5.yaml"}
	src := newSource(files, map[string][]byte{
		"1.yaml": doc("merged-a", true, false),
		"2.yaml": doc("open-a", false, false),
		"3.yaml": doc("abandoned-a", false, true),
		"4.yaml": doc("open-b", false, false),
		"5.yaml": doc("merged-b", true, false),
	})

	c, err := Load(src, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, c.Ref)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, []string{"open-a", "open-b", "merged-a", "abandoned-a", "merged-b"}, titles(c))

	seenClosed := false
	for _, r := range c.Reviews() {
		if !r.Open() {
			seenClosed = true
		}
		assert.False(t, seenClosed && r.Open(), "open review after a closed one")
	}
	src.AssertExpectations(t)
}

func TestLoad_EmptyStore(t *testing.T) {
	src := newSource([]string{}, nil)

	c, err := Load(src, ref)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Reviews())
}

func TestLoad_SkipsEmptyPaths(t *testing.T) {
	m := &mockSource{}
	m.On("ListFiles", ref).Return([]string{"", "1.yaml"}, nil)
	m.On("ReadFile", ref, "1.yaml").Return(doc("one", false, false), nil)

	c, err := Load(m, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	m.AssertNotCalled(t, "ReadFile", ref, "")
}

func TestLoad_StoreNotFound(t *testing.T) {
	m := &mockSource{}
	m.On("ListFiles", ref).Return(nil, fmt.Errorf("%w: %s", git.ErrRefNotFound, ref))

	_, err := Load(m, ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreNotFound)
	assert.ErrorIs(t, err, git.ErrRefNotFound)
	assert.Contains(t, err.Error(), "codereview init")
}

func TestLoad_ListError(t *testing.T) {
	m := &mockSource{}
	m.On("ListFiles", ref).Return(nil, errors.New("git ls-tree: fatal"))

	_, err := Load(m, ref)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStoreNotFound))
}

func TestLoad_AllOrNothing(t *testing.T) {
	broken := []byte(`from:
  branch: feature/x
onto: master
by: alice@example.com
body: ""
merged: false
dates:
  created: 2024-03-01T12:00:00Z
reviewers: {}
`)
	files := []string{"1.yaml", "2.yaml", "3.yaml"}
	src := newSource(files, map[string][]byte{
		"1.yaml": doc("one", false, false),
		"2.yaml": broken,
		"3.yaml": doc("three", false, false),
	})

	c, err := Load(src, ref)
	assert.Nil(t, c, "no partial catalog")

	var mre *review.MalformedRecordError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, "2.yaml", mre.Path)
	assert.Equal(t, "title", mre.Field)
}

func TestLoad_ReadError(t *testing.T) {
	m := &mockSource{}
	m.On("ListFiles", ref).Return([]string{"1.yaml"}, nil)
	m.On("ReadFile", ref, "1.yaml").Return(nil, errors.New("git cat-file: bad object"))

	c, err := Load(m, ref)
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1.yaml")
}

func TestGet(t *testing.T) {
	files := []string{"1.yaml", "2.yaml", "3.yaml"}
	src := newSource(files, map[string][]byte{
		"1.yaml": doc("one", false, false),
		"2.yaml": doc("two", false, false),
		"3.yaml": doc("three", false, false),
	})
	c, err := Load(src, ref)
	require.NoError(t, err)

	for _, idx := range []int{0, 4, -1} {
		_, err := c.Get(idx)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", idx)
	}

	r, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "one", r.Title)

	r, err = c.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "three", r.Title)
}

func TestFilter(t *testing.T) {
	files := []string{"1.yaml", "2.yaml", "3.yaml"}
	src := newSource(files, map[string][]byte{
		"1.yaml": doc("merged", true, false),
		"2.yaml": doc("open", false, false),
		"3.yaml": doc("abandoned", false, true),
	})
	c, err := Load(src, ref)
	require.NoError(t, err)

	all := c.Filter(StateAll)
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].Index)

	open := c.Filter(StateOpen)
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].Index)
	assert.Equal(t, "open", open[0].Review.Title)

	closed := c.Filter(StateClosed)
	require.Len(t, closed, 2)
	assert.Equal(t, 2, closed[0].Index)
	assert.Equal(t, "merged", closed[0].Review.Title)
	assert.Equal(t, 3, closed[1].Index)
	assert.Equal(t, "abandoned", closed[1].Review.Title)
}

func TestParseState(t *testing.T) {
	for in, want := range map[string]State{"": StateAll, "all": StateAll, "open": StateOpen, "closed": StateClosed} {
		got, err := ParseState(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseState("merged")
	assert.Error(t, err)
}

func TestLoader_Reloads(t *testing.T) {
	src := newSource([]string{"1.yaml"}, map[string][]byte{"1.yaml": doc("one", false, false)})
	l := NewLoader(src, ref)

	for i := 0; i < 2; i++ {
		c, err := l.Load()
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len())
	}
	src.AssertNumberOfCalls(t, "ListFiles", 2)
}

func TestLoad_OffsetTimestamps(t *testing.T) {
	withOffset := func(title, created string) []byte {
		return []byte(fmt.Sprintf(`title: %s
from:
  branch: feature/%s
onto: master
by: alice@example.com
body: ""
merged: false
dates:
  created: "%s"
reviewers: {}
`, title, title, created))
	}
	files := []string{"1.yaml", "2.yaml", "3.yaml"}
	src := newSource(files, map[string][]byte{
		"1.yaml": withOffset("hhmm", "2014-01-01T12:00:00+0100"),
		"2.yaml": withOffset("hh", "2014-01-01T12:00:00.123+01"),
		"3.yaml": withOffset("basic", "20140101T120000Z"),
	})

	c, err := Load(src, ref)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	r, err := c.Get(1)
	require.NoError(t, err)
	assert.True(t, time.Date(2014, 1, 1, 11, 0, 0, 0, time.UTC).Equal(r.CreatedAt))
}
