package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/testutil"
)

func TestDetectInitialCommitListsAllFiles(t *testing.T) {
	repo, dir := testutil.InitRepo(t)
	sha := testutil.Commit(t, repo, dir, "initial", map[string]string{
		"src/app.py":  "@app.route(\"/hello\")\ndef hello():\n    return \"hi\"\n",
		"b/readme.md": "# readme\n",
	})

	changes, err := New(nil).Detect(t.Context(), repo, sha)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// Path-sorted output.
	assert.Equal(t, "b/readme.md", changes[0].Path)
	assert.Equal(t, "src/app.py", changes[1].Path)

	py := changes[1]
	assert.Equal(t, report.ChangeAdded, py.Kind)
	assert.Equal(t, LangPython, py.Language)
	assert.True(t, py.SafeToRead)
	assert.Contains(t, py.NewText, "@app.route")
	assert.Empty(t, py.OldText)
}

func TestDetectDiffAgainstFirstParent(t *testing.T) {
	repo, dir := testutil.InitRepo(t)
	testutil.Commit(t, repo, dir, "one", map[string]string{
		"a.go": "package a\n",
		"b.go": "package a\n\nfunc B() {}\n",
	})
	testutil.Remove(t, repo, dir, "b.go")
	sha := testutil.Commit(t, repo, dir, "two", map[string]string{
		"a.go": "package a\n\nfunc A() {}\n",
		"c.go": "package a\n\nfunc C() {}\n",
	})

	changes, err := New(nil).Detect(t.Context(), repo, sha)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, "a.go", changes[0].Path)
	assert.Equal(t, report.ChangeModified, changes[0].Kind)
	assert.Contains(t, changes[0].OldText, "package a")
	assert.Contains(t, changes[0].NewText, "func A")

	assert.Equal(t, "b.go", changes[1].Path)
	assert.Equal(t, report.ChangeDeleted, changes[1].Kind)
	assert.Contains(t, changes[1].OldText, "func B")
	assert.Empty(t, changes[1].NewText)

	assert.Equal(t, "c.go", changes[2].Path)
	assert.Equal(t, report.ChangeAdded, changes[2].Kind)
}

func TestDetectFiltersIgnoredPaths(t *testing.T) {
	repo, dir := testutil.InitRepo(t)
	sha := testutil.Commit(t, repo, dir, "initial", map[string]string{
		"src/main.js":             "export function main() {}\n",
		"node_modules/x/index.js": "module.exports = 1\n",
		"package-lock.json":       "{}\n",
		"vendor/lib/lib.go":       "package lib\n",
	})

	changes, err := New(nil).Detect(t.Context(), repo, sha)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "src/main.js", changes[0].Path)
}

func TestDetectMarksBinaryUnsafe(t *testing.T) {
	repo, dir := testutil.InitRepo(t)
	testutil.WriteBinary(t, repo, dir, "logo.png", []byte{0x89, 0x50, 0x4e, 0x47, 0xff, 0xfe})
	sha := testutil.CommitStaged(t, repo, "binary")

	changes, err := New(nil).Detect(t.Context(), repo, sha)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].IsBinary)
	assert.False(t, changes[0].SafeToRead)
	assert.Empty(t, changes[0].NewText)
}

func TestDetectUnknownRevision(t *testing.T) {
	repo, dir := testutil.InitRepo(t)
	testutil.Commit(t, repo, dir, "initial", map[string]string{"a.txt": "a\n"})

	_, err := New(nil).Detect(t.Context(), repo, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.NotNil(t, classified.Unwrap(), "the underlying lookup failure is preserved")
}

func TestIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher(nil)
	assert.True(t, m.Match("node_modules/a/b.js"))
	assert.True(t, m.Match("vendor/x.go"))
	assert.True(t, m.Match("Cargo.lock"))
	assert.True(t, m.Match("deep/dir/package-lock.json"))
	assert.False(t, m.Match("src/app.py"))
	assert.False(t, m.Match("locksmith.go"))
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"a/b/app.py":  LangPython,
		"x.ts":        LangTypeScript,
		"Main.java":   LangJava,
		"schema.sql":  LangSQL,
		"README.md":   LangMarkdown,
		"conf.yaml":   LangYAML,
		"Makefile":    LangOther,
		"script.sh":   LangShell,
		"index.html":  LangOther,
		"service.gox": LangOther,
	}
	for p, want := range cases {
		assert.Equal(t, want, DetectLanguage(p), p)
	}
}
