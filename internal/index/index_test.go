package index

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testProject(id string) Project {
	return Project{
		ID: id, Name: "Widgets", Owner: "acme", Repo: "widgets",
		URL: "https://github.com/acme/widgets.git", Branch: "main",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testVersion(projectID, commit string, created time.Time) Version {
	return Version{
		ProjectID: projectID, CommitID: commit, Branch: "main",
		Title: "Widgets docs", Description: "generated",
		Tags:      []string{"auto"},
		CreatedAt: created, UpdatedAt: created,
	}
}

func TestProjectRoundTrip(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)

	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))

	got, err := idx.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Owner)

	// Upsert refreshes fields without duplicating the row.
	p := testProject("p1")
	p.Branch = "develop"
	require.NoError(t, idx.UpsertProject(ctx, p))
	all, err := idx.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "develop", all[0].Branch)
}

func TestGetProjectNotFound(t *testing.T) {
	idx := openTestIndex(t)
	_, err := idx.GetProject(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestVersionUpsertGuard(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "abc1234", created)))

	// Re-running the same commit overwrites in place.
	v := testVersion("p1", "abc1234", created)
	v.Title = "Widgets docs v2"
	v.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, idx.UpsertVersion(ctx, v))

	versions, err := idx.ListVersions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Widgets docs v2", versions[0].Title)
	assert.Equal(t, []string{"auto"}, versions[0].Tags)
}

func TestListVersionsOrder(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "old4567", base)))
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "new4567", base.Add(time.Hour))))

	versions, err := idx.ListVersions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "new4567", versions[0].CommitID)
}

func TestLatestVersionPerBranch(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	main := testVersion("p1", "aaa1111", base)
	dev := testVersion("p1", "bbb2222", base.Add(time.Hour))
	dev.Branch = "develop"
	require.NoError(t, idx.UpsertVersion(ctx, main))
	require.NoError(t, idx.UpsertVersion(ctx, dev))

	latest, err := idx.LatestVersion(ctx, "p1", "main")
	require.NoError(t, err)
	assert.Equal(t, "aaa1111", latest.CommitID)

	_, err = idx.LatestVersion(ctx, "p1", "release")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestHasVersion(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "abc1234", time.Now())))

	ok, err := idx.HasVersion(ctx, "p1", "abc1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.HasVersion(ctx, "p1", "fff0000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateTags(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "abc1234", created)))

	bumped := created.Add(2 * time.Hour)
	require.NoError(t, idx.UpdateTags(ctx, "p1", "abc1234", []string{"release", "v2"}, bumped))

	v, err := idx.GetVersion(ctx, "p1", "abc1234")
	require.NoError(t, err)
	assert.Equal(t, []string{"release", "v2"}, v.Tags)
	assert.Equal(t, bumped, v.UpdatedAt)

	err = idx.UpdateTags(ctx, "p1", "nope000", nil, bumped)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))
	require.NoError(t, idx.UpsertVersion(ctx, testVersion("p1", "abc1234", time.Now())))
	require.NoError(t, idx.SaveSettings(ctx, Settings{ProjectID: "p1", AutoGenerateDocs: true}))

	require.NoError(t, idx.DeleteProject(ctx, "p1"))

	versions, err := idx.ListVersions(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, versions)
	_, err = idx.GetSettings(ctx, "p1")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := t.Context()
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertProject(ctx, testProject("p1")))

	require.NoError(t, idx.SaveSettings(ctx, Settings{
		ProjectID:        "p1",
		AutoGenerateDocs: false,
		SealedCredential: []byte{1, 2, 3},
	}))

	s, err := idx.GetSettings(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, s.AutoGenerateDocs)
	assert.Equal(t, []byte{1, 2, 3}, s.SealedCredential)
}

func TestSealerRoundTrip(t *testing.T) {
	key := strings.Repeat("ab", 32)
	sealer, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("ghp_secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "ghp_secret")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", string(plain))

	// Tampering must fail authentication.
	sealed[len(sealed)-1] ^= 0xff
	_, err = sealer.Open(sealed)
	assert.Error(t, err)
}

func TestSealerRejectsBadKey(t *testing.T) {
	_, err := NewSealer("deadbeef")
	assert.Error(t, err)
	_, err = NewSealer("zz" + strings.Repeat("ab", 31))
	assert.Error(t, err)
}
