package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleViewer.Can(CapReadDocs))
	assert.False(t, RoleViewer.Can(CapWriteDocs))
	assert.False(t, RoleViewer.Can(CapAdminProject))

	assert.True(t, RoleEditor.Can(CapReadDocs))
	assert.True(t, RoleEditor.Can(CapWriteDocs))
	assert.False(t, RoleEditor.Can(CapAdminProject))

	assert.True(t, RoleAdmin.Can(CapReadDocs))
	assert.True(t, RoleAdmin.Can(CapWriteDocs))
	assert.True(t, RoleAdmin.Can(CapAdminProject))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("editor")
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, r)

	_, err = ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestPrincipalProjectScope(t *testing.T) {
	unscoped := Principal{Role: RoleViewer}
	assert.True(t, unscoped.AllowsProject("anything"))

	scoped := Principal{Role: RoleEditor, Projects: []string{"widgets", "gadgets"}}
	assert.True(t, scoped.AllowsProject("widgets"))
	assert.False(t, scoped.AllowsProject("other"))
	assert.True(t, scoped.Can(CapWriteDocs))
}
