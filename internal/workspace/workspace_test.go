package workspace

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndCleanup(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())

	path := m.GetPath()
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	require.NoError(t, m.Cleanup())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, m.GetPath())
}

func TestCreateSubdir(t *testing.T) {
	m := NewManager(t.TempDir())

	// Subdir before Create is an error.
	_, err := m.CreateSubdir("staging")
	assert.Error(t, err)

	require.NoError(t, m.Create())
	sub, err := m.CreateSubdir("staging")
	require.NoError(t, err)
	st, err := os.Stat(sub)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestCleanupWithoutCreateIsNoop(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NoError(t, m.Cleanup())
}
