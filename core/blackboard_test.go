package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlackboard_CommonAlwaysAllowed(t *testing.T) {
	b := NewBlackboard()
	acl := NewNamespaceSet() // no extra grants

	require.NoError(t, b.Set("a1", acl, NamespaceCommon, "k", "v"))
	v, ok, err := b.Get("a1", acl, NamespaceCommon, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBlackboard_DeniedWriteLeavesBoardUnchanged(t *testing.T) {
	b := NewBlackboard()
	acl := NewNamespaceSet("planning")

	err := b.Set("a1", acl, "secrets", "k", "v")
	require.Error(t, err)
	assert.True(t, IsPermission(err))

	// The denied write must be invisible even to a privileged reader.
	assert.Empty(t, b.Snapshot("secrets"))
}

func TestBlackboard_DeniedReadAndKeys(t *testing.T) {
	b := NewBlackboard()
	writer := NewNamespaceSet("planning")
	reader := NewNamespaceSet()

	require.NoError(t, b.Set("w", writer, "planning", "k", 1))

	_, _, err := b.Get("r", reader, "planning", "k")
	assert.True(t, IsPermission(err))

	_, err = b.Keys("r", reader, "planning")
	assert.True(t, IsPermission(err))

	keys, err := b.Keys("w", writer, "planning")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestBlackboard_ConcurrentWritersNoLostUpdates(t *testing.T) {
	b := NewBlackboard()
	acl := NewNamespaceSet("shared")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			require.NoError(t, b.Set("writer", acl, "shared", key, i))
		}()
	}
	wg.Wait()

	keys, err := b.Keys("writer", acl, "shared")
	require.NoError(t, err)
	assert.Len(t, keys, 32)
}

func TestPermissionError_Message(t *testing.T) {
	err := &PermissionError{AgentID: "a1", Namespace: "secrets", Op: "write"}
	assert.Contains(t, err.Error(), "a1")
	assert.Contains(t, err.Error(), "secrets")
}
