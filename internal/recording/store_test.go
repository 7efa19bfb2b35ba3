// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	id, path, err := s.Save("smoke", "login-flow", json.RawMessage(`{"steps":[1,2,3]}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, path, "login-flow.buiauto.json")

	data, err := s.Load("smoke", "login-flow")
	require.NoError(t, err)
	assert.JSONEq(t, `{"steps":[1,2,3]}`, string(data))
}

func TestSaveDefaultsGroupWhenEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, path, err := s.Save("", "untitled", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Contains(t, path, "default")
}

func TestSaveRejectsPathTraversal(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Save("../escape", "name", json.RawMessage(`{}`))
	require.Error(t, err)

	_, _, err = s.Save("group", "../escape", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestListReturnsNewestFirst(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Save("g1", "first", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, _, err = s.Save("g1", "second", json.RawMessage(`{}`))
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestLoadMissingReturnsError(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load("g1", "nope")
	require.Error(t, err)
}

func TestDeleteRemovesFileAndEmptyGroupDir(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Save("g1", "only", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.Delete("g1", "only"))

	_, err = s.Load("g1", "only")
	require.Error(t, err)
}
