package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["migrate"])
	require.True(t, names["invalidate"])
	require.True(t, names["count"])
	require.True(t, names["authz-verify"])
}

func TestInvalidateRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"invalidate"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

func TestMigrateRequiresCollection(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, root.Execute(), "--collection")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, countOutput{Command: "count", Count: 3}))

	var got countOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.EqualValues(t, 3, got.Count)
}
