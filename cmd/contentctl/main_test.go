package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"add-key", "add-site", "generate", "publish", "quota"} {
		assert.True(t, names[want], want)
	}
}

func TestRootCmd_RequiresOwner(t *testing.T) {
	t.Setenv("CONTENTCTL_OWNER", "")
	root := newRootCmd()
	root.SetArgs([]string{"quota", "gemini"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--owner is required")
}

func TestGenerateCmd_RequiresTopic(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"generate", "--owner", "u1"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestExplain(t *testing.T) {
	assert.NoError(t, explain(nil))
	err := explain(fmt.Errorf("op=x: %w", domain.ErrQuotaExceeded))
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), domain.UserMessage(domain.ErrQuotaExceeded))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}
