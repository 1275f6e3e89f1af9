//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"serve", "resolve", "review", "entity", "metrics", "load", "migrate", "verify"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "kartotek", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestResolveCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range resolveCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["batch"])
	assert.True(t, names["candidates"])
	assert.True(t, names["reset"])
}

func TestEntityCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range entityCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["merge"])
	assert.True(t, names["unmerge"])
	assert.True(t, names["split"])
}

func TestReviewDecideCommand_RequiredFlags(t *testing.T) {
	flag := reviewDecideCmd.Flags().Lookup("reviewer")
	require.NotNil(t, flag, "review decide should have --reviewer flag")

	matchFlag := reviewDecideCmd.Flags().Lookup("match")
	require.NotNil(t, matchFlag, "review decide should have --match flag")
}

func TestLoadCommand_RequiredFlags(t *testing.T) {
	flag := loadCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "load should have --file flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
