package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, auth string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(auth), 0o600))
	return path
}

func TestGenerate(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: \"0123456789abcdef0123456789abcdef\"\n")

	token, err := generate(path, "desktop")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
}

func TestGenerate_NoSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 5001\n")

	_, err := generate(path, "desktop")
	assert.ErrorContains(t, err, "jwt_secret")
}
