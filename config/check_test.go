package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/gitlab-ls/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "all known",
			content: "[cache]\nttl_seconds = 30\n\n[gitlab]\nbase_url = \"https://gitlab.example.com/api/v4\"\n",
		},
		{
			name:    "misspelt key",
			content: "[cache]\nttl_second = 30\n",
			want:    []string{"cache.ttl_second"},
		},
		{
			name:    "unknown section",
			content: "[gitlab]\ntoken = \"x\"\n\n[proxy]\nurl = \"http://proxy\"\n",
			want:    []string{"proxy", "proxy.url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnknownKeys(writeFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownKeys_Malformed(t *testing.T) {
	_, err := UnknownKeys(writeFile(t, "[cache\nttl_seconds = "))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}
