package keybackend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inline   []keybackend.KeyPair
		file     string // keys file content; empty means no file
		wantKeys map[string]string
	}{
		{
			name:     "empty config",
			wantKeys: map[string]string{},
		},
		{
			name: "inline only",
			inline: []keybackend.KeyPair{
				{AccessKey: "KEY1", SecretKey: "secret1"},
				{AccessKey: "KEY2", SecretKey: "secret2"},
			},
			wantKeys: map[string]string{"KEY1": "secret1", "KEY2": "secret2"},
		},
		{
			name: "file only",
			file: `[
				{"access_key": "FILE_KEY1", "secret_key": "file_secret1"},
				{"access_key": "FILE_KEY2", "secret_key": "file_secret2"}
			]`,
			wantKeys: map[string]string{"FILE_KEY1": "file_secret1", "FILE_KEY2": "file_secret2"},
		},
		{
			name:     "inline and file merged",
			inline:   []keybackend.KeyPair{{AccessKey: "INLINE_KEY", SecretKey: "inline_secret"}},
			file:     `[{"access_key": "FILE_KEY", "secret_key": "file_secret"}]`,
			wantKeys: map[string]string{"INLINE_KEY": "inline_secret", "FILE_KEY": "file_secret"},
		},
		{
			name:     "file replaces inline",
			inline:   []keybackend.KeyPair{{AccessKey: "DUPLICATE_KEY", SecretKey: "inline_loses"}},
			file:     `[{"access_key": "DUPLICATE_KEY", "secret_key": "file_wins"}]`,
			wantKeys: map[string]string{"DUPLICATE_KEY": "file_wins"},
		},
		{
			name: "incomplete pairs skipped",
			inline: []keybackend.KeyPair{
				{AccessKey: "", SecretKey: "secret1"},
				{AccessKey: "KEY2", SecretKey: ""},
				{AccessKey: "VALID_KEY", SecretKey: "valid_secret"},
			},
			file:     `[{"access_key": "NO_SECRET", "secret_key": ""}]`,
			wantKeys: map[string]string{"VALID_KEY": "valid_secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := keybackend.KeysConfig{Inline: tt.inline}
			if tt.file != "" {
				cfg.File = writeKeysFile(t, tt.file)
			}

			store, err := keybackend.NewSecretStore(cfg)
			require.NoError(t, err)

			want := make([]string, 0, len(tt.wantKeys))
			for ak, sk := range tt.wantKeys {
				want = append(want, ak)

				got, err := store.SecretKey(context.Background(), ak)
				require.NoError(t, err, ak)
				assert.Equal(t, sk, got, ak)
			}
			assert.ElementsMatch(t, want, store.AccessKeys())

			_, err = store.SecretKey(context.Background(), "NONEXISTENT_KEY")
			assert.ErrorIs(t, err, bucketry.ErrUnauthorized)
		})
	}
}

func TestNewSecretStore_FileErrors(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{File: filepath.Join(t.TempDir(), "keys.json")})
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.ErrorContains(t, err, "read keys file")
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{File: writeKeysFile(t, "not valid json")})
		assert.ErrorContains(t, err, "parse keys file")
	})
}

func TestKeysConfig_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, keybackend.KeysConfig{}.Empty())
	assert.False(t, keybackend.KeysConfig{File: "keys.json"}.Empty())
	assert.False(t, keybackend.KeysConfig{Inline: []keybackend.KeyPair{{AccessKey: "a", SecretKey: "b"}}}.Empty())
}

// writeKeysFile creates a keys file with content in a temporary directory.
func writeKeysFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
