package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmarathon/apiserver/internal/auth"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		hashScheme = string(auth.SchemePBKDF2)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashpw_SHA256(t *testing.T) {
	out, err := runRoot(t, "", "hashpw", "--scheme", "sha256", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "240be518fabd2724ddb6f04eeb1da5967448d7e831c08c8fa822809f74c720a9\n", out)
}

func TestHashpw_PBKDF2FromStdin(t *testing.T) {
	out, err := runRoot(t, "s3cret-pass\n", "hashpw", "--scheme", "pbkdf2")
	require.NoError(t, err)

	hashed := strings.TrimSpace(out)
	assert.Equal(t, auth.SchemePBKDF2, auth.Classify(hashed))
	assert.True(t, auth.NewPasswordVerifier().Verify("s3cret-pass", hashed))
}

func TestHashpw_UnknownScheme(t *testing.T) {
	_, err := runRoot(t, "", "hashpw", "--scheme", "md5", "pw")
	assert.Error(t, err)
}
