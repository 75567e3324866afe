package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credConfig(envFile string) Config {
	cfg := DefaultConfig()
	cfg.Auth.UserEnv = "PDFGEN_TEST_USER"
	cfg.Auth.PasswordEnv = "PDFGEN_TEST_PASSWORD"
	cfg.Auth.EnvFile = envFile
	return cfg
}

func TestLoadCredential_FromEnvironment(t *testing.T) {
	t.Setenv("PDFGEN_TEST_USER", "admin")
	t.Setenv("PDFGEN_TEST_PASSWORD", "s3cret")

	cred, err := LoadCredential(credConfig(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, err)
	assert.Equal(t, Credential{Username: "admin", Password: "s3cret"}, cred)
}

func TestLoadCredential_FromEnvFile(t *testing.T) {
	// Registered with t.Setenv so the values loaded from the file are reset afterwards.
	t.Setenv("PDFGEN_TEST_USER", "")
	t.Setenv("PDFGEN_TEST_PASSWORD", "")
	os.Unsetenv("PDFGEN_TEST_USER")
	os.Unsetenv("PDFGEN_TEST_PASSWORD")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PDFGEN_TEST_USER=file-user\nPDFGEN_TEST_PASSWORD=file-pass\n"), 0o600))

	cred, err := LoadCredential(credConfig(envFile))
	require.NoError(t, err)
	assert.Equal(t, "file-user", cred.Username)
	assert.Equal(t, "file-pass", cred.Password)
}

func TestLoadCredential_ProcessEnvWins(t *testing.T) {
	t.Setenv("PDFGEN_TEST_USER", "env-user")
	t.Setenv("PDFGEN_TEST_PASSWORD", "env-pass")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PDFGEN_TEST_USER=file-user\n"), 0o600))

	cred, err := LoadCredential(credConfig(envFile))
	require.NoError(t, err)
	assert.Equal(t, "env-user", cred.Username)
}

func TestLoadCredential_Missing(t *testing.T) {
	t.Setenv("PDFGEN_TEST_USER", "admin")
	t.Setenv("PDFGEN_TEST_PASSWORD", "")

	_, err := LoadCredential(credConfig(""))
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}
