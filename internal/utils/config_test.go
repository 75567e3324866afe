package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, EngineChromedp, cfg.PDF.Engine)
	assert.Equal(t, "A4", cfg.PDF.DefaultPaper)
	assert.Equal(t, ".j2", cfg.Templates.Extension)
	assert.Equal(t, "render_config.json", cfg.Templates.DefaultConfig)
	assert.Equal(t, "BASIC_USER", cfg.Auth.UserEnv)
	assert.Equal(t, AuditNone, cfg.Audit.Backend)
}

func TestLoadConfigFrom_OverridesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
rate_limiter:
  user_limit: 5
  interval: 30s
pdf:
  engine: " ROD "
  default_paper: letter
  paper_sizes:
    letter: {width: 8.5, height: 11}
  timeout_secs: 10
  chrome_pool_size: 2
templates:
  root: /srv/templates
  extension: html
output:
  root: /srv/output
audit:
  backend: Redis
`)
	cfg := LoadConfigFrom(path)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, 5, cfg.RateLimiter.UserLimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimiter.Interval)
	assert.Equal(t, EngineRod, cfg.PDF.Engine)
	assert.Equal(t, "LETTER", cfg.PDF.DefaultPaper)
	assert.Contains(t, cfg.PDF.PaperSizes, "LETTER")
	assert.Equal(t, ".html", cfg.Templates.Extension)
	assert.Equal(t, AuditRedis, cfg.Audit.Backend)
}

func TestLoadConfig_UsesConfigPathAndDSNEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":7070\"\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("AUDIT_POSTGRES_DSN", "postgres://u:p@db:5432/audit")

	cfg := LoadConfig()
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db:5432/audit", cfg.Audit.Postgres.DSN)
	assert.Empty(t, cfg.Audit.Postgres.Host)
}

func TestLoadConfigFrom_InvalidPanics(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "server: [",
		"unknown engine":  "pdf:\n  engine: wkhtml\n",
		"unknown paper":   "pdf:\n  default_paper: B0\n",
		"zero timeout":    "pdf:\n  timeout_secs: -1\n",
		"negative pool":   "pdf:\n  chrome_pool_size: -2\n",
		"margin range":    "pdf:\n  default_margin: 3\n",
		"audit backend":   "audit:\n  backend: mongo\n",
		"limit interval":  "rate_limiter:\n  user_limit: 3\n  interval: 0s\n",
		"empty extension": "templates:\n  extension: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, body)
			assert.Panics(t, func() { LoadConfigFrom(path) })
		})
	}
}
