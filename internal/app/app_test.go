package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-generator/internal/handlers"
	"pdf-generator/internal/pdf"
	u "pdf-generator/internal/utils"
)

type stubConverter struct{}

func (stubConverter) Convert(context.Context, string, pdf.PageOptions) ([]byte, error) {
	return []byte("%PDF-1.7 stub"), nil
}

func (stubConverter) Close() error { return nil }

var testCred = u.Credential{Username: "admin", Password: "s3cret"}

func newTestApp(t *testing.T) (*fiber.App, u.Config) {
	t.Helper()
	base := t.TempDir()

	cfg := u.DefaultConfig()
	cfg.Templates.Root = filepath.Join(base, "templates")
	cfg.Templates.ConfigDir = base
	cfg.Output.Root = filepath.Join(base, "output")
	require.NoError(t, os.MkdirAll(cfg.Templates.Root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Templates.Root, "empresa.html.j2"), []byte("<h1>{{ razon }}</h1>"), 0o644))

	exporter, err := pdf.NewExporter(stubConverter{}, cfg.Output.Root)
	require.NoError(t, err)
	svc, err := handlers.NewPDFService(cfg, exporter, nil)
	require.NoError(t, err)

	return SetupApp(cfg, testCred, svc), cfg
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuth_RejectsMissingAndWrongCredentials(t *testing.T) {
	app, cfg := newTestApp(t)

	for name, header := range map[string]string{
		"missing":        "",
		"wrong password": basic("admin", "nope"),
		"wrong user":     basic("root", "s3cret"),
		"not basic":      "Bearer abc",
		"garbage":        "Basic !!!",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generate-pdf", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, `Basic realm="`+cfg.Auth.Realm+`"`, resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestAuth_AcceptsValidCredentials(t *testing.T) {
	app, cfg := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-pdf",
		strings.NewReader(`{"template":"empresa.html","context":{"razon":"Empresa S.A."},"output":"empresa.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basic("admin", "s3cret"))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	_, err = os.Stat(filepath.Join(cfg.Output.Root, "empresa.pdf"))
	assert.NoError(t, err)
}

func TestPublicEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/api/health", "/livez", "/readyz", "/favicon.ico"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Less(t, resp.StatusCode, 300, path)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/generate-pdf", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.NotEqual(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPublicEndpoints_PathVariants(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/api/health/", "/API/health", "/Api/Health/"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}
}

func TestProtectedOperationalEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/metrics", "/api/chrome/stats", "/api/monitor"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", basic("admin", "s3cret"))
		resp, err = app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}
}

func TestErrorsAreJSON(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("Authorization", basic("admin", "s3cret"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var out struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, fiber.StatusNotFound, out.Error.Code)
	assert.Equal(t, "Not Found", out.Error.Message)

	req = httptest.NewRequest(http.MethodPost, "/api/generate-pdf", strings.NewReader(`{}`))
	req.Header.Set("Authorization", basic("admin", "s3cret"))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	data, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, fiber.StatusUnsupportedMediaType, out.Error.Code)
}

func TestBodyLimit(t *testing.T) {
	base := t.TempDir()
	cfg := u.DefaultConfig()
	cfg.Templates.Root = base
	cfg.Output.Root = filepath.Join(base, "out")
	cfg.Limits.MaxBodyBytes = 64

	exporter, err := pdf.NewExporter(stubConverter{}, cfg.Output.Root)
	require.NoError(t, err)
	svc, err := handlers.NewPDFService(cfg, exporter, nil)
	require.NoError(t, err)
	app := SetupApp(cfg, testCred, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-pdf", strings.NewReader(strings.Repeat("x", 1024)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basic("admin", "s3cret"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
