package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapleads/internal/config"
	"mapleads/internal/leads"
	"mapleads/internal/pace"
	"mapleads/internal/plan"
	"mapleads/internal/runner"
)

func testRunner(t *testing.T) *runner.Runner {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		LeadsFile:  filepath.Join(dir, "leads.json"),
		LedgerFile: filepath.Join(dir, "history.json"),
	}
	store, err := leads.NewStore(cfg.LeadsFile)
	require.NoError(t, err)
	ledger, err := plan.OpenLedger(cfg.LedgerFile)
	require.NoError(t, err)
	pacer := pace.New(0, 0, time.Minute, 1)
	return runner.New(cfg, pacer, store, ledger, nil, nil)
}

func TestHandleHealthWithoutRedis(t *testing.T) {
	app := fiber.New()
	h := NewHandler(nil, nil)
	app.Get("/v1/health", h.HandleHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "healthy", payload["overall_status"])
}

func TestHandleStatusWithoutRun(t *testing.T) {
	app := fiber.New()
	h := NewHandler(nil, nil)
	app.Get("/v1/status", h.HandleStatus)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleStatusReportsSnapshot(t *testing.T) {
	app := fiber.New()
	h := NewHandler(testRunner(t), nil)
	app.Get("/v1/status", h.HandleStatus)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var snap runner.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, runner.StateIdle, snap.State)
	assert.NotEmpty(t, snap.RunID)
}
