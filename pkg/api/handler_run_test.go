package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/database"
	"github.com/adscout/adscout/pkg/services"
	"github.com/adscout/adscout/test/util"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	client, db := util.SetupTestDatabase(t)

	svcs := Services{
		Runs:       services.NewRunService(client),
		RunLogs:    services.NewRunLogService(client),
		Pages:      services.NewPageService(client),
		Ads:        services.NewAdService(client),
		WinningAds: services.NewWinningAdService(client),
		Creds:      services.NewCredentialService(client),
		Blacklist:  services.NewBlacklistService(client),
		Settings:   services.NewSettingsService(client),
		Scans:      services.NewScheduledScanService(client),
	}
	return NewServer(config.Default(), database.NewClientFromEnt(client, db), svcs, nil, nil, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "tenant-1")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestSubmitAndCancelRun(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/runs", map[string]any{
		"keywords":  []string{"bijoux"},
		"countries": []string{"FR"},
		"languages": []string{"fr"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)
	require.NotZero(t, created.ID)

	// Status endpoint.
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/runs/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Cancel while still pending: straight to cancelled.
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/runs/%d/cancel", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelResp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelResp))
	assert.Equal(t, "cancelled", cancelResp.Status)

	// Cancelling twice is a conflict.
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/runs/%d/cancel", created.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitRunValidation(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/runs", map[string]any{
		"countries": []string{"FR"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantHeaderRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunNotFoundIsTenantScoped(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/runs", map[string]any{
		"keywords":  []string{"bijoux"},
		"countries": []string{"FR"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%d", created.ID), nil)
	req.Header.Set("X-User-ID", "tenant-2")
	w2 := httptest.NewRecorder()
	s.Router().ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotFound, w2.Code)
}

func TestCredentialEndpointsNeverReturnToken(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/credentials", map[string]any{
		"name":  "primary",
		"token": "super-secret-token",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "super-secret-token")

	w = doJSON(t, s, http.MethodGet, "/api/v1/credentials", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "super-secret-token")
}
