package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/jrsteele09/go-fermax-cloud/cloud/cloudfake"
	"github.com/jrsteele09/go-fermax-cloud/coordinator"
	"github.com/jrsteele09/go-fermax-cloud/metrics"
	"github.com/jrsteele09/go-fermax-cloud/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct {
	calls atomic.Int32
}

func (t *countingTrigger) TriggerRefresh() {
	t.calls.Add(1)
}

type panickingCoordinator struct {
	*coordinator.Coordinator
}

func (panickingCoordinator) GetAllDevices() coordinator.Snapshot {
	panic("boom")
}

func newTestServer(t *testing.T, options ...server.Option) (*httptest.Server, *cloudfake.FakeClient, *coordinator.Coordinator) {
	t.Helper()

	fake := cloudfake.NewFakeClient()
	block, number := 1, 3
	fake.SetPairings([]cloud.Pairing{cloudfake.NewPairing("X", map[string]cloud.DoorAccess{
		"ZERO": cloudfake.Door("Main", 1, 2, 3),
		"ONE":  {Visible: false, AccessID: cloud.AccessID{Block: &block, Number: &number}},
	})}, nil)
	fake.SetDevice("X", cloud.DeviceInfo{Type: "VEO-XS", Subtype: "WIFI", ConnectionState: "Connected", Status: "ACTIVATED"})
	fake.SetServices("X", []string{"OpenDoor"})

	coord := coordinator.New(fake, coordinator.WithLogger(zerolog.Nop()))
	require.NoError(t, coord.Refresh(context.Background()))

	opts := append([]server.Option{server.WithLogger(zerolog.Nop())}, options...)
	ts := httptest.NewServer(server.New(coord, opts...))
	t.Cleanup(ts.Close)
	return ts, fake, coord
}

func do(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestListDevices(t *testing.T) {
	ts, _, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/api/devices")
	require.Equal(t, http.StatusOK, status)

	items := body["items"].([]any)
	require.Len(t, items, 1)
	device := items[0].(map[string]any)
	require.Equal(t, "X", device["deviceId"])
	require.Equal(t, "VEO-XS (WIFI)", device["model"])
	require.Equal(t, true, device["connected"])
	require.Equal(t, []any{"ZERO"}, device["doors"])
}

func TestGetDevice(t *testing.T) {
	ts, _, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/api/devices/X")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "X", body["deviceId"])

	status, body = do(t, http.MethodGet, ts.URL+"/api/devices/missing")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", errorCode(body))
}

func TestOpenDoor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts, fake, _ := newTestServer(t)

		status, body := do(t, http.MethodPost, ts.URL+"/api/devices/X/doors/ZERO/open")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["ok"])
		require.Len(t, fake.OpenDoorCalls(), 1)
	})

	t.Run("unknown door", func(t *testing.T) {
		ts, _, _ := newTestServer(t)

		status, body := do(t, http.MethodPost, ts.URL+"/api/devices/X/doors/SEVEN/open")
		require.Equal(t, http.StatusNotFound, status)
		require.Equal(t, "not_found", errorCode(body))
	})

	t.Run("incomplete access triple", func(t *testing.T) {
		ts, _, _ := newTestServer(t)

		status, body := do(t, http.MethodPost, ts.URL+"/api/devices/X/doors/ONE/open")
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.Equal(t, "invalid_config", errorCode(body))
	})

	t.Run("cloud failure", func(t *testing.T) {
		ts, fake, _ := newTestServer(t)
		fake.SetOpenDoorError(&cloud.APIError{Op: "OpenDoor", StatusCode: 500})

		status, body := do(t, http.MethodPost, ts.URL+"/api/devices/X/doors/ZERO/open")
		require.Equal(t, http.StatusBadGateway, status)
		require.Equal(t, "upstream_failed", errorCode(body))
	})

	t.Run("auth failure", func(t *testing.T) {
		ts, fake, _ := newTestServer(t)
		fake.SetOpenDoorError(&cloud.AuthError{StatusCode: 400})

		status, body := do(t, http.MethodPost, ts.URL+"/api/devices/X/doors/ZERO/open")
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "auth_failed", errorCode(body))
	})
}

func TestRefresh(t *testing.T) {
	t.Run("trigger", func(t *testing.T) {
		trigger := &countingTrigger{}
		ts, _, _ := newTestServer(t, server.WithRefreshTrigger(trigger))

		status, _ := do(t, http.MethodPost, ts.URL+"/api/refresh")
		require.Equal(t, http.StatusAccepted, status)
		require.Equal(t, int32(1), trigger.calls.Load())
	})

	t.Run("wait", func(t *testing.T) {
		trigger := &countingTrigger{}
		ts, fake, _ := newTestServer(t, server.WithRefreshTrigger(trigger))

		status, body := do(t, http.MethodPost, ts.URL+"/api/refresh?wait=true")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["succeeded"])
		require.Equal(t, int32(0), trigger.calls.Load())
		require.Equal(t, 2, fake.PairingCalls())
	})

	t.Run("no devices updated", func(t *testing.T) {
		ts, fake, _ := newTestServer(t)
		fake.SetPairings([]cloud.Pairing{}, nil)

		status, body := do(t, http.MethodPost, ts.URL+"/api/refresh")
		require.Equal(t, http.StatusServiceUnavailable, status)
		require.Equal(t, "update_failed", errorCode(body))
	})

	t.Run("listing failure", func(t *testing.T) {
		ts, fake, _ := newTestServer(t)
		fake.SetPairings(nil, &cloud.ConnectionError{Op: "GetPairings", Err: errors.New("timeout")})

		status, _ := do(t, http.MethodPost, ts.URL+"/api/refresh")
		require.Equal(t, http.StatusBadGateway, status)
	})
}

func TestStatusAndHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["succeeded"])
	require.Equal(t, true, body["available"])
	require.Equal(t, float64(1), body["devices"])

	status, body = do(t, http.MethodGet, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, true, body["available"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveDoorOpen(nil)
	ts, _, _ := newTestServer(t, server.WithGatherer(reg))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), `fermax_door_opens_total{result="success"} 1`))
}

func TestNotFoundAndRecover(t *testing.T) {
	ts, _, coord := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/nope")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", errorCode(body))

	panicking := httptest.NewServer(server.New(panickingCoordinator{coord}, server.WithLogger(zerolog.Nop())))
	defer panicking.Close()

	status, body = do(t, http.MethodGet, panicking.URL+"/api/devices")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "internal_error", errorCode(body))
}
