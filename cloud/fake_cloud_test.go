package cloud_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail        = "john.doe@example.com"
	testPassword     = "password123"
	testClientID     = "test-client"
	testClientSecret = "test-secret"
	testDeviceID     = "device-1"
)

// fakeCloud emulates the token endpoint and the device API.
type fakeCloud struct {
	t      *testing.T
	server *httptest.Server

	lock            sync.Mutex
	passwordGrants  int
	refreshGrants   int
	issued          int
	loginStatus     int
	refreshStatus   int
	expiresIn       int
	omitRefresh     bool
	tokenDelay      time.Duration
	deviceStatuses  []int
	deviceCalls     int
	deviceAuth      []string
	servicesStatus  int
	openDoorBodies  []map[string]int
	openDoorUnitIDs []string
	lastHeaders     http.Header
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()

	f := &fakeCloud{t: t, expiresIn: 3600}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", f.handleToken)
	mux.HandleFunc("GET /pairing/api/v4/pairings/me", f.handlePairings)
	mux.HandleFunc("GET /deviceaction/api/v1/device/{id}", f.handleDevice)
	mux.HandleFunc("GET /services2/api/v1/services/{id}", f.handleServices)
	mux.HandleFunc("GET /user/api/v1/users/me", f.handleUser)
	mux.HandleFunc("POST /deviceaction/api/v1/device/{id}/directed-opendoor", f.handleOpenDoor)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) newClient(t *testing.T, options ...cloud.Option) *cloud.Client {
	t.Helper()

	opts := []cloud.Option{
		cloud.WithBaseURLs(f.server.URL, f.server.URL),
		cloud.WithClientIdentity(testClientID, testClientSecret),
		cloud.WithHTTPClient(f.server.Client()),
		cloud.WithLogger(zerolog.Nop()),
	}
	opts = append(opts, options...)
	c, err := cloud.New(cloud.Credentials{Email: testEmail, Password: testPassword}, opts...)
	require.NoError(t, err)
	return c
}

func (f *fakeCloud) counts() (password, refresh int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.passwordGrants, f.refreshGrants
}

func (f *fakeCloud) handleToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != testClientID || secret != testClientSecret {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.lock.Lock()
	f.lastHeaders = r.Header.Clone()
	delay := f.tokenDelay
	var status int
	switch r.PostForm.Get("grant_type") {
	case "password":
		f.passwordGrants++
		status = f.loginStatus
		if r.PostForm.Get("username") != testEmail || r.PostForm.Get("password") != testPassword {
			status = http.StatusBadRequest
		}
	case "refresh_token":
		f.refreshGrants++
		status = f.refreshStatus
		if r.PostForm.Get("refresh_token") == "" {
			status = http.StatusBadRequest
		}
	default:
		status = http.StatusBadRequest
	}
	f.issued++
	issued := f.issued
	grant := r.PostForm.Get("grant_type")
	expiresIn := f.expiresIn
	omitRefresh := f.omitRefresh
	f.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if status != 0 && status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Bad credentials"}`)
		return
	}

	resp := map[string]any{
		"access_token": fmt.Sprintf("access-%d", issued),
		"token_type":   "bearer",
		"expires_in":   expiresIn,
	}
	if grant == "password" && !omitRefresh {
		resp["refresh_token"] = fmt.Sprintf("refresh-%d", issued)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeCloud) handlePairings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []map[string]any{
		{
			"deviceId": testDeviceID,
			"tag":      "Home",
			"home":     "extra-field",
			"accessDoorMap": map[string]any{
				"ZERO": map[string]any{
					"visible":  true,
					"title":    "Main",
					"accessId": map[string]int{"block": 1, "subblock": 2, "number": 3},
				},
				"ONE": map[string]any{
					"visible":  false,
					"title":    "",
					"accessId": map[string]any{"block": 1, "subblock": nil, "number": 0},
				},
			},
		},
	})
}

func (f *fakeCloud) handleDevice(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	f.deviceCalls++
	f.deviceAuth = append(f.deviceAuth, r.Header.Get("Authorization"))
	status := http.StatusOK
	if len(f.deviceStatuses) > 0 {
		status = f.deviceStatuses[0]
		f.deviceStatuses = f.deviceStatuses[1:]
	}
	f.lastHeaders = r.Header.Clone()
	f.lock.Unlock()

	if status != http.StatusOK {
		http.Error(w, "denied", status)
		return
	}
	writeJSON(w, map[string]any{
		"deviceId":        r.PathValue("id"),
		"type":            "VEO-XS",
		"subtype":         "WIFI",
		"connectionState": "Connected",
		"status":          "ACTIVATED",
		"wirelessSignal":  4,
	})
}

func (f *fakeCloud) handleServices(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	status := f.servicesStatus
	f.lock.Unlock()

	if r.URL.Query().Get("deviceType") != "wifi" {
		http.Error(w, "missing device type", http.StatusBadRequest)
		return
	}
	if status != 0 {
		http.Error(w, "unavailable", status)
		return
	}
	writeJSON(w, []string{"OpenDoor", "CallDivert"})
}

func (f *fakeCloud) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"email": testEmail, "locale": "es"})
}

func (f *fakeCloud) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	var body map[string]int
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.lock.Lock()
	f.openDoorBodies = append(f.openDoorBodies, body)
	f.openDoorUnitIDs = append(f.openDoorUnitIDs, r.URL.Query().Get("unitId"))
	f.lock.Unlock()
	_, _ = io.WriteString(w, "the door has been opened")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
