package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/jrsteele09/go-fermax-cloud/coordinator"
	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

// DeviceResponse is the API view of one device snapshot.
type DeviceResponse struct {
	DeviceID       string             `json:"deviceId"`
	Tag            string             `json:"tag"`
	Model          string             `json:"model"`
	Connected      bool               `json:"connected"`
	Activated      bool               `json:"activated"`
	WirelessSignal *int               `json:"wirelessSignal,omitempty"`
	Doors          []string           `json:"doors"`
	Capabilities   cloud.Capabilities `json:"capabilities"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func newDeviceResponse(d coordinator.DeviceSnapshot) DeviceResponse {
	return DeviceResponse{
		DeviceID:       d.DeviceID,
		Tag:            d.Pairing.Tag,
		Model:          d.Info.Model(),
		Connected:      d.Info.Connected(),
		Activated:      d.Info.Activated(),
		WirelessSignal: d.Info.WirelessSignal,
		Doors:          d.Pairing.VisibleDoors(),
		Capabilities:   d.Capabilities,
		UpdatedAt:      d.UpdatedAt,
	}
}

// HealthHandler reports liveness and whether any device data is available.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.coordinator.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":               "ok",
			"available":            status.Available,
			"lastRefreshSucceeded": status.Succeeded,
		})
	}
}

// ListDevicesHandler returns every device in the published snapshot, sorted by id.
func (s *Server) ListDevicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := s.coordinator.GetAllDevices()
		items := make([]DeviceResponse, 0, len(snapshot))
		for _, device := range snapshot {
			items = append(items, newDeviceResponse(device))
		}
		sort.Slice(items, func(i, j int) bool { return items[i].DeviceID < items[j].DeviceID })
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (s *Server) GetDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, ParamDeviceID)
		device, ok := s.coordinator.GetDeviceData(deviceID)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "Device not found")
			return
		}
		writeJSON(w, http.StatusOK, newDeviceResponse(device))
	}
}

func (s *Server) OpenDoorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, ParamDeviceID)
		doorKey := chi.URLParam(r, ParamDoorKey)

		if err := s.coordinator.OpenDoor(r.Context(), deviceID, doorKey); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Str("door", doorKey).Msg("door open request failed")
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// RefreshHandler schedules a refresh, or runs one and reports its outcome when
// ?wait=true or no trigger is configured.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait, _ := strconv.ParseBool(r.URL.Query().Get(QueryWaitRefresh))
		if s.trigger != nil && !wait {
			s.trigger.TriggerRefresh()
			writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
			return
		}

		if err := s.coordinator.Refresh(r.Context()); err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.coordinator.Status())
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.coordinator.Status())
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "404 - Page Not Found")
	}
}

// failureStatus maps the error taxonomy onto HTTP.
func failureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ferrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ferrors.ErrInvalidConfig):
		return http.StatusUnprocessableEntity, "invalid_config"
	case errors.Is(err, ferrors.ErrAuth):
		return http.StatusUnauthorized, "auth_failed"
	case errors.Is(err, ferrors.ErrConnection), errors.Is(err, ferrors.ErrAPI):
		return http.StatusBadGateway, "upstream_failed"
	case errors.Is(err, ferrors.ErrUpdateFailed):
		return http.StatusServiceUnavailable, "update_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status, code := failureStatus(err)
	writeError(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
