package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// deviceView is a device plus its live readings.
type deviceView struct {
	device.Device
	Readings map[string]string `json:"readings,omitempty"`
}

// handleListDevices returns all registered devices.
//
// Query parameters:
//   - type: only devices of this type
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	deviceType := r.URL.Query().Get("type")
	if len(deviceType) > maxQueryParamLen {
		writeBadRequest(w, "type parameter too long")
		return
	}

	devices := make([]device.Device, 0, s.registry.Count())
	for _, d := range s.registry.List() {
		if deviceType == "" || d.Identity.Type == deviceType {
			devices = append(devices, d)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device and, when it is live, its readings.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}

	d, ok := s.lookupDevice(w, id)
	if !ok {
		return
	}

	view := deviceView{Device: d}
	if s.readings != nil {
		if readings, live := s.readings.Readings(id); live {
			view.Readings = readings
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// lookupDevice fetches id from the registry, writing a 404 when it is not
// registered.
func (s *Server) lookupDevice(w http.ResponseWriter, id device.Identity) (device.Device, bool) {
	d, err := s.registry.Lookup(id)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return device.Device{}, false
	case err != nil:
		s.logger.Error("looking up device", "identity", id.String(), "error", err)
		writeInternalError(w, "device lookup failed")
		return device.Device{}, false
	}
	return d, true
}

// identityParam reads {type}/{id} from the route, writing a 400 on failure.
func identityParam(w http.ResponseWriter, r *http.Request) (device.Identity, bool) {
	id := device.NewIdentity(chi.URLParam(r, "id"), chi.URLParam(r, "type"))
	if err := id.Validate(); err != nil {
		writeBadRequest(w, "invalid device identity")
		return device.Identity{}, false
	}
	return id, true
}
