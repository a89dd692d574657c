package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/notification"
)

// createSubscriptionRequest is the body of POST /notifications/subscriptions.
type createSubscriptionRequest struct {
	Kind      string                   `json:"kind"`
	ChannelID string                   `json:"channel_id"`
	Devices   []notification.DeviceRef `json:"devices,omitempty"`
}

// handleListChannels returns the ids of every configured channel.
func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	ids := s.router.ChannelIDs()
	writeJSON(w, http.StatusOK, map[string]any{"channels": ids, "count": len(ids)})
}

// handleListSubscriptions returns the live routing table and, when a
// repository is configured, the subscriptions added through the API.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.router.Subscriptions()
	if subs == nil {
		subs = []notification.Subscription{}
	}
	resp := map[string]any{"subscriptions": subs, "count": len(subs)}

	if s.subscriptions != nil {
		stored, err := s.subscriptions.List(r.Context())
		if err != nil {
			s.logger.Error("listing stored subscriptions", "error", err)
			writeInternalError(w, "failed to list stored subscriptions")
			return
		}
		if stored == nil {
			stored = []notification.StoredSubscription{}
		}
		resp["stored"] = stored
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreateSubscription adds and persists a subscription.
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeUnavailable(w, "subscription storage unavailable")
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	kind, err := event.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	sub := notification.Subscription{Kind: kind, ChannelID: req.ChannelID}
	for _, ref := range req.Devices {
		sub.Devices = append(sub.Devices, ref.Identity())
	}

	stored, err := notification.Add(r.Context(), s.subscriptions, s.router, sub)
	switch {
	case errors.Is(err, notification.ErrUnknownChannel):
		writeNotFound(w, err.Error())
	case errors.Is(err, notification.ErrInvalidSubscription), errors.Is(err, notification.ErrUnsupportedEventKind):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case err != nil:
		s.logger.Error("creating subscription", "kind", kind, "channel_id", req.ChannelID, "error", err)
		writeInternalError(w, "failed to create subscription")
	default:
		s.logger.Info("notification subscription added",
			"id", stored.ID,
			"kind", stored.Kind,
			"channel_id", stored.ChannelID,
			"devices", len(stored.Devices),
		)
		writeJSON(w, http.StatusCreated, stored)
	}
}

// handleResolve shows which channels an event would be delivered to.
//
// Query parameters:
//   - kind: event kind (required)
//   - device_type, device_id: the device, required for device-scoped kinds
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := event.ParseKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	var targets []notification.Target
	resp := map[string]any{"kind": kind}
	if kind.DeviceScoped() {
		id := device.NewIdentity(q.Get("device_id"), q.Get("device_type"))
		if err := id.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "device_type and device_id are required for "+string(kind))
			return
		}
		targets = s.router.Resolve(kind, id)
		resp["device"] = id
	} else {
		targets = s.router.ResolveGlobal(kind)
	}

	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	resp["channels"] = ids
	writeJSON(w, http.StatusOK, resp)
}
