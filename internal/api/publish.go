package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-relay/internal/relay"
)

// PublishRequest is the body of a publish call.
//
// RelayID selects the target broker connection; when empty the message goes to
// the default relay. QoS is accepted for client compatibility and validated,
// but delivery to the broker is always at-least-once.
type PublishRequest struct {
	RelayID string `json:"relay_id,omitempty"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
	QoS     int    `json:"qos"`
	Retain  bool   `json:"retain"`
}

// PublishResponse acknowledges an accepted publish.
//
// Acceptance means the message was enqueued on the target relay's publish
// queue; the broker-level outcome is logged by the worker, not reported here.
type PublishResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	RelayID   string `json:"relay_id"`
}

// handlePublish accepts a message from a local client and routes it to a
// supervised broker connection.
//
// Status codes:
//   - 400: Not JSON, or the body is malformed
//   - 404: No active relay, or the named relay is unknown
//   - 422: Well-formed JSON failing validation (wrong field type, empty
//     topic, QoS out of range)
//   - 500: Routing failed internally (worker stopped, queue full)
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeBadRequest(w, "Content-Type must be application/json")
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeUnprocessable(w, "invalid type for field "+typeErr.Field)
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Topic == "" {
		writeUnprocessable(w, "topic is required")
		return
	}
	if req.QoS < 0 || req.QoS > 2 {
		writeUnprocessable(w, "qos must be 0, 1, or 2")
		return
	}

	msg := relay.PublishMessage{
		Topic:   req.Topic,
		Payload: []byte(req.Message),
		QoS:     byte(req.QoS),
		Retain:  req.Retain,
	}

	target, err := s.router.Route(req.RelayID, msg)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrNoActiveRelay):
			writeNotFound(w, "no active relay connection")
		case errors.Is(err, relay.ErrUnknownRelay):
			writeNotFound(w, "unknown relay: "+req.RelayID)
		default:
			s.logger.Error("failed to route publish message",
				"relay_id", req.RelayID,
				"topic", req.Topic,
				"error", err,
			)
			writeInternalError(w, "failed to queue message")
		}
		return
	}

	writeJSON(w, http.StatusOK, PublishResponse{
		Status:    "message published",
		MessageID: uuid.NewString(),
		RelayID:   target,
	})
}
