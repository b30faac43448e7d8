package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lucasdpassos/pokedex-assistant/internal/chat"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// maxChatBodyBytes bounds the request body size.
const maxChatBodyBytes = 1 << 20

// chatHandler streams conversation turns as NDJSON.
//
// Each line is one chat.Event: text deltas, tool results, at most one error,
// and a final done marker. Content-Type is application/x-ndjson and every
// line is flushed as soon as it is produced.
type chatHandler struct {
	driver *chat.Driver
	logger log.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming not supported", h.logger)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "message is required", h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	requestID, _ := requestIDFromContext(ctx)
	logger := h.logger.With("request_id", requestID)
	logger.Debug("chat stream started")

	enc := json.NewEncoder(w)
	events := 0
	for ev, err := range h.driver.Stream(ctx, req.Message) {
		// The cause behind an error event travels in the error slot and
		// stays out of the wire payload.
		if err != nil {
			logger.Warn("turn failed", "error", err)
		}
		if err := enc.Encode(ev); err != nil {
			logger.Debug("client disconnected mid-stream", "error", err, "events", events)
			return
		}
		flusher.Flush()
		events++
	}

	logger.Debug("chat stream completed", "events", events)
}
