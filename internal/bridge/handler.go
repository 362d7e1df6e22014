package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc    Service
	secret string
	log    *slog.Logger
}

func NewHandler(svc Service, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, secret: webhookSecret, log: logger.With("component", "webhook")}
}

type response struct {
	OK       bool   `json:"ok"`
	Ignored  bool   `json:"ignored,omitempty"`
	OptedOut bool   `json:"opted_out,omitempty"`
	Dedup    bool   `json:"dedup,omitempty"`
	Error    string `json:"error,omitempty"`
}

func errorBody(msg string) response { return response{OK: false, Error: msg} }

// HandleWebhook: вход от Green-API
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !Authorized(h.secret, SecretFromRequest(r)) {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	// arrays and scalars parse fine but carry no message
	body, _ := doc.(map[string]any)
	in, ok := NormalizePayload(body)
	if !ok {
		h.log.Debug("not a user text message", "type", body["typeWebhook"])
		writeJSON(w, http.StatusOK, response{OK: true, Ignored: true})
		return
	}

	outcome, err := h.svc.HandleIncoming(r.Context(), in)
	if err != nil {
		h.log.Error("processing failed", "chat_id", in.ChatID, "message_id", in.MessageID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	switch outcome {
	case OutcomeIgnored:
		writeJSON(w, http.StatusOK, response{OK: true, Ignored: true})
	case OutcomeOptedOut:
		writeJSON(w, http.StatusOK, response{OK: true, OptedOut: true})
	case OutcomeDuplicate:
		writeJSON(w, http.StatusOK, response{OK: true, Dedup: true})
	default:
		writeJSON(w, http.StatusOK, response{OK: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
