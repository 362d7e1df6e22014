package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHistoryLimit = 200
	maxHistoryLimit     = 1000
)

type AdminHandler struct {
	settings SettingsStore
	messages MessageRepo
	log      *slog.Logger
}

func NewAdminHandler(settings SettingsStore, messages MessageRepo, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{settings: settings, messages: messages, log: logger.With("component", "admin")}
}

type settingsDTO struct {
	SystemPrompt  string `json:"system_prompt"`
	SiteURL       string `json:"site_url"`
	CandidateLink string `json:"candidate_link"`
	AgencyLink    string `json:"agency_link"`
	Tone          string `json:"tone"`
}

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetSettings(r.Context())
	if err != nil {
		h.log.Error("get settings", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, settingsDTO(s))
}

func (h *AdminHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := h.settings.PutSettings(r.Context(), Settings(in)); err != nil {
		h.log.Error("put settings", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true})
}

type historyContact struct {
	ChatID   string `json:"wa_chat_id"`
	LeadType string `json:"lead_type"`
	Stage    string `json:"stage"`
}

type historyItem struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Direction string         `json:"direction"`
	Text      string         `json:"text"`
	Contact   historyContact `json:"contact"`
}

func (h *AdminHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid limit"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	items, err := h.messages.ListHistory(r.Context(), limit)
	if err != nil {
		h.log.Error("list history", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	out := make([]historyItem, 0, len(items))
	for _, it := range items {
		out = append(out, historyItem{
			ID:        it.ID,
			CreatedAt: it.CreatedAt,
			Direction: string(it.Direction),
			Text:      it.Text,
			Contact:   historyContact{ChatID: it.ChatID, LeadType: it.LeadType, Stage: it.Stage},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
