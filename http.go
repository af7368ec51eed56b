package tilewalk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/tilewalk/internal/store"
)

// RegisterHTTP mounts the control endpoints on a chi router. Scrapes run
// asynchronously; progress is delivered through the configured sinks.
func (r *Runner) RegisterHTTP(mux chi.Router) {
	mux.Post("/scrape/{variant}", r.handleScrape)
	mux.Post("/cancel", r.handleCancel)
	mux.Post("/export", r.handleExport)
	mux.Get("/status", r.handleStatus)
	mux.Post("/settings", r.handleSettings)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (r *Runner) handleScrape(w http.ResponseWriter, req *http.Request) {
	variant := chi.URLParam(req, "variant")
	if variant != "nearby" && variant != "travel" {
		http.Error(w, "unknown variant", http.StatusBadRequest)
		return
	}
	var body scrapeRequest
	if req.Body != nil {
		// Body is optional; the configured target URL is the default.
		_ = json.NewDecoder(req.Body).Decode(&body)
	}
	if r.Running() {
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}

	// Detached from the request context: the run outlives the response.
	go func() {
		if _, err := r.Run(context.Background(), variant, body.URL); err != nil {
			r.logger.Error("tilewalk: run failed", "variant", variant, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started", "variant": variant})
}

func (r *Runner) handleCancel(w http.ResponseWriter, _ *http.Request) {
	r.Cancel()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancel requested"})
}

type exportRequest struct {
	Variant string `json:"variant"`
}

func (r *Runner) handleExport(w http.ResponseWriter, req *http.Request) {
	var body exportRequest
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}
	path, err := r.ExportLast(req.Context(), body.Variant)
	if errors.Is(err, store.ErrNoBatch) {
		http.Error(w, "no batch to export", http.StatusNotFound)
		return
	}
	if err != nil {
		r.logger.Error("tilewalk: export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "exported", "path": path})
}

type settingsRequest struct {
	FaceKey     string `json:"face_key"`
	FaceSecret  string `json:"face_secret"`
	FaceEnabled bool   `json:"face_enabled"`
}

func (r *Runner) handleSettings(w http.ResponseWriter, req *http.Request) {
	var body settingsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := r.SaveFaceSettings(req.Context(), body.FaceKey, body.FaceSecret, body.FaceEnabled); err != nil {
		r.logger.Error("tilewalk: save settings failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "saved"})
}

func (r *Runner) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"running": r.Running()})
}
