package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"safeskin/internal/inference"
)

const maxUploadBytes = 50 << 20 // 50MB max

type Handler struct {
	backend *inference.Client
}

func NewHandler(backend *inference.Client) *Handler {
	return &Handler{backend: backend}
}

// PredictHandler handles POST /api/predict. It relays the uploaded image to
// the inference backend and passes the backend's JSON reply through
// untouched. Backend error detail is logged here and never sent upstream.
func (h *Handler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Predict API error: %v", err)
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := h.backend.Predict(r.Context(), image)
	if err != nil {
		var backendErr *inference.BackendError
		if errors.As(err, &backendErr) {
			log.Printf("Backend error: %s", backendErr.Body)
			respondError(w, "Backend analysis failed", http.StatusInternalServerError)
			return
		}
		log.Printf("Predict API error: %v", err)
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HealthHandler reports daemon liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
