package server

import "net/http"

// Routes assembles the daemon's handler: the predict proxy, a health probe
// and the static frontend, all behind permissive CORS.
func Routes(h *Handler, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", h.PredictHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
