package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse mirrors the {"detail": ...} shape clients already parse.
type errorResponse struct {
	Detail string `json:"detail"`
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithDetail(w http.ResponseWriter, logger *slog.Logger, code int, detail string) {
	respondWithJSON(w, logger, code, errorResponse{Detail: detail})
}

// Health always reports ok; it shares no state with running tasks.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
