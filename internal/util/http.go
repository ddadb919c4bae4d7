package util

import (
	"encoding/json"
	"net/http"
)

// JSON writes a 200 JSON response with content-type
func JSON(w http.ResponseWriter, v any) {
	JSONStatus(w, http.StatusOK, v)
}

// JSONStatus writes v as JSON with the given status code.
func JSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the given status code.
func Error(w http.ResponseWriter, code int, msg string) {
	JSONStatus(w, code, map[string]string{"error": msg})
}
