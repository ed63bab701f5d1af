package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON serializes data and writes it with statusCode and the
// "application/json" content type. When marshaling fails it answers 500
// and returns the wrapped error.
//
//	WriteJSON(w, map[string]string{"error": "not found"}, http.StatusNotFound)
func WriteJSON(w http.ResponseWriter, data any, statusCode int) (int, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "error writing data to JSON", http.StatusInternalServerError)
		return 0, fmt.Errorf("error writing data to JSON: %w", err)
	}
	return WriteRawJSON(w, jsonData, statusCode)
}

// WriteRawJSON writes an already serialized JSON document.
func WriteRawJSON(w http.ResponseWriter, data []byte, statusCode int) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return w.Write(data)
}
