package portal

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (p *Portal) jsonResponse(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		p.log.Errorf("Could not respond with JSON: %v", err)
	}
}

func (p *Portal) jsonError(w http.ResponseWriter, message string, code int) {
	p.jsonResponse(w, &errorResponse{Error: message}, code)
}
