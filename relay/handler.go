package relay

import (
	"encoding/json"
	"net/http"
)

type tokenData struct {
	Token string `json:"token"`
}

type apiResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// serveToken hands a logged-in user a fresh socket token.
func (s *Server) serveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Status: "error", Message: "method not allowed"})
		return
	}

	userID, err := s.sessions.Authenticate(r)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, apiResponse{Status: "error", Message: "not logged in"})
		return
	}

	token, err := s.issuer.Issue(userID)
	if err != nil {
		s.logger.Error("Failed to issue socket token for user %s: %v", userID, err)
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{Status: "error", Message: "could not issue token"})
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Status: "success", Data: tokenData{Token: token}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write response: %v", err)
	}
}
