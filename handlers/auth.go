package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/session"
)

// AuthHandler exposes the session state and its commands.
type AuthHandler struct {
	sessions *session.Store
}

func NewAuthHandler(sessions *session.Store) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) validate() map[string]string {
	fields := map[string]string{}
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		fields["email"] = "Invalid email address"
	}
	if c.Password == "" {
		fields["password"] = "Password is required"
	}
	return fields
}

func (h *AuthHandler) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)

	if fields := req.validate(); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": fields,
		})
		return req, false
	}
	return req, true
}

// commandResult writes the state after an auth command.
func (h *AuthHandler) commandResult(w http.ResponseWriter, err error) {
	state := h.sessions.Current()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   err.Error(),
			"session": state,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": state})
}

// Session returns the current session state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"session": h.sessions.Current()})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	err := h.sessions.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Info().Err(err).Msg("registration failed")
	}
	h.commandResult(w, err)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Info().Err(err).Msg("login failed")
	}
	h.commandResult(w, err)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.commandResult(w, h.sessions.Logout(r.Context()))
}

// Confirm consumes an email confirmation link and redirects to the app.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "Missing token")
		return
	}

	if err := h.sessions.ConfirmEmail(r.Context(), token); err != nil {
		log.Info().Err(err).Msg("email confirmation failed")
		writeMessage(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
