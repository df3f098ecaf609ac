package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/menjava/internal/auth"
	"github.com/erazemk/menjava/internal/room"
)

// WSHandler upgrades authenticated connections to the room WebSocket.
type WSHandler struct {
	DB        *sql.DB
	JWTSecret string
	Hub       *room.Hub
}

// Serve handles GET /api/ws. Browsers cannot set headers on a WebSocket
// handshake, so the token may also come in the query string.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		jsonError(w, http.StatusUnauthorized, "missing token")
		return
	}

	claims, ok := authenticate(w, r, h.JWTSecret, h.DB, token)
	if !ok {
		return
	}
	h.Hub.ServeWS(w, r, claims.UserID, claims.Username)
}
