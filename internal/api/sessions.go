package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
	"github.com/erazemk/menjava/internal/trade"
)

// SessionsHandler handles negotiation rooms and the trade history over plain
// HTTP. The same operations are available on the room WebSocket.
type SessionsHandler struct {
	DB     *sql.DB
	Trades *trade.Service
}

type privateRoomRequest struct {
	With int64 `json:"with"`
}

type selectCardRequest struct {
	CardID int64 `json:"card_id"`
}

type completeRequest struct {
	MyCardID       *int64 `json:"my_card_id"`
	OpponentCardID *int64 `json:"opponent_card_id"`
}

// CreatePrivate handles POST /api/sessions.
func (h *SessionsHandler) CreatePrivate(w http.ResponseWriter, r *http.Request) {
	var req privateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.With <= 0 {
		jsonError(w, http.StatusBadRequest, "counterpart required")
		return
	}

	claims := GetClaims(r.Context())
	session, err := h.Trades.CreatePrivateRoom(r.Context(), claims.UserID, req.With)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, session)
}

// List handles GET /api/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	status := model.SessionStatus(r.URL.Query().Get("status"))
	sessions, err := h.Trades.ListSessions(r.Context(), claims.UserID, status)
	if err != nil {
		tradeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.TradeSession{}
	}
	jsonResponse(w, http.StatusOK, sessions)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	session, err := h.Trades.GetSession(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// GetByRoom handles GET /api/rooms/{code}.
func (h *SessionsHandler) GetByRoom(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	session, err := h.Trades.SessionForRoom(r.Context(), r.PathValue("code"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Select handles POST /api/sessions/{id}/select.
func (h *SessionsHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectCardRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CardID <= 0 {
		jsonError(w, http.StatusBadRequest, "card_id required")
		return
	}

	claims := GetClaims(r.Context())
	session, err := h.Trades.SelectCard(r.Context(), r.PathValue("id"), claims.UserID, req.CardID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Complete handles POST /api/sessions/{id}/complete. A recorded confirmation
// that still waits for the other party answers 202.
func (h *SessionsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	// An empty body carries no expectation.
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var expect *trade.Expectation
	if req.MyCardID != nil || req.OpponentCardID != nil {
		if req.MyCardID == nil || req.OpponentCardID == nil {
			jsonError(w, http.StatusBadRequest, "my_card_id and opponent_card_id go together")
			return
		}
		expect = &trade.Expectation{MyCardID: *req.MyCardID, OpponentCardID: *req.OpponentCardID}
	}

	claims := GetClaims(r.Context())
	result, err := h.Trades.Complete(r.Context(), r.PathValue("id"), claims.UserID, expect)
	if err != nil {
		tradeError(w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == trade.OutcomeWaiting {
		status = http.StatusAccepted
	}
	jsonResponse(w, status, result)
}

// Reject handles POST /api/sessions/{id}/reject.
func (h *SessionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	session, err := h.Trades.RejectSession(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// History handles GET /api/trades, the caller's settled swaps.
func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	trades, err := store.ListTrades(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list trades", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	jsonResponse(w, http.StatusOK, trades)
}
