package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
	"github.com/erazemk/menjava/internal/trade"
)

// RequestsHandler handles trade request endpoints.
type RequestsHandler struct {
	Trades *trade.Service
}

const maxNoteLength = 1000

type createTradeRequest struct {
	To              int64               `json:"to"`
	RequestedCardID *int64              `json:"requested_card_id"`
	OfferedCardID   *int64              `json:"offered_card_id"`
	OfferedPrice    decimal.NullDecimal `json:"offered_price"`
	TargetPrice     decimal.NullDecimal `json:"target_price"`
	Note            string              `json:"note"`
}

type acceptResponse struct {
	Settled  bool                `json:"settled"`
	RoomCode string              `json:"room_code,omitempty"`
	Session  *model.TradeSession `json:"session,omitempty"`
	Trade    *model.Trade        `json:"trade,omitempty"`
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To <= 0 {
		jsonError(w, http.StatusBadRequest, "recipient required")
		return
	}
	if len(req.Note) > maxNoteLength {
		jsonError(w, http.StatusBadRequest, "note too long")
		return
	}

	claims := GetClaims(r.Context())
	created, err := h.Trades.CreateRequest(r.Context(), claims.UserID, trade.NewRequest{
		To:              req.To,
		RequestedCardID: req.RequestedCardID,
		OfferedCardID:   req.OfferedCardID,
		OfferedPrice:    req.OfferedPrice,
		TargetPrice:     req.TargetPrice,
		Note:            req.Note,
	})
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /api/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if direction != "" && direction != store.DirectionIncoming && direction != store.DirectionOutgoing {
		jsonError(w, http.StatusBadRequest, "invalid direction")
		return
	}
	status := model.RequestStatus(r.URL.Query().Get("status"))

	claims := GetClaims(r.Context())
	requests, err := h.Trades.ListRequests(r.Context(), claims.UserID, direction, status)
	if err != nil {
		tradeError(w, err)
		return
	}
	if requests == nil {
		requests = []model.TradeRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	req, err := h.Trades.GetRequest(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Accept handles POST /api/requests/{id}/accept. A settled quick trade
// answers 200 with the trade; an opened room answers 201 with its code.
func (h *RequestsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	result, err := h.Trades.AcceptRequest(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}

	if result.Settled {
		jsonResponse(w, http.StatusOK, acceptResponse{Settled: true, Trade: result.Trade})
		return
	}
	jsonResponse(w, http.StatusCreated, acceptResponse{
		RoomCode: result.Session.RoomCode,
		Session:  result.Session,
	})
}

// OpenRoom handles POST /api/requests/{id}/room.
func (h *RequestsHandler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	session, err := h.Trades.OpenRoom(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, acceptResponse{RoomCode: session.RoomCode, Session: session})
}

// Reject handles POST /api/requests/{id}/reject.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Trades.RejectRequest(r.Context(), r.PathValue("id"), claims.UserID); err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "request rejected"})
}

// Cancel handles POST /api/requests/{id}/cancel.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Trades.CancelRequest(r.Context(), r.PathValue("id"), claims.UserID); err != nil {
		tradeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "request cancelled"})
}
