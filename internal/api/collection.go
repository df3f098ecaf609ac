package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/menjava/internal/catalog"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// CollectionHandler handles the caller's card collection and the market of
// cards other users flagged for trade.
type CollectionHandler struct {
	DB      *sql.DB
	Catalog *catalog.Catalog
}

type addCardRequest struct {
	CardID   int64 `json:"card_id"`
	Quantity int   `json:"quantity"`
	ForTrade bool  `json:"for_trade"`
}

type updateHoldingRequest struct {
	ForTrade *bool `json:"for_trade"`
	Delta    *int  `json:"delta"`
}

// List handles GET /api/collection.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	holdings, err := store.ListCollection(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list collection", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list collection")
		return
	}
	if holdings == nil {
		holdings = []model.Ownership{}
	}
	jsonResponse(w, http.StatusOK, holdings)
}

// Add handles POST /api/collection.
func (h *CollectionHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CardID <= 0 {
		jsonError(w, http.StatusBadRequest, "card_id required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		jsonError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	card, err := h.Catalog.Card(r.Context(), req.CardID)
	if err != nil {
		slog.Error("failed to get card", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to add card")
		return
	}
	if card == nil {
		jsonError(w, http.StatusNotFound, "card not found")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.AddToCollection(r.Context(), h.DB, claims.UserID, req.CardID, req.Quantity, req.ForTrade); err != nil {
		slog.Error("failed to add card to collection", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to add card")
		return
	}

	slog.Info("card added to collection", "user", claims.Username, "card", card.Name, "quantity", req.Quantity)
	h.respondHolding(w, r, claims.UserID, req.CardID, http.StatusCreated)
}

// Update handles PUT /api/collection/{card_id}. It flips the for-trade flag,
// corrects the quantity, or both.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "card_id")
	if !ok {
		return
	}

	var req updateHoldingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ForTrade == nil && req.Delta == nil {
		jsonError(w, http.StatusBadRequest, "for_trade or delta required")
		return
	}

	claims := GetClaims(r.Context())

	if req.Delta != nil && *req.Delta != 0 {
		err := store.AdjustCollection(r.Context(), h.DB, claims.UserID, cardID, *req.Delta)
		if errors.Is(err, store.ErrInsufficientQuantity) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			slog.Error("failed to adjust collection", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to adjust collection")
			return
		}
		slog.Info("collection adjusted", "user", claims.Username, "card_id", cardID, "delta", *req.Delta)
	}

	if req.ForTrade != nil {
		found, err := store.SetForTrade(r.Context(), h.DB, claims.UserID, cardID, *req.ForTrade)
		if err != nil {
			slog.Error("failed to update for_trade flag", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update holding")
			return
		}
		if !found {
			jsonError(w, http.StatusNotFound, "card not in collection")
			return
		}
	}

	h.respondHolding(w, r, claims.UserID, cardID, http.StatusOK)
}

// Market handles GET /api/market. It lists holdings of other users that are
// flagged for trade, optionally narrowed to one card.
func (h *CollectionHandler) Market(w http.ResponseWriter, r *http.Request) {
	cardID, ok := queryID(w, r, "card_id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	listings, err := store.ListMarket(r.Context(), h.DB, claims.UserID, cardID)
	if err != nil {
		slog.Error("failed to list market", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list market")
		return
	}
	if listings == nil {
		listings = []model.Ownership{}
	}
	jsonResponse(w, http.StatusOK, listings)
}

// respondHolding writes the caller's current holding of a card. A holding
// that was adjusted down to zero is reported with quantity 0.
func (h *CollectionHandler) respondHolding(w http.ResponseWriter, r *http.Request, userID, cardID int64, status int) {
	holding, err := store.GetOwnership(r.Context(), h.DB, userID, cardID)
	if err != nil {
		slog.Error("failed to get holding", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get holding")
		return
	}
	if holding == nil {
		holding = &model.Ownership{UserID: userID, CardID: cardID}
	}
	jsonResponse(w, status, holding)
}
