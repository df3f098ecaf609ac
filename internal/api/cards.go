package api

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/catalog"
	"github.com/erazemk/menjava/internal/model"
)

// CardsHandler handles catalog endpoints.
type CardsHandler struct {
	Catalog *catalog.Catalog
}

type cardRequest struct {
	Name           string                `json:"name"`
	Category       model.Category        `json:"category"`
	Pokemon        *model.PokemonDetails `json:"pokemon"`
	Trainer        *model.TrainerDetails `json:"trainer"`
	Energy         *model.EnergyDetails  `json:"energy"`
	SetCode        string                `json:"set_code"`
	ImageURL       string                `json:"image_url"`
	EstimatedValue decimal.Decimal       `json:"estimated_value"`
}

func (req *cardRequest) card() *model.Card {
	return &model.Card{
		Name:           req.Name,
		Category:       req.Category,
		Pokemon:        req.Pokemon,
		Trainer:        req.Trainer,
		Energy:         req.Energy,
		SetCode:        req.SetCode,
		ImageURL:       req.ImageURL,
		EstimatedValue: req.EstimatedValue,
	}
}

// List handles GET /api/cards.
func (h *CardsHandler) List(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}

	cards, err := h.Catalog.Cards(r.Context(), category, r.URL.Query().Get("name"))
	if err != nil {
		slog.Error("failed to list cards", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}
	if cards == nil {
		cards = []model.Card{}
	}
	jsonResponse(w, http.StatusOK, cards)
}

// Get handles GET /api/cards/{id}.
func (h *CardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	card, err := h.Catalog.Card(r.Context(), id)
	if err != nil {
		slog.Error("failed to get card", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get card")
		return
	}
	if card == nil {
		jsonError(w, http.StatusNotFound, "card not found")
		return
	}
	jsonResponse(w, http.StatusOK, card)
}

// Create handles POST /api/cards.
func (h *CardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card := req.card()
	if err := card.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.Catalog.Create(r.Context(), card)
	if err != nil {
		slog.Error("failed to create card", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create card")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("card created", "user", claims.Username, "card", card.Name, "card_id", card.ID)
	jsonResponse(w, http.StatusCreated, card)
}

// Update handles PUT /api/cards/{id}.
func (h *CardsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card := req.card()
	card.ID = id
	if err := card.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.Catalog.Card(r.Context(), id)
	if err != nil {
		slog.Error("failed to get card", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update card")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "card not found")
		return
	}

	if err := h.Catalog.Update(r.Context(), card); err != nil {
		slog.Error("failed to update card", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update card")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("card updated", "user", claims.Username, "card_id", id,
		"old_value", existing.EstimatedValue.String(), "new_value", card.EstimatedValue.String())

	updated, _ := h.Catalog.Card(r.Context(), id)
	jsonResponse(w, http.StatusOK, updated)
}
