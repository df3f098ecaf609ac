package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/menjava/internal/trade"
)

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	ExistingID string `json:"existing_id,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

var codeStatus = map[string]int{
	trade.CodeNotFound:              http.StatusNotFound,
	trade.CodeForbidden:             http.StatusForbidden,
	trade.CodeInvalidState:          http.StatusConflict,
	trade.CodeDuplicateRequest:      http.StatusConflict,
	trade.CodeSelectionChanged:      http.StatusConflict,
	trade.CodeValueDiffTooHigh:      http.StatusUnprocessableEntity,
	trade.CodeCardNotAllowed:        http.StatusUnprocessableEntity,
	trade.CodeRequestedCardMismatch: http.StatusUnprocessableEntity,
	trade.CodeBothMustSelect:        http.StatusUnprocessableEntity,
	trade.CodeInvalidOfferedCard:    http.StatusUnprocessableEntity,
	trade.CodeCardNotOwned:          http.StatusUnprocessableEntity,
	trade.CodeSelfTrade:             http.StatusBadRequest,
	trade.CodeMissingCard:           http.StatusBadRequest,
	trade.CodeInvalidPrice:          http.StatusBadRequest,
}

// tradeError writes a trade service error with its wire code. Errors outside
// the trade taxonomy are logged and reported as internal.
func tradeError(w http.ResponseWriter, err error) {
	code := trade.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		slog.Error("trade operation failed", "error", err)
		jsonResponse(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: trade.CodeInternal})
		return
	}

	body := errorBody{Error: err.Error(), Code: code}
	var dup *trade.DuplicateRequestError
	if errors.As(err, &dup) {
		body.ExistingID = dup.ExistingID
	}
	jsonResponse(w, status, body)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses a numeric path parameter, writing a 400 if it is invalid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryID parses an optional numeric query parameter. Zero means absent.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
