package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/davidps79/backend-grupo-13/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps the error taxonomy to HTTP classes. The response
// body carries the violated precondition verbatim from the sentinel.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrEbookNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrReaderNotFound),
		errors.Is(err, database.ErrAuthorNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrTransactionNotFound),
		errors.Is(err, database.ErrWishNotFound),
		errors.Is(err, database.ErrCartItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrDuplicateWish),
		errors.Is(err, database.ErrEbookOwned):
		return http.StatusConflict
	case errors.Is(err, database.ErrGateway):
		return http.StatusBadGateway
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		respondMessage(w, status, "internal error")
		return
	}
	respondMessage(w, status, err.Error())
}
