package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"koon/pkg/types"
)

func (s *Service) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Service) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainErr maps engine errors onto status codes: missing things are
// 404 (the UI should refresh rather than assume success), rule violations
// are 409, bad input is 400, exhausted write conflicts are 503.
func (s *Service) respondDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrRecordNotFound),
		errors.Is(err, types.ErrItemNotFound),
		errors.Is(err, types.ErrContributionNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrItemCompleted),
		errors.Is(err, types.ErrInvalidTransition):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrTakerRequired),
		errors.Is(err, types.ErrInvalidRecord),
		errors.Is(err, types.ErrSettingInvalid):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrConflict):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithError(err).Error("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
