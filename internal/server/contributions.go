package server

import (
	"context"
	"net/http"
	"time"

	"koon/pkg/types"

	"github.com/alexedwards/flow"
)

const maxUploadBytes = 10 << 20

func (s *Service) handleListContributions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	contributions, err := s.contributions.Contributions(ctx)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, contributions)
}

func (s *Service) handleContributionStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	status := types.ContributionStatus(r.FormValue("status"))
	if !status.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid contribution status")
		return
	}

	id := flow.Param(r.Context(), "id")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := s.contributions.UpdateStatus(ctx, id, status)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, c)
}

// handleDeleteContribution removes the database record and tries to remove
// the attached media object first. Media deletion is best effort; a
// leftover object is preferable to a contribution that cannot be deleted.
func (s *Service) handleDeleteContribution(w http.ResponseWriter, r *http.Request) {
	id := flow.Param(r.Context(), "id")

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	c, err := s.contributions.Contribution(ctx, id)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	if c.MediaPublicID != "" {
		if err := s.media.Delete(ctx, c.MediaPublicID); err != nil {
			s.logger.WithError(err).WithField("public_id", c.MediaPublicID).Warn("failed to delete media object")
		}
	}

	if err := s.contributions.Delete(ctx, id); err != nil {
		s.respondDomainErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	folder := r.FormValue("folder")
	if folder == "" {
		folder = s.config.MediaFolder
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := s.media.Upload(ctx, file, header.Filename, header.Header.Get("Content-Type"), folder)
	if err != nil {
		s.logger.WithError(err).Error("failed to upload media")
		s.respondError(w, http.StatusBadGateway, "upload failed")
		return
	}

	s.respondJSON(w, http.StatusCreated, result)
}
