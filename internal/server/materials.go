package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"koon/internal/exchange"
	"koon/pkg/types"

	"github.com/alexedwards/flow"
)

func (s *Service) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	items, err := s.exchange.ListItems(ctx)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, items)
}

func (s *Service) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := s.exchange.Records(ctx)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, records)
}

func (s *Service) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var input exchange.CreateRecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rec, err := s.exchange.CreateRecord(ctx, input)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, rec)
}

func (s *Service) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := flow.Param(r.Context(), "recordID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.exchange.DeleteRecord(ctx, recordID); err != nil {
		s.respondDomainErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	recordID := flow.Param(r.Context(), "recordID")
	itemID := flow.Param(r.Context(), "itemID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.exchange.RemoveItem(ctx, recordID, itemID); err != nil {
		s.respondDomainErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleApproveItem(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.exchange.Approve)
}

func (s *Service) handleRevertItem(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.exchange.Revert)
}

func (s *Service) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.exchange.Cancel)
}

func (s *Service) handleHandoverItem(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.exchange.Handover)
}

func (s *Service) handleTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, recordID, itemID string) (*types.DonationRecord, error),
) {
	recordID := flow.Param(r.Context(), "recordID")
	itemID := flow.Param(r.Context(), "itemID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rec, err := op(ctx, recordID, itemID)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

type reserveForm struct {
	Name      string `form:"name"`
	Phone     string `form:"phone"`
	StudentID string `form:"studentId"`
}

// handleReserveItem is the admin's manual reservation path, covering phone
// requests and walk-ins. Self-service reservations go through the public
// site, not this console.
func (s *Service) handleReserveItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	var input reserveForm
	if err := decoder.Decode(&input, r.Form); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	recordID := flow.Param(r.Context(), "recordID")
	itemID := flow.Param(r.Context(), "itemID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rec, err := s.exchange.ManualReserve(ctx, recordID, itemID, types.TakerInfo{
		Name:      input.Name,
		Phone:     input.Phone,
		StudentID: input.StudentID,
	})
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Service) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	setting, err := s.exchange.Phase(ctx)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, setting)
}

func (s *Service) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	setting, err := s.exchange.SetPhase(ctx, types.ExchangePhase(r.FormValue("phase")))
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, setting)
}

func (s *Service) handleTakerSummary(w http.ResponseWriter, r *http.Request) {
	studentID := flow.Param(r.Context(), "studentID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	summary, err := s.exchange.TakerSummary(ctx, studentID)
	if err != nil {
		s.respondDomainErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}
