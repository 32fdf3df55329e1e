// Package exchange implements the donation reservation engine: intake,
// approval, reservation, and handover of donated study materials, with the
// record-level roll-up kept consistent with its items inside every mutation.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"koon/internal/docstore"
	"koon/internal/utils"
	"koon/pkg/types"

	"github.com/sirupsen/logrus"
)

const collectionMaterials = "materialDonations"

type Service struct {
	store  docstore.Store
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(store docstore.Store, logger *logrus.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

type event string

const (
	eventApprove  event = "approve"
	eventRevert   event = "revert"
	eventReserve  event = "reserve"
	eventCancel   event = "cancel"
	eventHandover event = "handover"
)

var transitions = map[event]struct{ from, to types.ItemStatus }{
	eventApprove:  {types.ItemStatusPending, types.ItemStatusApproved},
	eventRevert:   {types.ItemStatusApproved, types.ItemStatusPending},
	eventReserve:  {types.ItemStatusApproved, types.ItemStatusReserved},
	eventCancel:   {types.ItemStatusReserved, types.ItemStatusApproved},
	eventHandover: {types.ItemStatusReserved, types.ItemStatusCompleted},
}

// Records returns all donation records, newest first, decoded to canonical
// form. Records that fail to decode are logged and skipped from the view
// but stay in storage.
func (s *Service) Records(ctx context.Context) ([]*types.DonationRecord, error) {
	docs, err := s.store.List(ctx, collectionMaterials)
	if err != nil {
		return nil, utils.WrapError(err, "failed to list donation records")
	}

	records := make([]*types.DonationRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := DecodeRecord(doc.ID, doc.Data, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			s.logger.WithError(err).WithField("record_id", doc.ID).Warn("skipping undecodable donation record")
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// ListItems returns the flattened per-item view the admin console renders.
func (s *Service) ListItems(ctx context.Context) ([]types.ListedItem, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(records), nil
}

func (s *Service) Record(ctx context.Context, recordID string) (*types.DonationRecord, error) {
	doc, err := s.store.Get(ctx, collectionMaterials, recordID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, types.ErrRecordNotFound
	}
	if err != nil {
		return nil, utils.WrapErrorf(err, "failed to get donation record %s", recordID)
	}

	return DecodeRecord(recordID, doc.Data, doc.CreatedAt, doc.UpdatedAt)
}

type NewItem struct {
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
	Notes       string `form:"notes" json:"notes"`
}

type CreateRecordInput struct {
	DonorName      string    `form:"donorName" json:"donorName"`
	DonorPhone     string    `form:"donorPhone" json:"donorPhone"`
	DonorEmail     string    `form:"donorEmail" json:"donorEmail"`
	DonorStudentID string    `form:"donorStudentId" json:"donorStudentId"`
	Items          []NewItem `form:"items" json:"items"`
}

// CreateRecord performs donation intake. Every item starts pending.
func (s *Service) CreateRecord(ctx context.Context, input CreateRecordInput) (*types.DonationRecord, error) {
	input.DonorName = strings.TrimSpace(input.DonorName)
	input.DonorPhone = strings.TrimSpace(input.DonorPhone)

	if input.DonorName == "" || input.DonorPhone == "" || len(input.Items) == 0 {
		return nil, types.ErrInvalidRecord
	}

	now := s.now()
	rec := &types.DonationRecord{
		ID:             utils.NanoID(),
		DonorName:      input.DonorName,
		DonorPhone:     input.DonorPhone,
		DonorEmail:     strings.TrimSpace(input.DonorEmail),
		DonorStudentID: strings.TrimSpace(input.DonorStudentID),
		Items:          make([]types.MaterialItem, 0, len(input.Items)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, in := range input.Items {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, types.ErrInvalidRecord
		}
		rec.Items = append(rec.Items, types.MaterialItem{
			ID:          utils.ItemID(),
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Notes:       strings.TrimSpace(in.Notes),
			Status:      types.ItemStatusPending,
		})
	}

	rec.AggregateStatus = Reduce(rec.Items)

	data, err := EncodeRecord(rec)
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Put(ctx, collectionMaterials, rec.ID, data)
	})
	if err != nil {
		return nil, s.mapStoreErr(err, "failed to create donation record")
	}

	return rec, nil
}

// DeleteRecord removes a whole donation record.
func (s *Service) DeleteRecord(ctx context.Context, recordID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, collectionMaterials, recordID); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return types.ErrRecordNotFound
			}
			return err
		}
		return tx.Delete(ctx, collectionMaterials, recordID)
	})

	return s.mapStoreErr(err, "failed to delete donation record")
}

// RemoveItem deletes a single item. Handed-over items are immutable, and a
// record whose last item goes is deleted in the same transaction: zero-item
// records must not exist.
func (s *Service) RemoveItem(ctx context.Context, recordID, itemID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		rec, err := s.readRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}

		idx := findItem(rec.Items, itemID)
		if idx < 0 {
			return types.ErrItemNotFound
		}
		if rec.Items[idx].Status == types.ItemStatusCompleted {
			return types.ErrItemCompleted
		}

		rec.Items = append(rec.Items[:idx], rec.Items[idx+1:]...)
		if len(rec.Items) == 0 {
			return tx.Delete(ctx, collectionMaterials, recordID)
		}

		rec.AggregateStatus = Reduce(rec.Items)
		data, err := EncodeRecord(rec)
		if err != nil {
			return err
		}
		return tx.Put(ctx, collectionMaterials, recordID, data)
	})

	return s.mapStoreErr(err, "failed to remove item")
}

func (s *Service) Approve(ctx context.Context, recordID, itemID string) (*types.DonationRecord, error) {
	return s.transition(ctx, recordID, itemID, eventApprove, nil)
}

func (s *Service) Revert(ctx context.Context, recordID, itemID string) (*types.DonationRecord, error) {
	return s.transition(ctx, recordID, itemID, eventRevert, nil)
}

// Reserve books an approved item for a taker through the self-service path.
// The donor-priority flag is resolved before the transaction; it decorates
// the reservation for display and never blocks anyone.
func (s *Service) Reserve(ctx context.Context, recordID, itemID string, taker types.TakerInfo) (*types.DonationRecord, error) {
	return s.reserve(ctx, recordID, itemID, taker, false)
}

// ManualReserve is the admin override for ad-hoc and offline handovers. It
// bypasses whatever priority or quota rules the self-service site applies;
// administrators are trusted to use judgment.
func (s *Service) ManualReserve(ctx context.Context, recordID, itemID string, taker types.TakerInfo) (*types.DonationRecord, error) {
	return s.reserve(ctx, recordID, itemID, taker, true)
}

func (s *Service) reserve(ctx context.Context, recordID, itemID string, taker types.TakerInfo, manual bool) (*types.DonationRecord, error) {
	taker.Name = strings.TrimSpace(taker.Name)
	taker.Phone = strings.TrimSpace(taker.Phone)
	if taker.Name == "" || taker.Phone == "" {
		return nil, types.ErrTakerRequired
	}

	taker.IsManual = manual
	taker.IsDonor = false

	if taker.StudentID != "" {
		isDonor, err := s.IsDonor(ctx, taker.StudentID)
		if err != nil {
			// Display-only decoration; the reservation proceeds without it.
			s.logger.WithError(err).WithField("student_id", taker.StudentID).Warn("donor priority lookup failed")
		} else {
			taker.IsDonor = isDonor
		}
	}

	return s.transition(ctx, recordID, itemID, eventReserve, &taker)
}

func (s *Service) Cancel(ctx context.Context, recordID, itemID string) (*types.DonationRecord, error) {
	return s.transition(ctx, recordID, itemID, eventCancel, nil)
}

func (s *Service) Handover(ctx context.Context, recordID, itemID string) (*types.DonationRecord, error) {
	return s.transition(ctx, recordID, itemID, eventHandover, nil)
}

// transition applies one state-machine event to one item: re-read inside
// the transaction, mutate by stable id, reduce the roll-up, commit both
// atomically.
func (s *Service) transition(ctx context.Context, recordID, itemID string, ev event, taker *types.TakerInfo) (*types.DonationRecord, error) {
	var updated *types.DonationRecord

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		rec, err := s.readRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}

		idx := findItem(rec.Items, itemID)
		if idx < 0 {
			return types.ErrItemNotFound
		}

		if err := applyTransition(&rec.Items[idx], ev, taker, s.now()); err != nil {
			return err
		}

		rec.AggregateStatus = Reduce(rec.Items)
		rec.UpdatedAt = s.now()

		data, err := EncodeRecord(rec)
		if err != nil {
			return err
		}

		updated = rec
		return tx.Put(ctx, collectionMaterials, recordID, data)
	})
	if err != nil {
		return nil, s.mapStoreErr(err, fmt.Sprintf("failed to %s item", ev))
	}

	s.logger.WithFields(logrus.Fields{
		"record_id": recordID,
		"item_id":   itemID,
		"event":     string(ev),
	}).Info("item transition applied")

	return updated, nil
}

func applyTransition(item *types.MaterialItem, ev event, taker *types.TakerInfo, now time.Time) error {
	if item.Status == types.ItemStatusCompleted {
		return types.ErrItemCompleted
	}

	t, ok := transitions[ev]
	if !ok || item.Status != t.from {
		return fmt.Errorf("%w: cannot %s item in status %q", types.ErrInvalidTransition, ev, item.Status)
	}

	item.Status = t.to

	switch ev {
	case eventReserve:
		taker.ReservedAt = utils.TimePtr(now)
		item.TakerInfo = taker
	case eventCancel, eventRevert:
		// Stale taker data must never survive a cancellation.
		item.TakerInfo = nil
	case eventHandover:
		// Taker retained for record-keeping.
		item.HandedOverAt = utils.TimePtr(now)
	}

	return nil
}

// IsDonor reports whether the student has a donation of their own on record
// with at least one item past review. Used for priority display only.
func (s *Service) IsDonor(ctx context.Context, studentID string) (bool, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return false, err
	}

	for _, rec := range records {
		if rec.DonorStudentID != studentID {
			continue
		}
		for _, item := range rec.Items {
			if item.Status != types.ItemStatusPending {
				return true, nil
			}
		}
	}

	return false, nil
}

// TakerSummary gathers the informational priority and quota view for one
// student. Nothing here enforces a limit.
func (s *Service) TakerSummary(ctx context.Context, studentID string) (*types.TakerSummary, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	summary := &types.TakerSummary{StudentID: studentID}
	for _, rec := range records {
		if rec.DonorStudentID == studentID {
			for _, item := range rec.Items {
				if item.Status != types.ItemStatusPending {
					summary.IsDonor = true
					break
				}
			}
		}
		for _, item := range rec.Items {
			if item.Status.Committed() && item.TakerInfo != nil && item.TakerInfo.StudentID == studentID {
				summary.ReservationCount++
			}
		}
	}

	return summary, nil
}

func (s *Service) readRecord(ctx context.Context, tx docstore.Tx, recordID string) (*types.DonationRecord, error) {
	doc, err := tx.Get(ctx, collectionMaterials, recordID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, types.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return DecodeRecord(recordID, doc.Data, doc.CreatedAt, doc.UpdatedAt)
}

func findItem(items []types.MaterialItem, itemID string) int {
	for i := range items {
		if items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// mapStoreErr converts retry exhaustion into the caller-facing conflict
// error and wraps everything that is not already a domain sentinel.
func (s *Service) mapStoreErr(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, docstore.ErrRetryExhausted) {
		return fmt.Errorf("%w: %s", types.ErrConflict, msg)
	}

	switch {
	case errors.Is(err, types.ErrRecordNotFound),
		errors.Is(err, types.ErrItemNotFound),
		errors.Is(err, types.ErrItemCompleted),
		errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrTakerRequired),
		errors.Is(err, types.ErrInvalidRecord):
		return err
	}

	return utils.WrapError(err, msg)
}
