package exchange

import (
	"encoding/json"
	"fmt"
	"time"

	"koon/pkg/types"
)

// The stored shape of a donation record drifted across three generations of
// the submission form: a flat single-item record, an array of bare strings,
// and the canonical array of item objects. Everything past this file only
// ever sees canonical records; the raw shapes are resolved here, once.

type rawRecord struct {
	DonorName      string `json:"donorName"`
	DonorPhone     string `json:"donorPhone"`
	DonorEmail     string `json:"donorEmail"`
	DonorStudentID string `json:"donorStudentId"`

	// Aliases written by the earliest submission form.
	StudentName string `json:"studentName"`
	PhoneNumber string `json:"phoneNumber"`
	ContactInfo string `json:"contactInfo"`
	StudentID   string `json:"studentId"`

	// Flat single-item fields, present only on records predating the
	// items array.
	ItemName  string           `json:"itemName"`
	Status    string           `json:"status"`
	TakerInfo *types.TakerInfo `json:"takerInfo"`

	Items json.RawMessage `json:"items"`

	// Same field under its original name.
	Materials json.RawMessage `json:"materials"`

	CreatedAt *time.Time `json:"createdAt"`
}

type rawItem struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Notes        string           `json:"notes"`
	Status       string           `json:"status"`
	TakerInfo    *types.TakerInfo `json:"takerInfo"`
	HandedOverAt *time.Time       `json:"handedOverAt"`
}

// DecodeRecord converts one stored document into a canonical DonationRecord.
// A record whose items field is malformed decodes to zero items: it drops
// out of the flattened view but stays in storage for manual inspection.
func DecodeRecord(id string, data []byte, createdAt, updatedAt time.Time) (*types.DonationRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode donation record %s: %w", id, err)
	}

	rec := &types.DonationRecord{
		ID:             id,
		DonorName:      firstNonEmpty(raw.DonorName, raw.StudentName),
		DonorPhone:     firstNonEmpty(raw.DonorPhone, raw.PhoneNumber, raw.ContactInfo),
		DonorEmail:     raw.DonorEmail,
		DonorStudentID: firstNonEmpty(raw.DonorStudentID, raw.StudentID),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if raw.CreatedAt != nil {
		rec.CreatedAt = *raw.CreatedAt
	}

	rec.Items = decodeItems(id, &raw)
	rec.AggregateStatus = Reduce(rec.Items)

	return rec, nil
}

func decodeItems(recordID string, raw *rawRecord) []types.MaterialItem {
	entries := raw.Items
	if len(entries) == 0 {
		entries = raw.Materials
	}

	// Flat single-item record: the record-level status and taker are
	// authoritative for the one synthesized item. This is the only shape
	// where they are.
	if len(entries) == 0 || string(entries) == "null" {
		if raw.ItemName == "" {
			return nil
		}
		return []types.MaterialItem{{
			ID:        syntheticItemID(recordID, 0),
			Name:      raw.ItemName,
			Status:    itemStatus(raw.Status),
			TakerInfo: raw.TakerInfo,
		}}
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(entries, &parts); err != nil {
		return nil
	}

	items := make([]types.MaterialItem, 0, len(parts))
	for i, part := range parts {
		var name string
		if err := json.Unmarshal(part, &name); err == nil {
			item := types.MaterialItem{
				ID:     syntheticItemID(recordID, i),
				Name:   name,
				Status: legacyStringStatus(raw, len(parts)),
			}
			// A lone string entry is the whole record, so the record-level
			// taker belongs to it, same as the flat single-item shape.
			if len(parts) == 1 && item.Status.Committed() {
				item.TakerInfo = raw.TakerInfo
			}
			items = append(items, item)
			continue
		}

		var entry rawItem
		if err := json.Unmarshal(part, &entry); err != nil || entry.Name == "" {
			return nil
		}

		item := types.MaterialItem{
			ID:           entry.ID,
			Name:         entry.Name,
			Description:  entry.Description,
			Notes:        entry.Notes,
			Status:       itemStatus(entry.Status),
			HandedOverAt: entry.HandedOverAt,
		}
		if item.ID == "" {
			item.ID = syntheticItemID(recordID, i)
		}

		// An item's taker comes strictly from that item. The record-level
		// taker of older data must not leak into siblings.
		if item.Status.Committed() {
			item.TakerInfo = entry.TakerInfo
		}

		items = append(items, item)
	}

	return items
}

// legacyStringStatus resolves the status of a bare-string entry. A lone
// string entry inherits the record-level legacy status; in a multi-item
// array that single status cannot speak for any one entry, so they default
// to pending.
func legacyStringStatus(raw *rawRecord, count int) types.ItemStatus {
	if count > 1 {
		return types.ItemStatusPending
	}
	return itemStatus(raw.Status)
}

func itemStatus(s string) types.ItemStatus {
	status := types.ItemStatus(s)
	if !status.Valid() {
		return types.ItemStatusPending
	}
	return status
}

// syntheticItemID gives items persisted before stable ids a deterministic
// identifier, so a listing and the mutation it triggers agree without an
// intervening write. The first transactional write persists it.
func syntheticItemID(recordID string, index int) string {
	return fmt.Sprintf("%s#%d", recordID, index)
}

// EncodeRecord serializes a canonical record for storage. Identity and
// timestamps live on the document row, not in the payload.
func EncodeRecord(rec *types.DonationRecord) ([]byte, error) {
	payload := map[string]any{
		"donorName":  rec.DonorName,
		"donorPhone": rec.DonorPhone,
		"items":      rec.Items,
		"status":     rec.AggregateStatus,
		"createdAt":  rec.CreatedAt,
	}
	if rec.DonorEmail != "" {
		payload["donorEmail"] = rec.DonorEmail
	}
	if rec.DonorStudentID != "" {
		payload["donorStudentId"] = rec.DonorStudentID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode donation record %s: %w", rec.ID, err)
	}

	return data, nil
}

// Flatten expands records into the per-item rows the admin console lists.
// Records that decoded to zero items contribute nothing.
func Flatten(records []*types.DonationRecord) []types.ListedItem {
	out := make([]types.ListedItem, 0, len(records))
	for _, rec := range records {
		for i := range rec.Items {
			out = append(out, types.ListedItem{
				Item:          rec.Items[i],
				OriginalIndex: i,
				Record:        rec,
			})
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
