package types

import (
	"time"
)

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusApproved  ItemStatus = "approved"
	ItemStatusReserved  ItemStatus = "reserved"
	ItemStatusCompleted ItemStatus = "completed"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusApproved, ItemStatusReserved, ItemStatusCompleted:
		return true
	}
	return false
}

// Committed reports whether the item is spoken for from the donor's
// perspective, i.e. a taker holds it or already received it.
func (s ItemStatus) Committed() bool {
	return s == ItemStatusReserved || s == ItemStatusCompleted
}

type AggregateStatus string

const (
	AggregateStatusApproved AggregateStatus = "approved"
	AggregateStatusReserved AggregateStatus = "reserved"
)

// TakerInfo identifies the student who reserved or received an item.
type TakerInfo struct {
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	StudentID  string     `json:"studentId,omitempty"`
	ReservedAt *time.Time `json:"reservedAt,omitempty"`
	IsManual   bool       `json:"isManual,omitempty"`
	IsDonor    bool       `json:"isDonor,omitempty"`
}

// MaterialItem is one distinct material offered within a donation record.
// Items carry their own lifecycle status; siblings within a record are
// independent of each other.
type MaterialItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Status       ItemStatus `json:"status"`
	TakerInfo    *TakerInfo `json:"takerInfo,omitempty"`
	HandedOverAt *time.Time `json:"handedOverAt,omitempty"`
}

// DonationRecord is one donor submission. AggregateStatus is derived from
// the items and recomputed on every item mutation; it is never edited
// directly.
type DonationRecord struct {
	ID              string          `json:"id"`
	DonorName       string          `json:"donorName"`
	DonorPhone      string          `json:"donorPhone"`
	DonorEmail      string          `json:"donorEmail,omitempty"`
	DonorStudentID  string          `json:"donorStudentId,omitempty"`
	Items           []MaterialItem  `json:"items"`
	AggregateStatus AggregateStatus `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ListedItem is one row of the flattened admin view: a single item plus
// the record it belongs to and its position within that record's array as
// stored.
type ListedItem struct {
	Item          MaterialItem    `json:"item"`
	OriginalIndex int             `json:"originalIndex"`
	Record        *DonationRecord `json:"record"`
}

// TakerSummary is the informational priority/quota view for a student.
// Nothing enforces the quota; the admin console only displays it.
type TakerSummary struct {
	StudentID        string `json:"studentId"`
	IsDonor          bool   `json:"isDonor"`
	ReservationCount int    `json:"reservationCount"`
}
