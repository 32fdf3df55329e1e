package types

import "time"

type ContributionStatus string

const (
	ContributionStatusPending  ContributionStatus = "pending"
	ContributionStatusApproved ContributionStatus = "approved"
	ContributionStatusRejected ContributionStatus = "rejected"
)

func (s ContributionStatus) Valid() bool {
	switch s {
	case ContributionStatusPending, ContributionStatusApproved, ContributionStatusRejected:
		return true
	}
	return false
}

// Contribution is a student-submitted study file (quiz, notes, past exam)
// awaiting admin review before it appears on the public site.
type Contribution struct {
	ID            string             `json:"id"`
	StudentName   string             `json:"studentName"`
	Email         string             `json:"email,omitempty"`
	Subject       string             `json:"subject,omitempty"`
	Title         string             `json:"title"`
	FileURL       string             `json:"fileUrl,omitempty"`
	MediaPublicID string             `json:"mediaPublicId,omitempty"`
	Status        ContributionStatus `json:"status"`
	ApprovedAt    *time.Time         `json:"approvedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}
