package model

import "time"

type Kind string

const (
	KindHomework Kind = "homework"
	KindTask     Kind = "task"
)

func (k Kind) Valid() bool {
	return k == KindHomework || k == KindTask
}

type CreationState string

const (
	CreationPending  CreationState = "pending"
	CreationApproved CreationState = "approved"
)

type CompletionState string

const (
	CompletionNotStarted CompletionState = "not_started"
	CompletionCompleted  CompletionState = "completed"
)

// ReviewState is the parent's verdict on a completion. Rejected is not
// terminal: the item goes back to not_started and may be submitted again.
type ReviewState string

const (
	ReviewNone     ReviewState = "none"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
)

// Assignment is a homework item or a task owned by one child.
type Assignment struct {
	ID                    int64           `json:"id"`
	Kind                  Kind            `json:"kind"`
	OwnerChildID          int64           `json:"owner_child_id"`
	FamilyID              int64           `json:"family_id"`
	Name                  string          `json:"name"`
	SubjectID             *int64          `json:"subject_id,omitempty"`
	SubjectName           string          `json:"subject_name,omitempty"`
	ScheduledFor          time.Time       `json:"scheduled_for"`
	ScheduledDate         Date            `json:"scheduled_date"`
	// Deadline is shown to the child only. The daily bonus cutoff is the
	// family's BonusDeadline.
	Deadline              *TimeOfDay      `json:"deadline,omitempty"`
	RewardPoints          int             `json:"reward_points"`
	IncorrectCount        *int            `json:"incorrect_count,omitempty"`
	CreationReviewState   CreationState   `json:"creation_review_state"`
	CompletionState       CompletionState `json:"completion_state"`
	CompletionReviewState ReviewState     `json:"completion_review_state"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	ReviewedAt            *time.Time      `json:"reviewed_at,omitempty"`
	ReviewerID            *int64          `json:"reviewer_id,omitempty"`
	CreatedBy             int64           `json:"created_by"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (a *Assignment) IsHomework() bool {
	return a.Kind == KindHomework
}

// Approved reports whether the completion has been approved. Once true,
// nothing reward-related on the assignment changes again.
func (a *Assignment) Approved() bool {
	return a.CompletionReviewState == ReviewApproved
}
