package model

import "time"

type SourceType string

const (
	SourceHomework    SourceType = "homework"
	SourceTask        SourceType = "task"
	SourceFamilyBonus SourceType = "family_bonus"
)

// SourceFor maps an assignment kind to the ledger source that credits it.
func SourceFor(k Kind) SourceType {
	if k == KindHomework {
		return SourceHomework
	}
	return SourceTask
}

// LedgerEntry is one append-only row of a child's points history.
// BonusDay is only set for family bonus rows and identifies the calendar
// day the bonus was paid for.
type LedgerEntry struct {
	ID          int64      `json:"id"`
	ChildID     int64      `json:"child_id"`
	FamilyID    int64      `json:"family_id"`
	SourceType  SourceType `json:"source_type"`
	SourceID    int64      `json:"source_id"`
	Amount      int        `json:"amount"`
	EventDate   time.Time  `json:"event_date"`
	BonusDay    *Date      `json:"bonus_day,omitempty"`
	Description string     `json:"description"`
}

type LedgerAudit struct {
	ChildID    int64 `json:"child_id"`
	Balance    int   `json:"balance"`
	LedgerSum  int   `json:"ledger_sum"`
	Entries    int   `json:"entries"`
	Consistent bool  `json:"consistent"`
}
