package model

import "time"

type Family struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Timezone      string     `json:"timezone"`
	BonusEnabled  bool       `json:"bonus_enabled"`
	BonusDeadline *TimeOfDay `json:"bonus_deadline"`
	BonusAmount   int        `json:"bonus_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Location returns the family's time zone, or fallback when none is set or
// the name is unknown.
func (f *Family) Location(fallback *time.Location) *time.Location {
	if f.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// BonusConfigured reports whether the daily homework bonus can be paid at all.
func (f *Family) BonusConfigured() bool {
	return f.BonusEnabled && f.BonusAmount > 0 && f.BonusDeadline != nil
}
