package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Account is a parent or child in a family. Balance is the cached sum of
// the child's ledger and is what reads use.
type Account struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Balance   int       `json:"balance"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) IsParent() bool { return a.Role == RoleParent }
func (a *Account) IsChild() bool  { return a.Role == RoleChild }

type Subject struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
