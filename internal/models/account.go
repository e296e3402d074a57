package models

import (
	"time"
)

// Account holds the ledger state for one account: the current balance and
// a version counter for optimistic locking. The movement log lives in its
// own table and is loaded separately.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Balance   int64     `json:"balance" db:"balance"` // whole currency units, never negative
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
