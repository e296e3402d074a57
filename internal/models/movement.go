package models

import (
	"time"
)

// MovementKind classifies a ledger movement.
type MovementKind string

const (
	KindDeposit    MovementKind = "deposit"
	KindWithdrawal MovementKind = "withdrawal"
	KindTransfer   MovementKind = "transfer"
)

// Movement is one immutable entry in an account's ledger. Gross is signed
// from the owning account's point of view (positive inflow, negative
// outflow); Net is the actual balance delta, gross minus commission on the
// debit side. Never mutated after it is appended.
type Movement struct {
	ID           string       `json:"id" db:"id"`
	Kind         MovementKind `json:"kind" db:"kind"`
	Gross        int64        `json:"gross" db:"gross"`
	Commission   int64        `json:"commission" db:"commission"`
	Net          int64        `json:"net" db:"net"`
	Method       string       `json:"method,omitempty" db:"method"`
	Detail       string       `json:"detail,omitempty" db:"detail"`
	Counterparty string       `json:"counterparty,omitempty" db:"counterparty"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}
