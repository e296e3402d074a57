package models

// Request bodies for the banking and auth endpoints. Amounts are whole
// currency units.

type DepositRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=bank card cash"`
	Detail string `json:"detail" validate:"max=200"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type TransferRequest struct {
	TargetAccount string `json:"targetAccount" validate:"required,max=64"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
