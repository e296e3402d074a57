// Package money computes commissions for ledger operations. Amounts are
// whole currency units held in int64; commissions are rounded half-up.
package money

import "math"

// Deposit/transfer channel tags. These drive the commission rate lookup
// at transaction-creation time and are stored on the movement record.
const (
	MethodBank     = "bank"
	MethodCard     = "card"
	MethodCash     = "cash"
	MethodTransfer = "transfer"
)

// Commission rates per channel. The canonical table: bank deposits 1%,
// card deposits 2.5%, cash deposits 0.5%, transfers 0.5%.
var rates = map[string]float64{
	MethodBank:     0.01,
	MethodCard:     0.025,
	MethodCash:     0.005,
	MethodTransfer: 0.005,
}

var formatted = map[string]string{
	MethodBank:     "1%",
	MethodCard:     "2.5%",
	MethodCash:     "0.5%",
	MethodTransfer: "0.5%",
}

// Rate returns the commission rate for a channel. Unknown channels carry
// rate 0 rather than failing the operation.
func Rate(method string) float64 {
	return rates[method]
}

// Commission returns the fee for the given gross amount and channel,
// rounded to the nearest whole currency unit (half away from zero).
func Commission(amount int64, method string) int64 {
	return int64(math.Round(float64(amount) * Rate(method)))
}

// Net returns the amount credited after deducting the channel commission.
func Net(amount int64, method string) int64 {
	return amount - Commission(amount, method)
}

// DepositMethod reports whether method is an accepted deposit channel.
func DepositMethod(method string) bool {
	switch method {
	case MethodBank, MethodCard, MethodCash:
		return true
	}
	return false
}

// Rates returns the rate table alongside display strings, for the
// commission-rates endpoint.
func Rates() map[string]any {
	out := make(map[string]float64, len(rates))
	for m, r := range rates {
		out[m] = r
	}
	return map[string]any{
		"rates":     out,
		"formatted": formatted,
	}
}
