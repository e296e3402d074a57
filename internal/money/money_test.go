package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		method string
		want   int64
	}{
		{"bank deposit 1%", 1000, MethodBank, 10},
		{"card deposit 2.5%", 1000, MethodCard, 25},
		{"cash deposit 0.5%", 1000, MethodCash, 5},
		{"transfer 0.5%", 100, MethodTransfer, 1}, // 0.5 rounds up
		{"transfer larger amount", 2000, MethodTransfer, 10},
		{"rounds half up", 60, MethodCash, 0}, // 0.3 rounds down
		{"unknown method is free", 1000, "crypto", 0},
		{"empty method is free", 1000, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Commission(tt.amount, tt.method))
		})
	}
}

func TestNet(t *testing.T) {
	assert.Equal(t, int64(975), Net(1000, MethodCard))
	assert.Equal(t, int64(990), Net(1000, MethodBank))
	assert.Equal(t, int64(1000), Net(1000, "unknown"))
}

func TestDepositMethod(t *testing.T) {
	assert.True(t, DepositMethod(MethodBank))
	assert.True(t, DepositMethod(MethodCard))
	assert.True(t, DepositMethod(MethodCash))
	assert.False(t, DepositMethod(MethodTransfer))
	assert.False(t, DepositMethod("wire"))
}

func TestRates(t *testing.T) {
	r := Rates()
	rates, ok := r["rates"].(map[string]float64)
	assert.True(t, ok)
	assert.Equal(t, 0.025, rates[MethodCard])
	assert.Len(t, rates, 4)
}
