package asset

import (
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// NativeLedger is an in-memory Native implementation used for collateral
// custody in tests and dev deployments. No allowance surface: native value
// moves only by direct transfer.
type NativeLedger struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]*big.Int
}

func NewNativeLedger() *NativeLedger {
	return &NativeLedger{balances: make(map[uuid.UUID]*big.Int)}
}

func (nl *NativeLedger) BalanceOf(account uuid.UUID) *big.Int {
	nl.mu.RLock()
	defer nl.mu.RUnlock()
	if b, ok := nl.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

// Credit adds native units to an account. Dev/test faucet only.
func (nl *NativeLedger) Credit(account uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if b, ok := nl.balances[account]; ok {
		nl.balances[account] = new(big.Int).Add(b, amount)
	} else {
		nl.balances[account] = new(big.Int).Set(amount)
	}
	return nil
}

func (nl *NativeLedger) Transfer(from, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	nl.mu.Lock()
	defer nl.mu.Unlock()

	balance, ok := nl.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	nl.balances[from] = new(big.Int).Sub(balance, amount)
	if b, ok := nl.balances[to]; ok {
		nl.balances[to] = new(big.Int).Add(b, amount)
	} else {
		nl.balances[to] = new(big.Int).Set(amount)
	}
	return nil
}
