package asset

import (
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// TokenLedger is an in-memory Settlement implementation. The production
// settlement asset is an external system; this ledger stands in for it in
// tests and single-node dev deployments. Absent accounts read as zero.
type TokenLedger struct {
	mu         sync.RWMutex
	balances   map[uuid.UUID]*big.Int
	allowances map[allowanceKey]*big.Int
}

type allowanceKey struct {
	Owner   uuid.UUID
	Spender uuid.UUID
}

func NewTokenLedger() *TokenLedger {
	return &TokenLedger{
		balances:   make(map[uuid.UUID]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (tl *TokenLedger) BalanceOf(account uuid.UUID) *big.Int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	if b, ok := tl.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (tl *TokenLedger) Allowance(owner, spender uuid.UUID) *big.Int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	if a, ok := tl.allowances[allowanceKey{Owner: owner, Spender: spender}]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Approve sets spender's allowance over owner's balance (overwrite, not add).
func (tl *TokenLedger) Approve(owner, spender uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.allowances[allowanceKey{Owner: owner, Spender: spender}] = new(big.Int).Set(amount)
	return nil
}

// Mint credits newly issued units to an account. Dev/test faucet only;
// issuance policy is out of scope for the ledger itself.
func (tl *TokenLedger) Mint(account uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.credit(account, amount)
	return nil
}

func (tl *TokenLedger) Transfer(from, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.move(from, to, amount)
}

func (tl *TokenLedger) TransferFrom(spender, owner, recipient uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()

	key := allowanceKey{Owner: owner, Spender: spender}
	allowed, ok := tl.allowances[key]
	if !ok || allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}

	if err := tl.move(owner, recipient, amount); err != nil {
		return err
	}
	tl.allowances[key] = new(big.Int).Sub(allowed, amount)
	return nil
}

// move debits from and credits to. Caller holds the write lock.
func (tl *TokenLedger) move(from, to uuid.UUID, amount *big.Int) error {
	balance, ok := tl.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	tl.balances[from] = new(big.Int).Sub(balance, amount)
	tl.credit(to, amount)
	return nil
}

func (tl *TokenLedger) credit(account uuid.UUID, amount *big.Int) {
	if b, ok := tl.balances[account]; ok {
		tl.balances[account] = new(big.Int).Add(b, amount)
	} else {
		tl.balances[account] = new(big.Int).Set(amount)
	}
}
