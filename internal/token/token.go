// Package token defines the settlement token consumed by the ledger services
// and provides an in-memory implementation for tests and local development.
// The production token is an external collaborator behind this interface.
package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/errors"
)

// SettlementToken is the fungible balance ledger all components settle against
type SettlementToken interface {
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// MemoryToken is a mutex-guarded in-memory settlement token
type MemoryToken struct {
	mu         sync.RWMutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewMemoryToken creates an empty in-memory settlement token
func NewMemoryToken() *MemoryToken {
	return &MemoryToken{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits freshly created balance to an address. Test/dev only; the
// production token mints on its own domain.
func (t *MemoryToken) Mint(addr common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[addr] = new(big.Int).Add(t.balanceLocked(addr), amount)
}

// BalanceOf returns the current balance of addr
func (t *MemoryToken) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balanceLocked(addr)), nil
}

// Transfer moves amount from one address to another
func (t *MemoryToken) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	balance := t.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return errors.NewInsufficientBalanceError(amount.String(), balance.String())
	}

	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	return nil
}

// TransferFrom moves amount using spender's allowance over from's balance
func (t *MemoryToken) TransferFrom(_ context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowanceLocked(from, spender)
	if allowance.Cmp(amount) < 0 {
		return errors.NewInsufficientAllowanceError(amount.String(), allowance.String())
	}

	balance := t.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return errors.NewInsufficientBalanceError(amount.String(), balance.String())
	}

	t.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	return nil
}

// Approve sets spender's allowance over owner's balance
func (t *MemoryToken) Approve(_ context.Context, owner, spender common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns spender's remaining allowance over owner's balance
func (t *MemoryToken) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.allowanceLocked(owner, spender)), nil
}

func (t *MemoryToken) balanceLocked(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *MemoryToken) allowanceLocked(owner, spender common.Address) *big.Int {
	if byOwner, ok := t.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.NewInvalidAmountError("amount")
	}
	return nil
}
