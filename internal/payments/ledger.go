package payments

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Credit is one ledger entry: amount owed to an account.
type Credit struct {
	Account common.Address
	Amount  *big.Int
}

// Ledger is the pull-payment store. Registration credits recipients here
// instead of pushing value to them mid-operation; recipients withdraw later.
type Ledger interface {
	// CreditBatch applies all credits atomically. Zero-amount credits are
	// dropped.
	CreditBatch(ctx context.Context, credits []Credit) error
	// Balance reports the withdrawable amount for an account.
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	// Withdraw zeroes the account's balance and returns what was held.
	Withdraw(ctx context.Context, account common.Address) (*big.Int, error)
}

// MemoryLedger keeps balances in process. Used by tests and dev mode.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]*big.Int)}
}

func (l *MemoryLedger) CreditBatch(_ context.Context, credits []Credit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range credits {
		if c.Amount == nil || c.Amount.Sign() == 0 {
			continue
		}
		bal, ok := l.balances[c.Account]
		if !ok {
			bal = new(big.Int)
			l.balances[c.Account] = bal
		}
		bal.Add(bal, c.Amount)
	}
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (l *MemoryLedger) Withdraw(_ context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[account]
	if !ok {
		return new(big.Int), nil
	}
	delete(l.balances, account)
	return bal, nil
}
