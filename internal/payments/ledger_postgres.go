package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PostgresLedger persists withdrawable balances. Amounts are NUMERIC(78,0)
// so full 256-bit values round-trip without loss.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) CreditBatch(ctx context.Context, credits []Credit) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit batch: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO balances (account, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
	`
	for _, c := range credits {
		if c.Amount == nil || c.Amount.Sign() == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, c.Account.Hex(), c.Amount.String()); err != nil {
			return fmt.Errorf("credit %s: %w", c.Account.Hex(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit batch: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount string
	err := l.db.QueryRowContext(ctx,
		`SELECT amount::text FROM balances WHERE account = $1`, account.Hex(),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	return parseAmount(amount)
}

func (l *PostgresLedger) Withdraw(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount string
	err := l.db.QueryRowContext(ctx,
		`DELETE FROM balances WHERE account = $1 RETURNING amount::text`, account.Hex(),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("withdraw balance: %w", err)
	}
	return parseAmount(amount)
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed balance amount %q", s)
	}
	return amount, nil
}
