package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

// MySQLStore persists the fee vault and the event journal. Amounts are
// stored as decimal strings (uint256 exceeds any MySQL integer type) and
// compared in Go; SELECT ... FOR UPDATE serializes vault read-modify-writes.
//
// Schema:
//
//	CREATE TABLE fee_accruals (
//	    token  CHAR(42) PRIMARY KEY,
//	    amount VARCHAR(78) NOT NULL
//	);
//	CREATE TABLE escrow_events (
//	    seq         BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    id          CHAR(36) NOT NULL,
//	    kind        VARCHAR(32) NOT NULL,
//	    order_id    CHAR(66),
//	    sender      CHAR(42),
//	    recipient   CHAR(42),
//	    token       CHAR(42),
//	    symbol      VARCHAR(64),
//	    amount      VARCHAR(78),
//	    fee         VARCHAR(78),
//	    outcome     VARCHAR(16),
//	    operator    CHAR(42),
//	    remark      VARCHAR(255),
//	    occurred_at DATETIME(6) NOT NULL
//	);
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) Credit(ctx context.Context, token common.Address, amount *big.Int) error {
	_, err := m.adjust(ctx, token, amount, false)
	return err
}

func (m *MySQLStore) Debit(ctx context.Context, token common.Address, amount *big.Int) (bool, error) {
	return m.adjust(ctx, token, amount, true)
}

func (m *MySQLStore) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	var raw string
	err := m.db.QueryRowContext(ctx,
		`SELECT amount FROM fee_accruals WHERE token = ?`, token.Hex(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fee balance: %w", err)
	}
	return parseAmount(raw)
}

// adjust applies a signed delta inside one transaction. When debit is true
// and the balance is short it commits nothing and returns false.
func (m *MySQLStore) adjust(ctx context.Context, token common.Address, amount *big.Int, debit bool) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT amount FROM fee_accruals WHERE token = ? FOR UPDATE`, token.Hex(),
	).Scan(&raw)

	bal := new(big.Int)
	exists := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return false, fmt.Errorf("lock fee row: %w", err)
	default:
		if bal, err = parseAmount(raw); err != nil {
			return false, err
		}
	}

	if debit {
		if bal.Cmp(amount) < 0 {
			return false, nil
		}
		bal.Sub(bal, amount)
	} else {
		bal.Add(bal, amount)
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE fee_accruals SET amount = ? WHERE token = ?`, bal.String(), token.Hex())
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO fee_accruals (token, amount) VALUES (?, ?)`, token.Hex(), bal.String())
	}
	if err != nil {
		return false, fmt.Errorf("write fee balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (m *MySQLStore) OrderCreated(ctx context.Context, ev domain.OrderCreated) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO escrow_events (id, kind, order_id, sender, recipient, token, symbol, amount, fee, remark, occurred_at)
		VALUES (?, 'order_created', ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ev.ID.Hex(), ev.Sender.Hex(), ev.Recipient.Hex(),
		ev.Token.Hex(), ev.Symbol, ev.Amount.String(), ev.Fee.String(),
		ev.Remark, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order_created: %w", err)
	}
	return nil
}

func (m *MySQLStore) OrderResolved(ctx context.Context, ev domain.OrderResolved) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO escrow_events (id, kind, order_id, sender, recipient, outcome, operator, occurred_at)
		VALUES (?, 'order_resolved', ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ev.ID.Hex(), ev.Sender.Hex(), ev.Recipient.Hex(),
		string(ev.Outcome), ev.Operator.Hex(), ev.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order_resolved: %w", err)
	}
	return nil
}

func (m *MySQLStore) FeeWithdrawn(ctx context.Context, ev domain.FeeWithdrawn) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO escrow_events (id, kind, token, amount, operator, occurred_at)
		VALUES (?, 'fee_withdrawn', ?, ?, ?, ?)`,
		uuid.NewString(), ev.Token.Hex(), ev.Amount.String(),
		ev.Administrator.Hex(), ev.WithdrawnAt,
	)
	if err != nil {
		return fmt.Errorf("insert fee_withdrawn: %w", err)
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q in fee_accruals", raw)
	}
	return v, nil
}
